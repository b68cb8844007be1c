package catchment

import (
	"context"
	"math"
)

// PointStore is the read-only contract over the coordinate store and its
// spatial index. Implementations must consult the index before any exact
// distance computation: an empty candidate set short-circuits the query
// rather than falling back to a full scan.
//
// CandidatesWithin returns candidates ordered ascending by exact
// geography-based distance, ties broken by identifier, with the query's
// limit/offset already applied. CountWithin applies the same predicate as
// CandidatesWithin minus pagination; the two must agree exactly.
type PointStore interface {
	Point(ctx context.Context, id string) (*AddressPoint, error)
	CandidatesWithin(ctx context.Context, q ProximityQuery) ([]Candidate, error)
	CountWithin(ctx context.Context, q ProximityQuery) (int64, error)
}

// CatchmentStore resolves point-in-polygon membership over the loaded
// catchment polygons. Containing returns nil (not an error) when no polygon
// of the given kind contains the point.
type CatchmentStore interface {
	Containing(ctx context.Context, pt Point, kind string) (*SchoolCatchment, error)
}

// SchoolStore serves the descriptive metadata side of result assembly.
type SchoolStore interface {
	School(ctx context.Context, id int) (*School, error)
	SearchSchools(ctx context.Context, name string, sectors []string, limit int) ([]School, error)
}

// metersPerDegree is the length of one degree of latitude. Longitude
// degrees shrink with cos(lat), which DegreeRadius accounts for.
const metersPerDegree = 111320.0

// DegreeRadius converts a metric search radius into the degree radius used
// by the index prefilter, padded by margin. The cosine keeps the prefilter
// wide enough in longitude at high latitudes; the clamp keeps it finite
// near the poles. Over-inclusion is fine since exact geography distance
// trims the boundary, but under-inclusion would drop valid matches.
func DegreeRadius(lat, radiusMeters, margin float64) float64 {
	cos := math.Cos(lat * math.Pi / 180)
	if cos < 0.05 {
		cos = 0.05
	}
	return radiusMeters / (metersPerDegree * cos) * margin
}
