// Package geoindex is an in-memory spatial index implementing the same
// store contracts as the Postgres/PostGIS implementation: a k-d tree over
// point geometries for radius queries and bounding-box-screened
// point-in-polygon tests for catchment containment. It backs deterministic
// tests and small self-contained deployments where a database is overkill.
package geoindex

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/SchoolZones/SZ-Backend/internal/catchment"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
	"golang.org/x/text/cases"
)

// indexMargin pads the bounding-box prefilter the same way the Postgres
// store pads its degree radius; exact distance trims the excess.
const indexMargin = 1.05

// Index holds immutable-after-build point, polygon and school data. All
// query methods are read-only, so a built Index is safe for concurrent use.
type Index struct {
	points map[string]catchment.AddressPoint
	root   *kdNode

	catchments []polyEntry
	schools    map[int]catchment.School
}

type polyEntry struct {
	meta  catchment.SchoolCatchment
	geom  orb.MultiPolygon
	bound orb.Bound
}

// NewIndex builds the k-d tree over every point that carries coordinates.
// Index entries derive strictly from the stored coordinates: a point with a
// null latitude or longitude never enters the tree, mirroring the null
// geometry column in the Postgres schema.
func NewIndex(points []catchment.AddressPoint) *Index {
	idx := &Index{
		points:  make(map[string]catchment.AddressPoint, len(points)),
		schools: make(map[int]catchment.School),
	}

	var entries []kdEntry
	for _, p := range points {
		idx.points[p.ID] = p
		if loc, ok := p.Location(); ok {
			entries = append(entries, kdEntry{pt: loc.Orb(), id: p.ID})
		}
	}
	idx.root = buildKD(entries, 0)
	return idx
}

// AddCatchment registers a polygon. Accepts Polygon and MultiPolygon
// geometry, the two shapes the catchment shapefiles produce.
func (idx *Index) AddCatchment(meta catchment.SchoolCatchment, geom orb.Geometry) error {
	var mp orb.MultiPolygon
	switch g := geom.(type) {
	case orb.Polygon:
		mp = orb.MultiPolygon{g}
	case orb.MultiPolygon:
		mp = g
	default:
		return fmt.Errorf("unsupported catchment geometry %T", geom)
	}
	idx.catchments = append(idx.catchments, polyEntry{
		meta:  meta,
		geom:  mp,
		bound: mp.Bound(),
	})
	return nil
}

func (idx *Index) AddSchool(s catchment.School) {
	idx.schools[s.ID] = s
}

func (idx *Index) Point(_ context.Context, id string) (*catchment.AddressPoint, error) {
	p, ok := idx.points[id]
	if !ok {
		return nil, fmt.Errorf("%w: address %s", catchment.ErrNotFound, id)
	}
	return &p, nil
}

// candidates runs the shared predicate: index prefilter, attribute filters,
// exact-distance cutoff, then the deterministic (distance, id) ordering.
// Used by both CandidatesWithin and CountWithin so they cannot drift apart.
func (idx *Index) candidates(q catchment.ProximityQuery) []catchment.Candidate {
	center := q.Center.Orb()
	bound := geo.NewBoundAroundPoint(center, q.RadiusMeters*indexMargin)

	var ids []string
	idx.root.searchBound(bound, &ids)
	if len(ids) == 0 {
		// Index miss short-circuits; never a full scan.
		return nil
	}

	var out []catchment.Candidate
	for _, id := range ids {
		p := idx.points[id]
		if !matchFilters(p, q.Filters) {
			continue
		}
		loc, _ := p.Location()
		d := geo.Distance(center, loc.Orb())
		if d > q.RadiusMeters+catchment.DistanceTolerance {
			continue
		}
		out = append(out, catchment.Candidate{Address: p, DistanceMeters: d})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].DistanceMeters != out[j].DistanceMeters {
			return out[i].DistanceMeters < out[j].DistanceMeters
		}
		return out[i].Address.ID < out[j].Address.ID
	})
	return out
}

func (idx *Index) CandidatesWithin(_ context.Context, q catchment.ProximityQuery) ([]catchment.Candidate, error) {
	all := idx.candidates(q)
	if q.Offset >= len(all) {
		return nil, nil
	}
	all = all[q.Offset:]
	if q.Limit < len(all) {
		all = all[:q.Limit]
	}
	return all, nil
}

func (idx *Index) CountWithin(_ context.Context, q catchment.ProximityQuery) (int64, error) {
	return int64(len(idx.candidates(q))), nil
}

// Containing screens by bounding box before the exact ring test. Polygons
// are checked in (name, id) order so an overlap anomaly resolves to the
// same winner as the Postgres store.
func (idx *Index) Containing(_ context.Context, pt catchment.Point, kind string) (*catchment.SchoolCatchment, error) {
	p := pt.Orb()

	var hits []polyEntry
	for _, e := range idx.catchments {
		if e.meta.Kind != kind || !e.bound.Contains(p) {
			continue
		}
		if planar.MultiPolygonContains(e.geom, p) {
			hits = append(hits, e)
		}
	}
	if len(hits) == 0 {
		return nil, nil
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].meta.Name != hits[j].meta.Name {
			return hits[i].meta.Name < hits[j].meta.Name
		}
		return hits[i].meta.ID.String() < hits[j].meta.ID.String()
	})
	meta := hits[0].meta
	return &meta, nil
}

func (idx *Index) School(_ context.Context, id int) (*catchment.School, error) {
	s, ok := idx.schools[id]
	if !ok {
		return nil, fmt.Errorf("%w: school %d", catchment.ErrNotFound, id)
	}
	return &s, nil
}

// SearchSchools mirrors the Postgres store's exact → prefix → substring
// tiering with case-folded comparison.
func (idx *Index) SearchSchools(_ context.Context, name string, sectors []string, limit int) ([]catchment.School, error) {
	fold := cases.Fold()
	needle := fold.String(name)

	sectorSet := make(map[string]bool, len(sectors))
	for _, s := range sectors {
		sectorSet[fold.String(s)] = true
	}

	tiers := []func(folded string) bool{
		func(h string) bool { return h == needle },
		func(h string) bool { return strings.HasPrefix(h, needle) },
		func(h string) bool { return strings.Contains(h, needle) },
	}

	for _, match := range tiers {
		var out []catchment.School
		for _, s := range idx.schools {
			if len(sectorSet) > 0 && !sectorSet[fold.String(s.Sector)] {
				continue
			}
			if match(fold.String(s.Name)) {
				out = append(out, s)
			}
		}
		if len(out) == 0 {
			continue
		}
		sort.Slice(out, func(i, j int) bool {
			if out[i].Name != out[j].Name {
				return out[i].Name < out[j].Name
			}
			return out[i].ID < out[j].ID
		})
		if len(out) > limit {
			out = out[:limit]
		}
		return out, nil
	}
	return nil, nil
}

// matchFilters applies the attribute predicates after the spatial prefilter
// has already narrowed the candidate set, matching the clause ordering the
// Postgres store guarantees structurally.
func matchFilters(p catchment.AddressPoint, filters []catchment.AttributeFilter) bool {
	if len(filters) == 0 {
		return true
	}
	fold := cases.Fold()
	for _, f := range filters {
		have := fold.String(fieldValue(p, f.Field))
		want := fold.String(f.Value)
		switch f.Match {
		case catchment.MatchEquals:
			if have != want {
				return false
			}
		default:
			if !strings.Contains(have, want) {
				return false
			}
		}
	}
	return true
}

func fieldValue(p catchment.AddressPoint, f catchment.FilterField) string {
	switch f {
	case catchment.FieldStreetNumber:
		return p.StreetNumber
	case catchment.FieldStreet:
		return p.StreetName
	case catchment.FieldSuburb:
		return p.Suburb
	case catchment.FieldPostcode:
		return p.Postcode
	case catchment.FieldState:
		return p.State
	}
	return ""
}
