package catchment

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// bufferSegments is the ring resolution of a generated zone. 64 vertices
// keep the worst-case chord error under 0.05% of the radius.
const bufferSegments = 64

// Buffer generates the synthetic service-area disk around a point: a
// radiusMeters circle expressed as a WGS84 polygon. Each vertex is placed by
// geodesic destination (bearing + distance on the ellipsoidal model), which
// is the projected-disk construction done analytically. Buffering in raw
// degrees would shrink and flatten the circle away from the equator.
//
// The result is used as a Catchment Polygon of KindDefaultRadiusZone where
// no authoritative catchment exists.
func Buffer(pt Point, radiusMeters float64) (orb.Polygon, error) {
	if !pt.Valid() {
		return nil, fmt.Errorf("%w: buffer center (%v, %v) outside WGS84 range", ErrInvalidQuery, pt.Lat, pt.Lng)
	}
	if radiusMeters <= 0 {
		return nil, fmt.Errorf("%w: buffer radius must be positive, got %v", ErrInvalidQuery, radiusMeters)
	}

	center := pt.Orb()
	ring := make(orb.Ring, 0, bufferSegments+1)
	for i := 0; i < bufferSegments; i++ {
		bearing := float64(i) * 360.0 / bufferSegments
		ring = append(ring, geo.PointAtBearingAndDistance(center, bearing, radiusMeters))
	}
	ring = append(ring, ring[0]) // close the ring

	return orb.Polygon{ring}, nil
}

// ZoneCatchment wraps a generated disk in the SchoolCatchment shape so the
// synthetic zone can flow through the same resolution plumbing as the real
// polygons.
func ZoneCatchment(s School, radiusMeters float64) (*SchoolCatchment, orb.Polygon, error) {
	loc, ok := s.Location()
	if !ok {
		// A school without coordinates has no zone; downstream treats
		// this as a valid "no zone" outcome.
		return nil, nil, nil
	}
	poly, err := Buffer(loc, radiusMeters)
	if err != nil {
		return nil, nil, err
	}
	return &SchoolCatchment{
		SchoolID: s.ID,
		Name:     s.Name,
		Kind:     KindDefaultRadiusZone,
		State:    s.State,
	}, poly, nil
}
