package catchment

import (
	"context"
	"fmt"
)

// CatchmentResolver answers point-in-polygon membership queries against one
// catchment kind at a time. Kinds carry no implicit precedence: resolving
// "primary" never falls back to "secondary" or the synthetic radius zone;
// the caller picks the kind.
type CatchmentResolver struct {
	store CatchmentStore
	cache *ResolutionCache // nil disables caching
}

func NewCatchmentResolver(store CatchmentStore, cache *ResolutionCache) *CatchmentResolver {
	return &CatchmentResolver{store: store, cache: cache}
}

// Resolve returns the membership for the point, or nil when the point falls
// in no polygon of the kind. The nil outcome is common (rural and unzoned
// areas) and is not an error.
func (r *CatchmentResolver) Resolve(ctx context.Context, pt Point, kind string) (*Membership, error) {
	if kind == "" {
		return nil, fmt.Errorf("%w: catchment kind is required", ErrInvalidQuery)
	}
	if !pt.Valid() {
		return nil, fmt.Errorf("%w: point (%v, %v) outside WGS84 range", ErrInvalidQuery, pt.Lat, pt.Lng)
	}

	if m, ok := r.cache.Get(ctx, pt, kind); ok {
		return m, nil
	}

	c, err := r.store.Containing(ctx, pt, kind)
	if err != nil {
		return nil, err
	}
	if c == nil {
		r.cache.Set(ctx, pt, kind, nil)
		return nil, nil
	}

	m := &Membership{
		CatchmentID: c.ID,
		SchoolID:    c.SchoolID,
		Name:        c.Name,
		Kind:        c.Kind,
	}
	r.cache.Set(ctx, pt, kind, m)
	return m, nil
}

// ResolveAll runs Resolve independently for each known kind and collects the
// hits. This keeps "which schools is this address zoned for" a per-kind
// iteration rather than a precedence chain.
func (r *CatchmentResolver) ResolveAll(ctx context.Context, pt Point) ([]Membership, error) {
	var out []Membership
	for _, kind := range KnownKinds {
		m, err := r.Resolve(ctx, pt, kind)
		if err != nil {
			return nil, err
		}
		if m != nil {
			out = append(out, *m)
		}
	}
	return out, nil
}
