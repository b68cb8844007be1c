package catchment

import (
	"context"
	"sort"
)

// DistanceTolerance absorbs floating-point noise at the radius boundary:
// a candidate within 1 cm over the requested radius still counts as inside.
// Stores share this constant so their cutoff agrees with the resolver's.
const DistanceTolerance = 0.01 // meters

// ProximityResolver answers "addresses near point X" against a PointStore.
// It is stateless and read-only; a single value can serve concurrent
// requests.
type ProximityResolver struct {
	store PointStore
}

func NewProximityResolver(store PointStore) *ProximityResolver {
	return &ProximityResolver{store: store}
}

// FindNear returns the ranked candidates for the query. The store contract
// already guarantees spatial-first filtering, exact-distance trimming and
// deterministic (distance, id) ordering; the resolver validates the query,
// re-applies the radius cutoff over the returned page and assigns ranks.
// Zero surviving candidates yield an empty slice, not an error.
func (r *ProximityResolver) FindNear(ctx context.Context, q ProximityQuery) ([]ResultItem, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	cands, err := r.store.CandidatesWithin(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(cands) == 0 {
		return []ResultItem{}, nil
	}

	kept := cands[:0]
	for _, c := range cands {
		if c.DistanceMeters <= q.RadiusMeters+DistanceTolerance {
			kept = append(kept, c)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].DistanceMeters != kept[j].DistanceMeters {
			return kept[i].DistanceMeters < kept[j].DistanceMeters
		}
		return kept[i].Address.ID < kept[j].Address.ID
	})

	return assembleItems(kept, q.Offset), nil
}

// CountNear reports how many candidates FindNear would return with an
// unbounded limit. It shares the query validation and the store predicate
// so the count and the page can never disagree.
func (r *ProximityResolver) CountNear(ctx context.Context, q ProximityQuery) (int64, error) {
	if err := q.Validate(); err != nil {
		return 0, err
	}
	return r.store.CountWithin(ctx, q)
}
