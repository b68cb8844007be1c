package geoindex

import (
	"sort"

	"github.com/paulmach/orb"
)

// kdNode is one node of a 2-d tree over address points, splitting on
// longitude and latitude alternately. Range queries against a bounding box
// prune whole subtrees, which is what keeps candidate collection sublinear.
type kdNode struct {
	pt    orb.Point
	id    string
	axis  int // 0: lon, 1: lat
	left  *kdNode
	right *kdNode
}

type kdEntry struct {
	pt orb.Point
	id string
}

func buildKD(entries []kdEntry, depth int) *kdNode {
	if len(entries) == 0 {
		return nil
	}
	axis := depth % 2
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].pt[axis] != entries[j].pt[axis] {
			return entries[i].pt[axis] < entries[j].pt[axis]
		}
		return entries[i].id < entries[j].id
	})
	mid := len(entries) / 2
	n := &kdNode{pt: entries[mid].pt, id: entries[mid].id, axis: axis}
	n.left = buildKD(entries[:mid], depth+1)
	n.right = buildKD(entries[mid+1:], depth+1)
	return n
}

// searchBound collects ids of all indexed points inside the bound. A branch
// is descended only when the splitting coordinate admits it.
func (n *kdNode) searchBound(b orb.Bound, out *[]string) {
	if n == nil {
		return
	}
	if b.Contains(n.pt) {
		*out = append(*out, n.id)
	}
	if n.pt[n.axis] >= b.Min[n.axis] {
		n.left.searchBound(b, out)
	}
	if n.pt[n.axis] <= b.Max[n.axis] {
		n.right.searchBound(b, out)
	}
}
