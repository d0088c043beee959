package cluster

import (
	"github.com/banshee-data/palmreject/internal/touch"
)

// pathEpsilon absorbs floating point noise when comparing path lengths so
// that equal-length alternatives keep the first one found.
const pathEpsilon = 1e-9

// Ordering is the shortest open path through the active cluster centers.
type Ordering struct {
	Path   []ID
	Length float64
}

// ShortestOpenPath orders points along the shortest open path visiting each
// once. Up to exactLimit points every permutation is tried; above it a
// farthest-point insertion path is built for every start/finish pair and the
// shortest kept. The result is deterministic for a given input.
func ShortestOpenPath(pts []touch.Point, exactLimit int) ([]int, float64) {
	switch len(pts) {
	case 0:
		return nil, 0
	case 1:
		return []int{0}, 0
	}
	if len(pts) <= exactLimit {
		return exactPath(pts)
	}
	return insertionPath(pts)
}

// PathLength returns the length of the open path visiting pts in order.
func PathLength(pts []touch.Point, order []int) float64 {
	total := 0.0
	for i := 1; i < len(order); i++ {
		total += pts[order[i-1]].Dist(pts[order[i]])
	}
	return total
}

func exactPath(pts []touch.Point) ([]int, float64) {
	n := len(pts)
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	best := append([]int(nil), perm...)
	bestLen := PathLength(pts, perm)
	for nextPermutation(perm) {
		// A path and its reverse have the same length; visit one of each.
		if perm[0] > perm[n-1] {
			continue
		}
		if l := PathLength(pts, perm); l < bestLen-pathEpsilon {
			bestLen = l
			copy(best, perm)
		}
	}
	return best, bestLen
}

// nextPermutation advances p to its lexicographic successor, returning false
// after the last permutation.
func nextPermutation(p []int) bool {
	i := len(p) - 2
	for i >= 0 && p[i] >= p[i+1] {
		i--
	}
	if i < 0 {
		return false
	}
	j := len(p) - 1
	for p[j] <= p[i] {
		j--
	}
	p[i], p[j] = p[j], p[i]
	for a, b := i+1, len(p)-1; a < b; a, b = a+1, b-1 {
		p[a], p[b] = p[b], p[a]
	}
	return true
}

func insertionPath(pts []touch.Point) ([]int, float64) {
	n := len(pts)
	var best []int
	bestLen := inf
	for s := 0; s < n; s++ {
		for f := s + 1; f < n; f++ {
			path := farthestInsertion(pts, s, f)
			if l := PathLength(pts, path); l < bestLen-pathEpsilon {
				best, bestLen = path, l
			}
		}
	}
	return best, bestLen
}

// farthestInsertion grows the path s..f by repeatedly taking the unvisited
// point farthest from the path and inserting it where it adds least length.
func farthestInsertion(pts []touch.Point, s, f int) []int {
	n := len(pts)
	path := make([]int, 0, n)
	path = append(path, s, f)
	visited := make([]bool, n)
	visited[s], visited[f] = true, true

	// minDist[i] is the distance from point i to the nearest path point.
	minDist := make([]float64, n)
	for i := range pts {
		minDist[i] = min(pts[i].Dist(pts[s]), pts[i].Dist(pts[f]))
	}

	for len(path) < n {
		far := -1
		for i := 0; i < n; i++ {
			if !visited[i] && (far < 0 || minDist[i] > minDist[far]) {
				far = i
			}
		}
		pos, cost := 1, inf
		for k := 1; k < len(path); k++ {
			a, b := pts[path[k-1]], pts[path[k]]
			added := a.Dist(pts[far]) + pts[far].Dist(b) - a.Dist(b)
			if added < cost-pathEpsilon {
				pos, cost = k, added
			}
		}
		path = append(path, 0)
		copy(path[pos+1:], path[pos:])
		path[pos] = far
		visited[far] = true
		for i := range pts {
			if d := pts[i].Dist(pts[far]); d < minDist[i] {
				minDist[i] = d
			}
		}
	}
	return path
}

// Order computes the shortest open path through the active cluster centers.
func (t *Tracker) Order() Ordering {
	active := t.Active()
	pts := make([]touch.Point, len(active))
	for i, c := range active {
		pts[i] = c.Center
	}
	order, length := ShortestOpenPath(pts, t.cfg.ExactOrderingLimit)
	out := Ordering{Path: make([]ID, len(order)), Length: length}
	for i, idx := range order {
		out.Path[i] = active[idx].ID
	}
	return out
}

// MarkEnds orders the active clusters and flags path endpoints and interior
// clusters. When penDirection is non-zero the endpoint farther along it is
// the pen end: the path is returned pen end first and the opposite endpoint
// is flagged WasAtPalmEnd.
func (t *Tracker) MarkEnds(penDirection touch.Point) Ordering {
	ord := t.Order()
	n := len(ord.Path)
	if n == 0 {
		return ord
	}
	clusters := make([]*Cluster, n)
	for i, id := range ord.Path {
		c, _ := t.clusters.Get(id)
		clusters[i] = c
		c.IsEndpoint = i == 0 || i == n-1
		if n >= 3 && !c.IsEndpoint {
			c.WasInterior = true
		}
	}
	if n < 2 || penDirection.Norm() == 0 {
		return ord
	}
	first, last := clusters[0], clusters[n-1]
	if last.Center.Dot(penDirection) > first.Center.Dot(penDirection) {
		for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
			ord.Path[i], ord.Path[j] = ord.Path[j], ord.Path[i]
		}
		first, last = last, first
	}
	last.WasAtPalmEnd = true
	return ord
}
