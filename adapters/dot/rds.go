package dot

import (
	"container/heap"
	"fmt"

	"emkm/internal/errors"
)

// RDS identifies the rate-determining step: the edge with the maximum
// forward barrier along the dominant path, ties broken by parse order.
type RDS struct {
	Path []string
	Edge Edge
}

type neighbor struct {
	node string
	rate float64
	edge int // index into Network.Edges
}

// FindRDS traverses the network from start to end along the dominant path
// (highest cumulative net rate, so traversal cost is the negated rate) and
// reports the maximum-forward-barrier edge on that path.
func FindRDS(net *Network, start, end string) (*RDS, error) {
	adj := make(map[string][]neighbor)
	known := make(map[string]bool)
	for i, e := range net.Edges {
		adj[e.From] = append(adj[e.From], neighbor{node: e.To, rate: e.Net, edge: i})
		// reverse direction is reachable at the negated net rate
		adj[e.To] = append(adj[e.To], neighbor{node: e.From, rate: -e.Net, edge: i})
		known[e.From] = true
		known[e.To] = true
	}

	if !known[start] {
		return nil, errors.GraphParseError(fmt.Sprintf("start species %q not in network", start))
	}
	if !known[end] {
		return nil, errors.GraphParseError(fmt.Sprintf("end species %q not in network", end))
	}

	path, edgeIdx := dominantPath(adj, start, end)
	if path == nil {
		return nil, errors.NotFound(fmt.Sprintf("path from %q to %q", start, end))
	}

	// Max forward barrier wins; strict comparison keeps the first edge in
	// parse order on ties.
	best := -1
	for _, i := range edgeIdx {
		if best == -1 ||
			net.Edges[i].Forward > net.Edges[best].Forward ||
			(net.Edges[i].Forward == net.Edges[best].Forward && i < best) {
			best = i
		}
	}

	return &RDS{Path: path, Edge: net.Edges[best]}, nil
}

type pqItem struct {
	cost  float64
	node  string
	path  []string
	edges []int
}

type priorityQueue []pqItem

func (q priorityQueue) Len() int            { return len(q) }
func (q priorityQueue) Less(i, j int) bool  { return q[i].cost < q[j].cost }
func (q priorityQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *priorityQueue) Push(x interface{}) { *q = append(*q, x.(pqItem)) }
func (q *priorityQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// dominantPath is Dijkstra over negated net rates: the cheapest path is the
// one carrying the most net flux from start to end.
func dominantPath(adj map[string][]neighbor, start, end string) ([]string, []int) {
	pq := &priorityQueue{{cost: 0, node: start}}
	visited := make(map[string]bool)

	for pq.Len() > 0 {
		item := heap.Pop(pq).(pqItem)
		if visited[item.node] {
			continue
		}
		visited[item.node] = true

		path := append(append([]string{}, item.path...), item.node)
		if item.node == end {
			return path, item.edges
		}

		for _, nb := range adj[item.node] {
			if visited[nb.node] {
				continue
			}
			heap.Push(pq, pqItem{
				cost:  item.cost - nb.rate,
				node:  nb.node,
				path:  path,
				edges: append(append([]int{}, item.edges...), nb.edge),
			})
		}
	}
	return nil, nil
}
