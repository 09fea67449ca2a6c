package facematch

import (
	"slices"
	"sync"

	"github.com/coder/hnsw"

	"github.com/kozaktomas/photo-library/internal/constants"
	"github.com/kozaktomas/photo-library/internal/database"
	"github.com/kozaktomas/photo-library/internal/faces"
)

// Index resolves faces through an HNSW graph of the reference embeddings.
// The graph only proposes candidates; they are re-scored exactly with the
// Matcher fold, so the result equals linear matching whenever the true
// nearest reference is among the candidates.
type Index struct {
	matcher    *Matcher
	candidates int

	mu    sync.Mutex
	graph *hnsw.Graph[int]
	size  int             // number of known faces added to graph
	last  faces.Embedding // embedding of known[size-1], to detect a changed list
}

// NewIndex creates an index resolver. candidates is the number of nearest
// references fetched from the graph per query.
func NewIndex(tolerance float64, candidates int) *Index {
	if candidates <= 0 {
		candidates = constants.HNSWCandidates
	}
	return &Index{
		matcher:    NewMatcher(tolerance),
		candidates: candidates,
	}
}

func newGraph() *hnsw.Graph[int] {
	g := hnsw.NewGraph[int]()
	g.M = constants.HNSWMaxNeighbors
	g.Ml = 1.0 / float64(constants.HNSWMaxNeighbors) // Standard HNSW formula
	g.EfSearch = constants.HNSWEfSearch
	g.Distance = hnsw.EuclideanDistance
	return g
}

// sync brings the graph up to date with known. Reference faces are only ever
// appended, so a longer list with an unchanged prefix is added incrementally;
// anything else rebuilds from scratch.
func (ix *Index) sync(known []database.KnownFace) {
	if ix.graph != nil && len(known) >= ix.size && (ix.size == 0 || known[ix.size-1].Embedding == ix.last) {
		for i := ix.size; i < len(known); i++ {
			ix.graph.Add(hnsw.MakeNode(i, known[i].Embedding.Float32()))
		}
	} else {
		ix.graph = newGraph()
		for i := range known {
			ix.graph.Add(hnsw.MakeNode(i, known[i].Embedding.Float32()))
		}
	}
	ix.size = len(known)
	if ix.size > 0 {
		ix.last = known[ix.size-1].Embedding
	}
}

// Resolve implements Resolver.
func (ix *Index) Resolve(query faces.Embedding, known []database.KnownFace) Result {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.sync(known)
	if ix.graph.Len() == 0 {
		return ix.matcher.Resolve(query, nil)
	}

	neighbors := ix.graph.Search(query.Float32(), ix.candidates)
	ordinals := make([]int, len(neighbors))
	for i, n := range neighbors {
		ordinals[i] = n.Key
	}
	// Known order decides ties, so candidates are scanned in that order.
	slices.Sort(ordinals)

	subset := make([]database.KnownFace, len(ordinals))
	for i, o := range ordinals {
		subset[i] = known[o]
	}
	return ix.matcher.Resolve(query, subset)
}

// Len returns the number of indexed references.
func (ix *Index) Len() int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.size
}
