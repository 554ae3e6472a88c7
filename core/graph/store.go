package graph

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
)

var (
	// errors
	ErrNodeNotFound = errors.WithMessage(core.ErrNotFound, "node")
	ErrReference    = errors.WithMessage(core.ErrReference, "edge endpoint does not exist")
	ErrNodeExists   = errors.New("node id already taken")
)

// maxIDAttempts bounds the retries on generated id collisions.
const maxIDAttempts = 5

type (
	// Repository persists nodes and edges. Edges must only be stored once both endpoints exist.
	// Implementations join the transaction carried by ctx, if any.
	Repository interface {
		// CreateNode fails with ErrNodeExists if the id is taken.
		CreateNode(ctx context.Context, n Node) (Node, error)
		// CreateEdge fails with ErrReference if an endpoint is missing.
		CreateEdge(ctx context.Context, e Edge) (Edge, error)
		GetNode(ctx context.Context, id string) (Node, error)
		// Neighbors returns the targets of nodeID's outgoing edges of edgeType, in edge insertion order.
		Neighbors(ctx context.Context, nodeID, edgeType string) ([]Node, error)
		CountNodes(ctx context.Context) (int, error)
	}

	// Store is the generic node/edge store. It knows nothing of the domain.
	Store struct {
		repo    Repository
		nowFunc func() time.Time // mockable

		mu  sync.Mutex
		rnd *rand.Rand
	}
)

func NewStore(repo Repository) *Store {
	return &Store{
		repo:    repo,
		nowFunc: time.Now,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// newID returns "<type>_<unix ms>_<0-999>".
func (s *Store) newID(typ string) string {
	s.mu.Lock()
	n := s.rnd.Intn(1000)
	s.mu.Unlock()
	return fmt.Sprintf("%s_%d_%d", typ, s.nowFunc().UnixMilli(), n)
}

func (s *Store) CreateNode(ctx context.Context, typ string, attrs Attrs) (Node, error) {
	if attrs == nil {
		attrs = Attrs{}
	}
	var err error
	for i := 0; i < maxIDAttempts; i++ {
		var n Node
		n, err = s.repo.CreateNode(ctx, Node{ID: s.newID(typ), Type: typ, Attrs: attrs})
		if errors.Cause(err) == ErrNodeExists {
			continue
		}
		return n, err
	}
	return Node{}, errors.Wrap(err, "generating node id")
}

func (s *Store) CreateEdge(ctx context.Context, sourceID, targetID, typ string, attrs Attrs) (Edge, error) {
	if attrs == nil {
		attrs = Attrs{}
	}
	return s.repo.CreateEdge(ctx, Edge{SourceID: sourceID, TargetID: targetID, Type: typ, Attrs: attrs})
}

func (s *Store) GetNode(ctx context.Context, id string) (Node, error) {
	return s.repo.GetNode(ctx, id)
}

func (s *Store) Neighbors(ctx context.Context, nodeID, edgeType string) ([]Node, error) {
	return s.repo.Neighbors(ctx, nodeID, edgeType)
}

func (s *Store) CountNodes(ctx context.Context) (int, error) {
	return s.repo.CountNodes(ctx)
}

// Walk follows the first outgoing edge at each step, starting with one edge of firstEdge
// from startID and then edges of nextEdge, until a node has no such edge or maxSteps is reached.
// It returns the visited nodes, startID excluded.
func (s *Store) Walk(ctx context.Context, startID, firstEdge, nextEdge string, maxSteps int) ([]Node, error) {
	path := make([]Node, 0, maxSteps)
	current, edgeType := startID, firstEdge
	for len(path) < maxSteps {
		next, err := s.repo.Neighbors(ctx, current, edgeType)
		if err != nil {
			return nil, err
		}
		if len(next) == 0 {
			break
		}
		path = append(path, next[0])
		current, edgeType = next[0].ID, nextEdge
	}
	return path, nil
}
