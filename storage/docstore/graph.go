package docstore

import (
	"context"
	"encoding/json"

	"github.com/trezcool/elimu/core/graph"
	"github.com/trezcool/elimu/storage/kv"
)

type graphDoc struct {
	Nodes []graph.Node `json:"nodes"`
	Edges []graph.Edge `json:"edges"`
}

func (doc graphDoc) node(id string) (graph.Node, bool) {
	for _, n := range doc.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return graph.Node{}, false
}

// GraphRepository stores every node and edge in a single document.
type GraphRepository struct {
	store *Store
}

var _ graph.Repository = (*GraphRepository)(nil)

func NewGraphRepository(s *Store) *GraphRepository {
	return &GraphRepository{store: s}
}

func (repo *GraphRepository) load(r kv.Reader) (graphDoc, int64, error) {
	doc := graphDoc{Nodes: []graph.Node{}, Edges: []graph.Edge{}}
	rev, err := readDoc(r, keyGraph, &doc, func(raw []byte) error {
		return json.Unmarshal(raw, &doc)
	})
	return doc, rev, err
}

func (repo *GraphRepository) view(ctx context.Context) (graphDoc, error) {
	var doc graphDoc
	err := repo.store.view(ctx, func(r kv.Reader) error {
		var err error
		doc, _, err = repo.load(r)
		return err
	})
	return doc, err
}

func (repo *GraphRepository) mutate(ctx context.Context, fn func(doc *graphDoc) error) error {
	return repo.store.update(ctx, func(txn kv.Txn) error {
		doc, rev, err := repo.load(txn)
		if err != nil {
			return err
		}
		if err = fn(&doc); err != nil {
			return err
		}
		return writeDoc(txn, keyGraph, doc, rev)
	})
}

func (repo *GraphRepository) CreateNode(ctx context.Context, n graph.Node) (graph.Node, error) {
	err := repo.mutate(ctx, func(doc *graphDoc) error {
		if _, ok := doc.node(n.ID); ok {
			return graph.ErrNodeExists
		}
		doc.Nodes = append(doc.Nodes, n)
		return nil
	})
	return n, err
}

func (repo *GraphRepository) CreateEdge(ctx context.Context, e graph.Edge) (graph.Edge, error) {
	err := repo.mutate(ctx, func(doc *graphDoc) error {
		if _, ok := doc.node(e.SourceID); !ok {
			return graph.ErrReference
		}
		if _, ok := doc.node(e.TargetID); !ok {
			return graph.ErrReference
		}
		doc.Edges = append(doc.Edges, e)
		return nil
	})
	return e, err
}

func (repo *GraphRepository) GetNode(ctx context.Context, id string) (graph.Node, error) {
	doc, err := repo.view(ctx)
	if err != nil {
		return graph.Node{}, err
	}
	n, ok := doc.node(id)
	if !ok {
		return graph.Node{}, graph.ErrNodeNotFound
	}
	return n, nil
}

func (repo *GraphRepository) Neighbors(ctx context.Context, nodeID, edgeType string) ([]graph.Node, error) {
	doc, err := repo.view(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := doc.node(nodeID); !ok {
		return nil, graph.ErrNodeNotFound
	}
	nodes := make([]graph.Node, 0)
	for _, e := range doc.Edges {
		if e.SourceID != nodeID || e.Type != edgeType {
			continue
		}
		if n, ok := doc.node(e.TargetID); ok {
			nodes = append(nodes, n)
		}
	}
	return nodes, nil
}

func (repo *GraphRepository) CountNodes(ctx context.Context) (int, error) {
	doc, err := repo.view(ctx)
	if err != nil {
		return 0, err
	}
	return len(doc.Nodes), nil
}
