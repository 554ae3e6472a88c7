// Package neo4jgraph is a graph.Repository backed by a Neo4j database.
//
// Nodes are stored as (:GraphNode {id, type, attrs}) and edges as [:GRAPH_EDGE {type, attrs, seq}].
// Attributes are kept as a JSON string since Neo4j properties cannot hold nested maps.
// Writes run in their own Neo4j transaction and do not join the document store transaction.
package neo4jgraph

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/graph"
)

const (
	qNodeConstraint = `CREATE CONSTRAINT graph_node_id IF NOT EXISTS FOR (n:GraphNode) REQUIRE n.id IS UNIQUE`
	qNodeExists     = `MATCH (n:GraphNode {id: $id}) RETURN count(n) AS c`
	qCreateNode     = `CREATE (n:GraphNode {id: $id, type: $type, attrs: $attrs})`
	qCreateEdge     = `
MATCH (s:GraphNode {id: $source}), (t:GraphNode {id: $target})
CREATE (s)-[e:GRAPH_EDGE {type: $type, attrs: $attrs, seq: $seq}]->(t)
RETURN count(e) AS c`
	qGetNode   = `MATCH (n:GraphNode {id: $id}) RETURN n.id AS id, n.type AS type, n.attrs AS attrs`
	qNeighbors = `
MATCH (s:GraphNode {id: $id})
OPTIONAL MATCH (s)-[e:GRAPH_EDGE {type: $type}]->(t:GraphNode)
RETURN t.id AS id, t.type AS type, t.attrs AS attrs
ORDER BY e.seq`
	qCountNodes = `MATCH (n:GraphNode) RETURN count(n) AS c`
)

type Repository struct {
	driver   neo4j.DriverWithContext
	database string
	seq      int64
}

var _ graph.Repository = (*Repository)(nil)

// Open connects to the configured Neo4j instance and ensures the node id constraint exists.
func Open(ctx context.Context, conf core.GraphConfig) (*Repository, error) {
	if conf.Neo4jURI == "" {
		return nil, errors.New("neo4jgraph: missing uri")
	}
	driver, err := neo4j.NewDriverWithContext(conf.Neo4jURI, neo4j.BasicAuth(conf.Neo4jUser, conf.Neo4jPassword, ""),
		func(cfg *neo4j.Config) {
			cfg.SocketConnectTimeout = 10 * time.Second
		})
	if err != nil {
		return nil, errors.Wrap(err, "neo4jgraph: init driver")
	}
	if err = driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, errors.WithMessage(core.ErrUpstreamUnavailable, "neo4jgraph: "+err.Error())
	}

	repo := &Repository{driver: driver, database: conf.Neo4jDatabase, seq: time.Now().UnixNano()}
	if _, err = repo.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return consume(ctx, tx, qNodeConstraint, nil)
	}); err != nil {
		_ = driver.Close(ctx)
		return nil, errors.Wrap(err, "neo4jgraph: schema init")
	}
	return repo, nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.driver.VerifyConnectivity(ctx)
}

func (r *Repository) Close(ctx context.Context) error {
	return r.driver.Close(ctx)
}

func (r *Repository) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode, DatabaseName: r.database})
}

func (r *Repository) write(ctx context.Context, work neo4j.ManagedTransactionWork) (any, error) {
	session := r.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)
	return session.ExecuteWrite(ctx, work)
}

func (r *Repository) read(ctx context.Context, work neo4j.ManagedTransactionWork) (any, error) {
	session := r.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)
	return session.ExecuteRead(ctx, work)
}

func consume(ctx context.Context, tx neo4j.ManagedTransaction, query string, params map[string]any) (any, error) {
	res, err := tx.Run(ctx, query, params)
	if err != nil {
		return nil, err
	}
	_, err = res.Consume(ctx)
	return nil, err
}

func collect(ctx context.Context, tx neo4j.ManagedTransaction, query string, params map[string]any) ([]*neo4j.Record, error) {
	res, err := tx.Run(ctx, query, params)
	if err != nil {
		return nil, err
	}
	return res.Collect(ctx)
}

func count(ctx context.Context, tx neo4j.ManagedTransaction, query string, params map[string]any) (int64, error) {
	res, err := tx.Run(ctx, query, params)
	if err != nil {
		return 0, err
	}
	rec, err := res.Single(ctx)
	if err != nil {
		return 0, err
	}
	c, _, err := neo4j.GetRecordValue[int64](rec, "c")
	return c, err
}

func (r *Repository) CreateNode(ctx context.Context, n graph.Node) (graph.Node, error) {
	attrs, err := encodeAttrs(n.Attrs)
	if err != nil {
		return graph.Node{}, err
	}
	_, err = r.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		c, err := count(ctx, tx, qNodeExists, map[string]any{"id": n.ID})
		if err != nil {
			return nil, err
		}
		if c > 0 {
			return nil, graph.ErrNodeExists
		}
		return consume(ctx, tx, qCreateNode, map[string]any{"id": n.ID, "type": n.Type, "attrs": attrs})
	})
	if err != nil {
		return graph.Node{}, errors.WithMessage(err, "creating node")
	}
	return n, nil
}

func (r *Repository) CreateEdge(ctx context.Context, e graph.Edge) (graph.Edge, error) {
	attrs, err := encodeAttrs(e.Attrs)
	if err != nil {
		return graph.Edge{}, err
	}
	params := map[string]any{
		"source": e.SourceID,
		"target": e.TargetID,
		"type":   e.Type,
		"attrs":  attrs,
		"seq":    atomic.AddInt64(&r.seq, 1),
	}
	_, err = r.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		c, err := count(ctx, tx, qCreateEdge, params)
		if err != nil {
			return nil, err
		}
		if c == 0 {
			return nil, graph.ErrReference
		}
		return nil, nil
	})
	if err != nil {
		return graph.Edge{}, errors.WithMessage(err, "creating edge")
	}
	return e, nil
}

func (r *Repository) GetNode(ctx context.Context, id string) (graph.Node, error) {
	out, err := r.read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return collect(ctx, tx, qGetNode, map[string]any{"id": id})
	})
	if err != nil {
		return graph.Node{}, errors.Wrap(err, "getting node")
	}
	recs := out.([]*neo4j.Record)
	if len(recs) == 0 {
		return graph.Node{}, graph.ErrNodeNotFound
	}
	n, _, err := decodeNode(recs[0])
	return n, err
}

func (r *Repository) Neighbors(ctx context.Context, nodeID, edgeType string) ([]graph.Node, error) {
	out, err := r.read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return collect(ctx, tx, qNeighbors, map[string]any{"id": nodeID, "type": edgeType})
	})
	if err != nil {
		return nil, errors.Wrap(err, "listing neighbors")
	}
	recs := out.([]*neo4j.Record)
	if len(recs) == 0 {
		return nil, graph.ErrNodeNotFound
	}

	nodes := make([]graph.Node, 0, len(recs))
	for _, rec := range recs {
		n, ok, err := decodeNode(rec)
		if err != nil {
			return nil, err
		}
		if ok { // OPTIONAL MATCH yields a single null row when there is no edge
			nodes = append(nodes, n)
		}
	}
	return nodes, nil
}

func (r *Repository) CountNodes(ctx context.Context) (int, error) {
	out, err := r.read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return count(ctx, tx, qCountNodes, nil)
	})
	if err != nil {
		return 0, errors.Wrap(err, "counting nodes")
	}
	return int(out.(int64)), nil
}

func decodeNode(rec *neo4j.Record) (graph.Node, bool, error) {
	id, isNil, err := neo4j.GetRecordValue[string](rec, "id")
	if err != nil || isNil {
		return graph.Node{}, false, err
	}
	typ, _, err := neo4j.GetRecordValue[string](rec, "type")
	if err != nil {
		return graph.Node{}, false, err
	}
	raw, _, err := neo4j.GetRecordValue[string](rec, "attrs")
	if err != nil {
		return graph.Node{}, false, err
	}
	attrs, err := decodeAttrs(raw)
	if err != nil {
		return graph.Node{}, false, err
	}
	return graph.Node{ID: id, Type: typ, Attrs: attrs}, true, nil
}

func encodeAttrs(a graph.Attrs) (string, error) {
	if a == nil {
		a = graph.Attrs{}
	}
	raw, err := json.Marshal(a)
	if err != nil {
		return "", errors.Wrap(err, "encoding attributes")
	}
	return string(raw), nil
}

func decodeAttrs(raw string) (graph.Attrs, error) {
	attrs := graph.Attrs{}
	if raw == "" {
		return attrs, nil
	}
	if err := json.Unmarshal([]byte(raw), &attrs); err != nil {
		return nil, errors.Wrap(err, "decoding attributes")
	}
	return attrs, nil
}
