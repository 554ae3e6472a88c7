package echoapi

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"
)

const healthTimeout = 5 * time.Second

type HealthResponse struct {
	Status     string `json:"status"`
	Store      string `json:"store"`
	Content    string `json:"content"`
	GraphNodes int    `json:"graph_nodes"`
}

func probe(ctx context.Context, p Pinger) string {
	if p == nil {
		return "disabled"
	}
	if err := p.Ping(ctx); err != nil {
		return "unavailable: " + err.Error()
	}
	return "ok"
}

// health probes the dependencies concurrently. Only the store is required to be up.
func (s *Server) health(ctx echo.Context) error {
	cctx, cancel := context.WithTimeout(ctx.Request().Context(), healthTimeout)
	defer cancel()

	res := HealthResponse{Status: "ok", GraphNodes: -1}
	var g errgroup.Group
	g.Go(func() error {
		res.Store = probe(cctx, s.deps.Store)
		return nil
	})
	g.Go(func() error {
		res.Content = probe(cctx, s.deps.Content)
		return nil
	})
	g.Go(func() error {
		if s.deps.Graph == nil {
			return nil
		}
		if n, err := s.deps.Graph.CountNodes(cctx); err == nil {
			res.GraphNodes = n
		}
		return nil
	})
	_ = g.Wait()

	code := http.StatusOK
	if res.Store != "ok" {
		res.Status = "degraded"
		code = http.StatusServiceUnavailable
	}
	return ctx.JSON(code, res)
}
