package echoapi

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core/walker"
)

// maxPayloadSize bounds walker request bodies.
const maxPayloadSize = 1 << 20

type (
	WalkerResponse struct {
		Success bool        `json:"success"`
		Data    interface{} `json:"data,omitempty"`
		Error   string      `json:"error,omitempty"`
	}

	// degradable results were only partly produced because a dependency failed.
	degradable interface {
		DegradedReason() (string, bool)
	}
)

func registerWalkerAPI(g *echo.Group, jwt echo.MiddlewareFunc, s *Server) {
	wg := g.Group("/walker", jwt, s.roleMiddleware())
	wg.GET("", s.listWalkers)
	wg.POST("/:name", s.runWalker)
}

func (s *Server) listWalkers(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, walker.Names())
}

// runWalker decodes the body into the command named by the path and dispatches it as the token's member.
func (s *Server) runWalker(ctx echo.Context) error {
	payload, err := io.ReadAll(io.LimitReader(ctx.Request().Body, maxPayloadSize))
	if err != nil {
		return errors.Wrap(err, "reading payload")
	}
	cmd, err := walker.Decode(ctx.Param("name"), payload)
	if err != nil {
		return err
	}
	actor, err := s.contextMember(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context member")
	}

	result, err := s.deps.Dispatcher.Dispatch(ctx.Request().Context(), actor, cmd).Wait(ctx.Request().Context())
	if err != nil {
		return errors.WithMessagef(err, "walker %s", cmd.Name())
	}
	if d, ok := result.(degradable); ok {
		if reason, degraded := d.DegradedReason(); degraded {
			return ctx.JSON(http.StatusOK, WalkerResponse{Success: false, Error: reason, Data: result})
		}
	}
	return ctx.JSON(http.StatusOK, WalkerResponse{Success: true, Data: result})
}
