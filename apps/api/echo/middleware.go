package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core/staff"
)

// roleMiddleware only lets active members holding one of roles through.
func (s *Server) roleMiddleware(roles ...staff.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			m, err := s.contextMember(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context member")
			}
			if !m.IsActive {
				return errAccountDeactivated
			}
			if len(roles) == 0 || m.HasRole(roles...) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}
