package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core/staff"
)

func registerStaffAPI(g *echo.Group, jwt echo.MiddlewareFunc, s *Server) {
	sg := g.Group("/staff", jwt)
	sg.GET("", s.queryStaff, s.roleMiddleware(staff.RoleSupervisor, staff.RoleAdmin))
	sg.GET("/roles", s.queryRoles, s.roleMiddleware(staff.RoleAdmin))
}

func (s *Server) queryStaff(ctx echo.Context) error {
	ordering := new(Ordering)
	ordering.Bind(ctx)

	members, err := s.deps.StaffSvc.Filter(ctx.Request().Context(), bindStaffFilter(ctx), ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying staff")
	}
	return ctx.JSON(http.StatusOK, members)
}

func (s *Server) queryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, staff.Roles)
}
