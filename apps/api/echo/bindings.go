package echoapi

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/staff"
)

const orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	ord.Orderings = core.ParseOrderings(ctx.QueryParam(orderingParam))
}

// bindStaffFilter reads the staff list filters from the query string.
func bindStaffFilter(ctx echo.Context) staff.QueryFilter {
	qs := ctx.QueryParams()
	filter := staff.QueryFilter{
		Search: qs.Get("search"),
		Status: staff.PromotionStatus(qs.Get("status")),
	}
	for _, r := range qs["role"] {
		filter.Roles = append(filter.Roles, staff.Role(r))
	}
	if v := qs.Get("is_active"); v != "" {
		if active, err := strconv.ParseBool(v); err == nil {
			filter.IsActive = &active
		}
	}
	return filter
}
