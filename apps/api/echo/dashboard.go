package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/reportal/core/report"
	"github.com/trezcool/reportal/core/user"
)

type dashboardApi struct {
	svc report.Service
}

func registerDashboardAPI(g *echo.Group, authed []echo.MiddlewareFunc, deps *ServerDeps) {
	api := dashboardApi{svc: deps.ReportSvc}
	g.GET("/dashboard", api.dashboard, authed...)
}

// dashboard returns the dashboard of the caller's role.
func (api *dashboardApi) dashboard(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	reqCtx := ctx.Request().Context()

	switch ctxUsr.Role {
	case user.RoleStudent:
		dash, err := api.svc.StudentDashboard(reqCtx, ctxUsr)
		if err != nil {
			return errors.Wrap(err, "loading student dashboard")
		}
		return ctx.JSON(http.StatusOK, dash)
	case user.RoleEvaluator:
		dash, err := api.svc.EvaluatorDashboard(reqCtx, ctxUsr)
		if err != nil {
			return errors.Wrap(err, "loading evaluator dashboard")
		}
		return ctx.JSON(http.StatusOK, dash)
	case user.RoleAdmin:
		var af report.AdminFilter
		if err = ctx.Bind(&af); err != nil {
			return errors.Wrap(err, "binding to AdminFilter")
		}
		dash, err := api.svc.AdminDashboard(reqCtx, ctxUsr, af)
		if err != nil {
			return errors.Wrap(err, "loading admin dashboard")
		}
		return ctx.JSON(http.StatusOK, dash)
	}
	return errHttpForbidden
}
