package echoapi

import (
	"io"
	"mime"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/reportal/core/report"
	"github.com/trezcool/reportal/core/user"
)

const reportFileField = "report_file"

type reportApi struct {
	svc      report.Service
	validate *validator.Validate
}

func registerReportAPI(g *echo.Group, authed []echo.MiddlewareFunc, deps *ServerDeps) {
	api := reportApi{
		svc:      deps.ReportSvc,
		validate: deps.Validate,
	}
	staff := rolesMiddleware(user.RoleEvaluator, user.RoleAdmin)
	adminOnly := rolesMiddleware(user.RoleAdmin)

	rg := g.Group("/reports", authed...)
	rg.POST("", api.submit, rolesMiddleware(user.RoleStudent), middleware.BodyLimit(uploadBodyLimit(deps.Conf)))
	rg.GET("", api.query)
	rg.GET("/:id", api.retrieve)
	rg.GET("/:id/download", api.download)
	rg.GET("/:id/view", api.view)
	rg.GET("/:id/evaluators", api.availableEvaluators, adminOnly)
	rg.POST("/:id/assign", api.assignEvaluator, adminOnly)
	rg.GET("/:id/feedback", api.retrieveFeedback, staff)
	rg.PUT("/:id/feedback", api.saveFeedback, staff)
}

func (api *reportApi) submit(ctx echo.Context) error {
	var data report.NewReport
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewReport")
	}

	fh, err := ctx.FormFile(reportFileField)
	switch {
	case err == nil:
		f, err := fh.Open()
		if err != nil {
			return errors.Wrap(err, "opening uploaded file")
		}
		defer f.Close()
		data.File = &report.Upload{Filename: fh.Filename, Size: fh.Size, Content: f}
	case errors.Cause(err) == http.ErrMissingFile:
		// reported by NewReport.Validate
	default:
		return errors.Wrap(err, "reading uploaded file")
	}

	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = data.Validate(ctxUsr, api.validate); err != nil {
		return err
	}

	rep, err := api.svc.Submit(ctx.Request().Context(), ctxUsr, data)
	if err != nil {
		return errors.Wrap(err, "submitting report")
	}
	return ctx.JSON(http.StatusCreated, rep)
}

func (api *reportApi) query(ctx echo.Context) error {
	filter := new(report.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)
	page := bindPage(ctx)

	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	reports, count, err := api.svc.Query(ctx.Request().Context(), ctxUsr, filter, ordering.Orderings, page)
	if err != nil {
		return errors.Wrap(err, "querying reports")
	}
	if reports == nil {
		reports = []report.Report{}
	}
	return ctx.JSON(http.StatusOK, newPaginatedResponse(page, count, reports))
}

func (api *reportApi) retrieve(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	dtl, err := api.svc.Get(ctx.Request().Context(), ctxUsr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting report")
	}
	if dtl.Feedback == nil {
		dtl.Feedback = []report.Feedback{}
	}
	return ctx.JSON(http.StatusOK, dtl)
}

func (api *reportApi) download(ctx echo.Context) error {
	return api.serveFile(ctx, "attachment")
}

func (api *reportApi) view(ctx echo.Context) error {
	return api.serveFile(ctx, "inline")
}

// serveFile streams the report file under its original name.
func (api *reportApi) serveFile(ctx echo.Context, disposition string) error {
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	rep, rc, err := api.svc.Open(ctx.Request().Context(), ctxUsr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "opening report")
	}
	defer rc.Close()

	name := rep.DisplayFilename()
	ctx.Response().Header().Set(echo.HeaderContentDisposition, mime.FormatMediaType(disposition, map[string]string{"filename": name}))
	return ctx.Stream(http.StatusOK, report.ContentType(name), io.Reader(rc))
}

func (api *reportApi) availableEvaluators(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	evaluators, err := api.svc.AvailableEvaluators(ctx.Request().Context(), ctxUsr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "querying available evaluators")
	}
	return ctx.JSON(http.StatusOK, evaluators)
}

func (api *reportApi) assignEvaluator(ctx echo.Context) error {
	var data AssignEvaluatorRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AssignEvaluatorRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	ra, created, err := api.svc.AssignEvaluator(ctx.Request().Context(), ctxUsr, ctx.Param("id"), data.EvaluatorID)
	if err != nil {
		return errors.Wrap(err, "assigning evaluator")
	}
	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	return ctx.JSON(code, ra)
}

func (api *reportApi) retrieveFeedback(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	fb, err := api.svc.OpenFeedback(ctx.Request().Context(), ctxUsr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting feedback")
	}
	return ctx.JSON(http.StatusOK, fb)
}

func (api *reportApi) saveFeedback(ctx echo.Context) error {
	var data report.UpdateFeedback
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateFeedback")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	fb, err := api.svc.SaveFeedback(ctx.Request().Context(), ctxUsr, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "saving feedback")
	}
	return ctx.JSON(http.StatusOK, fb)
}

type AssignEvaluatorRequest struct {
	EvaluatorID string `json:"evaluator_id" validate:"required"`
}
