package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/reportal/core"
	"github.com/trezcool/reportal/core/user"
)

type studentApi struct {
	svc      user.Service
	validate *validator.Validate
}

func registerStudentAPI(g *echo.Group, authed []echo.MiddlewareFunc, deps *ServerDeps) {
	api := studentApi{
		svc:      deps.UserSvc,
		validate: deps.Validate,
	}
	staff := rolesMiddleware(user.RoleEvaluator, user.RoleAdmin)

	sg := g.Group("/students", authed...)
	sg.GET("", api.query, staff)
	sg.POST("", api.create, rolesMiddleware(user.RoleEvaluator))
	sg.GET("/pending", api.queryPending, staff)
	sg.POST("/:id/approve", api.approve, staff)
	sg.POST("/:id/reject", api.reject, staff)

	eg := g.Group("/evaluators", authed...)
	eg.GET("", api.queryEvaluators, rolesMiddleware(user.RoleAdmin))
	eg.POST("/:id/students", api.assignStudents, rolesMiddleware(user.RoleAdmin))
}

func (api *studentApi) query(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	students, err := api.svc.QueryStudents(ctx.Request().Context(), ctxUsr)
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	if students == nil {
		students = []user.User{}
	}
	return ctx.JSON(http.StatusOK, students)
}

// create makes an approved student mapped to the calling evaluator.
func (api *studentApi) create(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	data.Role = user.RoleStudent
	reqCtx := ctx.Request().Context()
	if err := data.Validate(reqCtx, api.validate, api.svc); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	acc, err := api.svc.CreateStudent(reqCtx, ctxUsr, data)
	if err != nil {
		return errors.Wrap(err, "creating student")
	}
	return ctx.JSON(http.StatusCreated, acc)
}

func (api *studentApi) queryPending(ctx echo.Context) error {
	students, err := api.svc.QueryPending(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying pending students")
	}
	if students == nil {
		students = []user.User{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *studentApi) approve(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	student, err := api.svc.Approve(ctx.Request().Context(), ctxUsr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "approving student")
	}
	return ctx.JSON(http.StatusOK, student)
}

func (api *studentApi) reject(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	student, err := api.svc.Reject(ctx.Request().Context(), ctxUsr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "rejecting student")
	}
	return ctx.JSON(http.StatusOK, student)
}

func (api *studentApi) queryEvaluators(ctx echo.Context) error {
	evaluators, err := api.svc.QueryEvaluators(ctx.Request().Context(), core.CleanString(ctx.QueryParam("department")))
	if err != nil {
		return errors.Wrap(err, "querying evaluators")
	}
	if evaluators == nil {
		evaluators = []user.User{}
	}
	return ctx.JSON(http.StatusOK, evaluators)
}

func (api *studentApi) assignStudents(ctx echo.Context) error {
	var data AssignStudentsRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AssignStudentsRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	created, err := api.svc.AssignStudents(ctx.Request().Context(), ctxUsr, ctx.Param("id"), data.StudentIDs)
	if err != nil {
		return errors.Wrap(err, "assigning students")
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: created})
}

type AssignStudentsRequest struct {
	StudentIDs []string `json:"student_ids" validate:"required,min=1"`
}
