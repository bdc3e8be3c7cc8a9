package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/reportal/core"
	"github.com/trezcool/reportal/core/user"
)

const objectKey = "object"

var (
	errUsrNotFoundInCtx = errors.New("user object not found in echo.Context")

	passwordResetRequested = "If the email address supplied is associated with an active account on this system, " +
		"an email will arrive in your inbox shortly with instructions to reset your password."
)

type userApi struct {
	svc      user.Service
	auth     *authenticator
	logger   core.Logger
	validate *validator.Validate
}

func registerUserAPI(g *echo.Group, authed []echo.MiddlewareFunc, auth *authenticator, deps *ServerDeps) {
	api := userApi{
		svc:      deps.UserSvc,
		auth:     auth,
		logger:   deps.Logger,
		validate: deps.Validate,
	}
	adminOnly := rolesMiddleware(user.RoleAdmin)

	ug := g.Group("/users")

	// un-authed endpoints
	ug.POST("/login", api.login, rateLimitMiddleware(deps.LoginLimiter, deps.Logger, true))
	ug.POST("/logout", api.logout)
	ug.POST("/register", api.register)
	ug.POST("/password-reset", api.resetPassword, rateLimitMiddleware(deps.ResetLimiter, deps.Logger, false))
	ug.POST("/password-reset-confirm", api.confirmPasswordReset)

	// authed endpoints
	ag := ug.Group("", authed...)
	ag.POST("/token-refresh", api.refreshToken)
	ag.GET("/me", api.retrieveMe)
	ag.PUT("/me", api.updateMe)
	ag.GET("", api.query, adminOnly)
	ag.POST("", api.create, adminOnly)
	ag.DELETE("", api.destroyMultiple, adminOnly)
	ag.GET("/roles", api.queryRoles, adminOnly)
	ag.POST("/activate", api.activate, adminOnly)
	ag.POST("/deactivate", api.deactivate, adminOnly)
	ag.POST("/generate-passwords", api.generatePasswords, adminOnly)

	// detail endpoints
	dg := ag.Group("/:id", ctxUserOrAdminMiddleware(api.svc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy, adminOnly)
}

// Handlers

func (api *userApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.svc.Authenticate(ctx.Request().Context(), data.Username, data.Password)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	token, err := api.auth.issue(ctx, usr)
	if err != nil {
		return errors.Wrap(err, "issuing token")
	}

	return ctx.JSON(http.StatusOK, LoginResponse{Token: token, User: &usr})
}

func (api *userApi) logout(ctx echo.Context) error {
	api.auth.clearSession(ctx)
	return ctx.NoContent(http.StatusNoContent)
}

func (api *userApi) register(ctx echo.Context) error {
	var data user.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	reqCtx := ctx.Request().Context()
	if err := data.Validate(reqCtx, api.validate, api.svc); err != nil {
		return err
	}

	usr, err := api.svc.Register(reqCtx, data)
	if err != nil {
		return errors.Wrap(err, "registering student")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *userApi) resetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.RequestPasswordReset(ctx.Request().Context(), data.Email); !(err == nil || errors.Cause(err) == user.ErrNotFound) {
		// do not return errors to attackers
		api.logger.Error("requesting password reset", errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: passwordResetRequested})
}

func (api *userApi) confirmPasswordReset(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetUserPassword")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Password has been reset with the new password."})
}

func (api *userApi) refreshToken(ctx echo.Context) error {
	token, err := api.auth.refresh(ctx)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *userApi) retrieveMe(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) updateMe(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	return api.doUpdate(ctx, usr, usr)
}

func (api *userApi) query(ctx echo.Context) error {
	filter := new(user.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, newPaginatedResponse(bindPage(ctx), 0, []user.User{}))
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)
	page := bindPage(ctx)

	users, count, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings, page)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, newPaginatedResponse(page, count, users))
}

func (api *userApi) create(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	reqCtx := ctx.Request().Context()
	if err := data.Validate(reqCtx, api.validate, api.svc); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	acc, err := api.svc.Create(reqCtx, ctxUsr, data)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	return ctx.JSON(http.StatusCreated, acc)
}

func (api *userApi) retrieve(ctx echo.Context) error {
	usr, ok := ctx.Get(objectKey).(user.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) update(ctx echo.Context) error {
	usr, ok := ctx.Get(objectKey).(user.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	return api.doUpdate(ctx, ctxUsr, usr)
}

func (api *userApi) doUpdate(ctx echo.Context, ctxUsr, usr user.User) error {
	var data user.UpdateUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateUser")
	}
	if !ctxUsr.IsAdmin() {
		// `IsActive`, `Role` and `StudentID` can only be changed by admin
		if data.IsActive != nil || data.Role != "" || data.StudentID != "" {
			return errHttpForbidden
		}
	}
	reqCtx := ctx.Request().Context()
	if err := data.Validate(reqCtx, usr, api.validate, api.svc); err != nil {
		return err
	}

	usr, err := api.svc.Update(reqCtx, usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) destroy(ctx echo.Context) error {
	usr, ok := ctx.Get(objectKey).(user.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}

	// Say No to Suicide! ctxUser cannot delete themselves
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if usr.ID == ctxUsr.ID {
		return errHttpForbidden
	}

	if _, err := api.svc.Delete(ctx.Request().Context(), usr.ID); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *userApi) destroyMultiple(ctx echo.Context) error {
	var query IDsRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to IDsRequest")
	}
	if len(query.IDs) == 0 {
		return ctx.NoContent(http.StatusNoContent)
	}

	// Say No to Suicide! ctxUser cannot delete themselves
	ctxUsr, err := getContextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if core.ContainsString(query.IDs, ctxUsr.ID) {
		return errHttpForbidden
	}

	if _, err := api.svc.Delete(ctx.Request().Context(), query.IDs...); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *userApi) queryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, user.Roles)
}

func (api *userApi) activate(ctx echo.Context) error {
	return api.setActive(ctx, true)
}

func (api *userApi) deactivate(ctx echo.Context) error {
	return api.setActive(ctx, false)
}

func (api *userApi) setActive(ctx echo.Context, active bool) error {
	var data IDsRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to IDsRequest")
	}
	if !active {
		ctxUsr, err := getContextUser(ctx)
		if err != nil {
			return errors.Wrap(err, "getting context user")
		}
		if core.ContainsString(data.IDs, ctxUsr.ID) {
			return errHttpForbidden
		}
	}

	cnt, err := api.svc.SetActive(ctx.Request().Context(), active, data.IDs...)
	if err != nil {
		return errors.Wrap(err, "setting users active")
	}
	return ctx.JSON(http.StatusOK, CountResponse{Count: cnt})
}

func (api *userApi) generatePasswords(ctx echo.Context) error {
	var data IDsRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to IDsRequest")
	}

	pwds, err := api.svc.GenerateRandomPasswords(ctx.Request().Context(), data.IDs...)
	if err != nil {
		return errors.Wrap(err, "generating passwords")
	}
	if pwds == nil {
		pwds = []user.GeneratedPassword{}
	}
	return ctx.JSON(http.StatusOK, pwds)
}

// ctxUserOrAdminMiddleware sets the user of the `:id` path param as the context object.
// Non-admins can only reach themselves.
func ctxUserOrAdminMiddleware(svc user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ctxUsr, err := getContextUser(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}

			if ctx.Param("id") == ctxUsr.ID || ctxUsr.IsAdmin() {
				if usr, err := svc.GetByID(ctx.Request().Context(), ctx.Param("id")); err == nil {
					ctx.Set(objectKey, usr)
					return next(ctx)
				} else if errors.Cause(err) != user.ErrNotFound {
					return errors.Wrap(err, "finding user by ID")
				}
			}
			return errHttpNotFound
		}
	}
}

type (
	LoginRequest struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string     `json:"token"`
		User  *user.User `json:"user,omitempty"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Username = core.CleanString(lr.Username, true /* lower */)
	return validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}
