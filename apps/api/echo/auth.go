package echoapi

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/reportal/core"
	"github.com/trezcool/reportal/core/user"
)

const (
	tokenContextKey = "userToken"
	contextUserKey  = "user"
	tokenAudience   = "Reportal"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.RegisteredClaims
	OrigIssuedAt int64  `json:"oriat,omitempty"`
	Username     string `json:"username,omitempty"`
	Role         string `json:"role,omitempty"`
}

// NewClaims returns the claims of a new token for usr. origIat is kept across token refreshes.
func NewClaims(conf *core.Config, usr user.User, origIat ...int64) *Claims {
	now := time.Now()
	oriat := now.Unix()
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    conf.AppName,
			Subject:   usr.ID,
			Audience:  jwt.ClaimStrings{tokenAudience},
			ExpiresAt: jwt.NewNumericDate(now.Add(conf.Server.JWTExpirationDelta)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		OrigIssuedAt: oriat,
		Username:     usr.Username,
		Role:         usr.Role,
	}
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func GenerateToken(conf *core.Config, claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString([]byte(conf.SecretKey))
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

type authenticator struct {
	conf *core.Config
}

func newAuthenticator(conf *core.Config) *authenticator {
	return &authenticator{conf: conf}
}

// middleware reads the token from the Authorization header, then from the session cookie.
func (a *authenticator) middleware() echo.MiddlewareFunc {
	return middleware.JWTWithConfig(middleware.JWTConfig{
		ContextKey:     tokenContextKey,
		TokenLookup:    "header:" + echo.HeaderAuthorization + ",cookie:" + a.conf.Server.SessionCookieName,
		AuthScheme:     "Bearer",
		ParseTokenFunc: a.parseToken,
	})
}

func (a *authenticator) parseToken(auth string, _ echo.Context) (interface{}, error) {
	token, err := jwt.ParseWithClaims(auth, new(Claims), func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.Errorf("unexpected jwt signing method=%v", t.Header["alg"])
		}
		return []byte(a.conf.SecretKey), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return token, nil
}

// issue signs a new token for usr and sets it as the session cookie.
func (a *authenticator) issue(ctx echo.Context, usr user.User, origIat ...int64) (string, error) {
	claims := NewClaims(a.conf, usr, origIat...)
	token, err := GenerateToken(a.conf, claims)
	if err != nil {
		return "", err
	}
	ctx.SetCookie(&http.Cookie{
		Name:     a.conf.Server.SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  claims.ExpiresAt.Time,
		HttpOnly: true,
		Secure:   !a.conf.Debug,
		SameSite: http.SameSiteLaxMode,
	})
	return token, nil
}

func (a *authenticator) clearSession(ctx echo.Context) {
	ctx.SetCookie(&http.Cookie{
		Name:     a.conf.Server.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   !a.conf.Debug,
		SameSite: http.SameSiteLaxMode,
	})
}

// refresh issues a new token as long as the refresh period of the original one has not expired.
func (a *authenticator) refresh(ctx echo.Context) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context claims")
	}
	usr, err := getContextUser(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context user")
	}

	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(a.conf.Server.JWTRefreshExpirationDelta)
	if time.Now().After(expTime) {
		return "", errRefreshExpired
	}
	return a.issue(ctx, usr, claims.OrigIssuedAt)
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(tokenContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

// getContextUser returns the user loaded by ctxUserMiddleware.
func getContextUser(ctx echo.Context) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}
	return user.User{}, errUnauthorized
}

// ctxUserMiddleware loads the user of the token, who must still be allowed to log in.
func ctxUserMiddleware(svc user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			usr, err := svc.GetByID(ctx.Request().Context(), claims.Subject)
			if err != nil {
				if errors.Cause(err) == user.ErrNotFound {
					return errUnauthorized
				}
				return errors.Wrap(err, "finding user by ID")
			}
			if err = usr.CheckCanLogin(); err != nil {
				return err
			}
			ctx.Set(contextUserKey, usr)
			return next(ctx)
		}
	}
}
