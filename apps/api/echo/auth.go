package echoapi

import (
	"sort"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/Digmusic88/MWPanel3.1--sub000/core/history"
	"github.com/Digmusic88/MWPanel3.1--sub000/core/user"
)

const (
	contextTokenKey = "userToken"
	contextUserKey  = "user"
)

// jwtConfig is the JWT auth middleware config for tokens signed by tokens.
func jwtConfig(tokens *user.TokenIssuer) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    tokens.SigningKey(),
		SigningMethod: tokens.SigningMethod(),
		ContextKey:    contextTokenKey,
		Claims:        new(user.Claims),
	}
}

func getContextClaims(ctx echo.Context) (user.Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*user.Claims); ok {
			return *claims, nil
		}
	}
	return user.Claims{}, errUnauthorized
}

// getContextUser loads the authenticated user once per request.
func getContextUser(ctx echo.Context, svc *user.Service) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return user.User{}, errors.Wrap(err, "getting context claims")
	}
	usr, err := svc.GetByID(ctx.Request().Context(), claims.Subject)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, errUnauthorized
		}
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	ctx.Set(contextUserKey, usr)
	return usr, nil
}

func contextHasAnyRole(ctx echo.Context, roles []string) bool {
	if len(roles) == 0 {
		return true
	}
	if claims, err := getContextClaims(ctx); err == nil {
		sort.Strings(claims.Roles)
		for _, role := range roles {
			if i := sort.SearchStrings(claims.Roles, role); i < len(claims.Roles) {
				if match := claims.Roles[i]; role == match {
					return true
				}
			}
		}
	}
	return false
}

// actorMiddleware records the token subject as the actor of every engine change made by the request.
func actorMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		if claims, err := getContextClaims(ctx); err == nil {
			req := ctx.Request()
			ctx.SetRequest(req.WithContext(history.WithActor(req.Context(), claims.Subject)))
		}
		return next(ctx)
	}
}
