package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/user"
)

const contextObjectKey = "object"

func authorize(allowed func(ctx echo.Context, claims Claims) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if allowed(ctx, claims) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// requirePermission only lets through the users holding perm.
func requirePermission(perm user.Permission) echo.MiddlewareFunc {
	return authorize(func(_ echo.Context, claims Claims) bool {
		return claims.Can(perm)
	})
}

// selfOrPermission lets through the users holding perm, and the user whose ID is the ":id" param.
// When selfPerm is given, that user must also hold it.
func selfOrPermission(perm user.Permission, selfPerm ...user.Permission) echo.MiddlewareFunc {
	return authorize(func(ctx echo.Context, claims Claims) bool {
		if claims.Can(perm) {
			return true
		}
		if claims.Subject != ctx.Param("id") {
			return false
		}
		return len(selfPerm) == 0 || claims.Can(selfPerm[0])
	})
}

// objectMiddleware loads the object identified by the ":id" param into the context, under contextObjectKey.
func objectMiddleware(get func(ctx echo.Context, id string) (interface{}, error)) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			obj, err := get(ctx, ctx.Param("id"))
			if err != nil {
				return err
			}
			ctx.Set(contextObjectKey, obj)
			return next(ctx)
		}
	}
}
