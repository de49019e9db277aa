package middleware

import (
	"log/slog"
	"net/http"

	jwtlib "arcfolio/internal/lib/jwt"
	"arcfolio/internal/lib/logger/sl"
	"arcfolio/internal/transport/http/dto/response"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
)

const userContextKey = "user"

// AdminOnly пропускает только запросы с валидным bearer токеном и ролью admin
func AdminOnly(log *slog.Logger, secret string) []echo.MiddlewareFunc {
	auth := echojwt.WithConfig(echojwt.Config{
		ContextKey: userContextKey,
		ParseTokenFunc: func(c echo.Context, auth string) (interface{}, error) {
			return jwtlib.ParseToken(auth, secret)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			log.Warn("rejected unauthenticated request",
				slog.String("path", c.Path()),
				sl.Err(err),
			)
			return c.JSON(http.StatusUnauthorized, response.ErrUnauthorized)
		},
	})

	return []echo.MiddlewareFunc{auth, requireAdmin}
}

func requireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims, ok := c.Get(userContextKey).(*jwtlib.Claims)
		if !ok {
			return c.JSON(http.StatusUnauthorized, response.ErrUnauthorized)
		}

		if !claims.IsAdmin() {
			return c.JSON(http.StatusForbidden, response.ErrForbidden)
		}

		return next(c)
	}
}
