package echomw

import (
	"github.com/labstack/echo/v4"

	"github.com/reoring/dynform/middleware"
)

// ValidateJSON checks the request body with v, stores the form value in the
// request context on success, or responds with the error payload.
func ValidateJSON(v *middleware.Validator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			res, err := v.Read(req.Context(), req.Body)
			if code := middleware.Status(res, err); code >= 300 {
				return c.JSON(code, middleware.ErrorPayload(res, err))
			}
			c.SetRequest(req.WithContext(middleware.ContextWithValue(req.Context(), res.Value)))
			return next(c)
		}
	}
}

// GetValue fetches the validated form value from echo.Context.
func GetValue(c echo.Context) (map[string]any, bool) {
	return middleware.ValueFromContext(c.Request().Context())
}
