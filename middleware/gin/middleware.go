package ginmw

import (
	"github.com/gin-gonic/gin"

	"github.com/reoring/dynform/middleware"
)

// ValidateJSON checks the request body with v, stores the form value in the
// request context on success, or aborts with the error payload.
func ValidateJSON(v *middleware.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := v.Read(c.Request.Context(), c.Request.Body)
		if code := middleware.Status(res, err); code >= 300 {
			c.AbortWithStatusJSON(code, middleware.ErrorPayload(res, err))
			return
		}
		c.Request = c.Request.WithContext(middleware.ContextWithValue(c.Request.Context(), res.Value))
		c.Next()
	}
}

// GetValue fetches the validated form value from gin.Context.
func GetValue(c *gin.Context) (map[string]any, bool) {
	return middleware.ValueFromContext(c.Request.Context())
}
