package api

import (
	"github.com/gin-gonic/gin"

	"github.com/lummalabs/lumma-core/internal/errors"
	"github.com/lummalabs/lumma-core/pkg/logger"
)

// ErrorMiddleware maps typed domain errors onto HTTP statuses and the
// uniform failure envelope. Storage causes are logged server-side only;
// callers get a generic message.
func ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err
		logger.LogError(err)
		switch err.(type) {
		case *errors.ValidationError:
			fail(c, 400, err.Error())
		case *errors.NotFoundError:
			fail(c, 404, err.Error())
		case *errors.ConflictError:
			fail(c, 409, err.Error())
		case *errors.AuthorizationError:
			fail(c, 401, err.Error())
		default:
			fail(c, 500, "internal server error")
		}
		c.Abort()
	}
}

func ok(c *gin.Context, data gin.H) {
	c.JSON(200, gin.H{"ok": true, "data": data})
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"ok": false, "error": message})
}
