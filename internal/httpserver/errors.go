package httpserver

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"storefront/internal/domain"
)

func statusFor(code string) int {
	switch code {
	case domain.EINVALID:
		return http.StatusUnprocessableEntity
	case domain.ENOTFOUND:
		return http.StatusNotFound
	case domain.EEMPTYCART, domain.ECONFLICT:
		return http.StatusConflict
	case domain.EUNAUTHORIZED:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as JSON and aborts the chain. Server-side
// failures are attached to the context so the request log carries them.
func respondError(c *gin.Context, err error) {
	status := statusFor(domain.ErrorCode(err))
	body := gin.H{"message": domain.ErrorMessage(err)}
	if fields := domain.ErrorFields(err); len(fields) > 0 {
		body["errors"] = fields
	}
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, body)
}

func bindJSON(c *gin.Context, op string, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, domain.WrapError(err, domain.EINVALID, op, "The request body is not valid JSON."))
		return false
	}
	return true
}

// int64Param reads a numeric path parameter. Anything unparsable is
// reported as a missing resource.
func int64Param(c *gin.Context, name, resource string) (int64, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		respondError(c, domain.NotFound("http.param", resource, raw))
		return 0, false
	}
	return id, true
}

func intQuery(c *gin.Context, name string) int {
	n, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return 0
	}
	return n
}
