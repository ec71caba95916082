package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/goliatone/go-credits/core"
	goerrors "github.com/goliatone/go-errors"
)

// renderError writes the go-errors envelope of err. Errors outside the
// taxonomy are reported as internal without leaking their message.
func renderError(c *gin.Context, err error) {
	status, body := errorResponse(err)
	c.AbortWithStatusJSON(status, ErrorResponse{Error: body})
}

func errorResponse(err error) (int, ErrorBody) {
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich != nil {
		status := rich.Code
		if status < 400 || status > 599 {
			status = http.StatusInternalServerError
		}
		code := strings.TrimSpace(rich.TextCode)
		if code == "" {
			code = core.ErrorInternal
		}
		message := rich.Message
		if fields := rich.AllValidationErrors(); len(fields) > 0 {
			parts := make([]string, 0, len(fields))
			for _, field := range fields {
				parts = append(parts, field.Field+": "+field.Message)
			}
			message = strings.Join(parts, "; ")
		}
		return status, ErrorBody{Code: code, Message: message}
	}
	return http.StatusInternalServerError, ErrorBody{Code: core.ErrorInternal, Message: "internal error"}
}

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: ErrorBody{
		Code:    core.ErrorBadInput,
		Message: message,
	}})
}
