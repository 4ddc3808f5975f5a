package api

import (
	"errors"

	"brain-core/internal/apperr"

	"github.com/gin-gonic/gin"
)

// writeErr translates an apperr.Error (or any plain error, which
// defaults to Internal) into the {code, error} JSON body the
// reference service's handlers use, at the status code named in §6.
func writeErr(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	body := gin.H{"code": kind.String(), "error": err.Error()}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		for k, v := range ae.Detail {
			body[k] = v
		}
	}
	c.JSON(apperr.StatusCode(kind), body)
}
