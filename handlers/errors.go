package handlers

import (
	"errors"
	"net/http"
	"strings"

	"canteen-orders-api/apperrors"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// retryAfterSeconds is sent with errors the client may simply repeat
const retryAfterSeconds = "1"

var statusByCode = map[apperrors.Code]int{
	apperrors.CodeInvalidItem:            http.StatusBadRequest,
	apperrors.CodeEmptySelection:         http.StatusBadRequest,
	apperrors.CodeInvalidSortMode:        http.StatusBadRequest,
	apperrors.CodeInvalidDay:             http.StatusBadRequest,
	apperrors.CodeInvalidRequest:         http.StatusBadRequest,
	apperrors.CodeCutoffExceeded:         http.StatusUnprocessableEntity,
	apperrors.CodeNothingToCancel:        http.StatusNotFound,
	apperrors.CodeNotFound:               http.StatusNotFound,
	apperrors.CodeCapacityReached:        http.StatusConflict,
	apperrors.CodeInvalidTransition:      http.StatusConflict,
	apperrors.CodeTransientStoreConflict: http.StatusServiceUnavailable,
}

// StatusFor maps a domain error to its HTTP status
func StatusFor(err error) int {
	if status, ok := statusByCode[apperrors.CodeOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// respondError writes err as {"error", "code", "details"}. Unexpected
// errors are attached to the gin context for the request log and hidden
// from the client.
func respondError(c *gin.Context, err error) {
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal server error",
			"code":  apperrors.CodeUnknown,
		})
		return
	}

	if appErr.Code.Retryable() {
		c.Error(err)
		c.Header("Retry-After", retryAfterSeconds)
	}
	body := gin.H{"error": appErr.Message, "code": appErr.Code}
	if len(appErr.Metadata) > 0 {
		body["details"] = appErr.Metadata
	}
	c.JSON(StatusFor(err), body)
}

// bindError turns a request binding failure into a domain error. Line
// validation failures are reported as invalid items.
func bindError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fe.Namespace()+" failed "+fe.Tag())
			if fe.Field() == "ItemID" || fe.Field() == "Quantity" {
				return apperrors.WithMetadata(apperrors.CodeInvalidItem,
					"invalid order line: "+fe.Namespace()+" failed "+fe.Tag(),
					map[string]string{"field": fe.Namespace()})
			}
		}
		return apperrors.New(apperrors.CodeInvalidRequest, "invalid request: "+strings.Join(fields, "; "))
	}
	return apperrors.Wrap(apperrors.CodeInvalidRequest, "invalid request body", err)
}
