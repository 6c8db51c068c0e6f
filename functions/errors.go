package functions

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/etnz/immotax"
	"github.com/etnz/immotax/filestore"
	"github.com/etnz/immotax/store"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	// ErrUnauthenticated is returned for requests without a valid token.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrDuplicate is returned when creating an entity that duplicates an existing one.
	ErrDuplicate = errors.New("duplicate entity")
	// ErrIntegration wraps the failures of the external services: mail, LLM, webhooks, storage.
	ErrIntegration = errors.New("integration failed")
)

// integration marks err as a failure of an external service.
func integration(service string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrIntegration, service, err)
}

// errorResponse is the body of an error response.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// status maps an error to its HTTP status and code.
func status(err error) (int, string) {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized, "UNAUTHENTICATED"
	case errors.Is(err, store.ErrNotFound), errors.Is(err, filestore.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, ErrDuplicate):
		return http.StatusConflict, "DUPLICATE"
	case errors.Is(err, immotax.ErrValidation), errors.Is(err, immotax.ErrOversell):
		return http.StatusBadRequest, "VALIDATION"
	case errors.Is(err, ErrIntegration):
		return http.StatusBadGateway, "INTEGRATION"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

// respondError writes err as a JSON error response.
func respondError(c *gin.Context, err error) {
	code, name := status(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		logger(c).Error("internal error", zap.Error(err))
		msg = "internal error"
	}
	c.AbortWithStatusJSON(code, errorResponse{Error: msg, Code: name})
}

// bindError marks a request decoding error as a validation error.
func bindError(err error) error {
	return fmt.Errorf("%w: invalid request body: %w", immotax.ErrValidation, err)
}
