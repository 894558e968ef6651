package transport

import (
	"errors"
	"net/http"

	"storefront/internal/middleware"
	"storefront/internal/service"

	"go.uber.org/zap"
)

// respondWithServiceError maps service errors onto HTTP statuses.
// Anything unrecognised is logged and reported as a 500 without internals.
func respondWithServiceError(w http.ResponseWriter, logger *zap.Logger, err error, action string) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		problems := make([]middleware.ValidationError, 0, len(verr.Problems))
		for _, p := range verr.Problems {
			problems = append(problems, middleware.ValidationError{Field: p.Field, Message: p.Message})
		}
		middleware.RespondWithErrorDetails(w, http.StatusBadRequest, verr.Problems[0].Message, map[string]interface{}{
			"validation_errors": problems,
		})
	case errors.Is(err, service.ErrProductNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, "Product not found")
	case errors.Is(err, service.ErrUserNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, "User not found")
	case errors.Is(err, service.ErrUserAlreadyExists):
		middleware.RespondWithError(w, http.StatusConflict, "Email already exists")
	case errors.Is(err, service.ErrSlugConflict):
		middleware.RespondWithError(w, http.StatusConflict, "Could not allocate a unique slug, retry the request")
	case errors.Is(err, service.ErrUpdateConflict):
		middleware.RespondWithError(w, http.StatusConflict, "Product was modified by another request, retry the update")
	case errors.Is(err, service.ErrInvalidCredentials):
		middleware.RespondWithError(w, http.StatusUnauthorized, "Invalid credentials")
	default:
		logger.Error("Request failed", zap.String("action", action), zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to "+action)
	}
}
