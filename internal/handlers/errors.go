package handlers

import (
	"errors"
	"net/http"

	"github.com/vin-sipoi/jengahacks-api/internal/models"
	"github.com/vin-sipoi/jengahacks-api/internal/services"
	pkghttp "github.com/vin-sipoi/jengahacks-api/pkg/http"
)

// writeServiceError maps a service-layer error onto the response
// envelope. The mapping is the API's error contract: every rejection
// path lands on exactly one machine-readable code.
func writeServiceError(w http.ResponseWriter, err error) {
	var rle *services.RateLimitError
	if errors.As(err, &rle) {
		pkghttp.WriteRateLimited(w, models.CodeRateLimitExceeded,
			"too many registration attempts, try again later", rle.RetryAfter)
		return
	}

	switch {
	case errors.Is(err, models.ErrValidation):
		pkghttp.WriteError(w, http.StatusBadRequest, models.CodeValidationError, err.Error())
	case errors.Is(err, models.ErrRateLimitExceeded):
		pkghttp.WriteRateLimited(w, models.CodeRateLimitExceeded,
			"too many registration attempts, try again later", 0)
	case errors.Is(err, models.ErrBlocked):
		pkghttp.WriteError(w, http.StatusForbidden, models.CodeBlocked,
			"registration is not permitted for this identifier")
	case errors.Is(err, models.ErrDuplicateEmail):
		pkghttp.WriteError(w, http.StatusConflict, models.CodeDuplicateEmail,
			"this email address is already registered")
	case errors.Is(err, models.ErrCaptchaRequired):
		pkghttp.WriteError(w, http.StatusBadRequest, models.CodeCaptchaRequired,
			"captcha verification failed")
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteError(w, http.StatusNotFound, models.CodeNotFound, "resource not found")
	default:
		pkghttp.WriteError(w, http.StatusInternalServerError, models.CodeInternalError,
			"an internal error occurred")
	}
}
