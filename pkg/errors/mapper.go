package errors

import (
	"errors"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

// Mapper maps domain errors to HTTP status codes
type Mapper struct {
	logger zerolog.Logger
}

// NewMapper creates a new error mapper
func NewMapper(logger zerolog.Logger) *Mapper {
	return &Mapper{logger: logger}
}

// MapErrorToHTTP maps an error to HTTP status code and message
func (m *Mapper) MapErrorToHTTP(err error) (int, string) {
	if err == nil {
		return fasthttp.StatusOK, ""
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return fasthttp.StatusBadRequest, validationErr.Error()
	}

	var authErr *AuthorizationError
	if errors.As(err, &authErr) {
		return fasthttp.StatusUnauthorized, authErr.Error()
	}

	var notFoundErr *NotFoundError
	if errors.As(err, &notFoundErr) {
		return fasthttp.StatusNotFound, notFoundErr.Error()
	}

	var noAccountErr *NoAccountAvailableError
	if errors.As(err, &noAccountErr) {
		return fasthttp.StatusConflict, noAccountErr.Error()
	}

	var rateLimitErr *RateLimitExceededError
	if errors.As(err, &rateLimitErr) {
		return fasthttp.StatusTooManyRequests, rateLimitErr.Error()
	}

	var transientErr *TransientConnectionError
	if errors.As(err, &transientErr) {
		return fasthttp.StatusBadGateway, transientErr.Error()
	}

	var storeErr *StoreUnavailableError
	if errors.As(err, &storeErr) {
		m.logger.Warn().Err(err).Msg("store unavailable")
		return fasthttp.StatusServiceUnavailable, storeErr.Error()
	}

	var internalErr *InternalError
	if errors.As(err, &internalErr) {
		m.logger.Error().Err(err).Msg("internal server error")
		return fasthttp.StatusInternalServerError, internalErr.Error()
	}

	m.logger.Error().Err(err).Msg("unmapped error")
	return fasthttp.StatusInternalServerError, "internal server error"
}
