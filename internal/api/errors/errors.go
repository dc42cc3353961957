// Package errors provides error handling and HTTP status code mapping.
package errors

import (
	"errors"
	"net/http"

	"github.com/remiblancher/wincert/internal/api/dto"
	"github.com/remiblancher/wincert/internal/api/service"
	"github.com/remiblancher/wincert/internal/certstore"
	"github.com/remiblancher/wincert/internal/config"
	"github.com/remiblancher/wincert/internal/iis"
	"github.com/remiblancher/wincert/internal/psoutput"
	"github.com/remiblancher/wincert/internal/remote"
)

// Error codes for API responses.
const (
	CodeInvalidRequest          = "INVALID_REQUEST"
	CodeNotFound                = "NOT_FOUND"
	CodeValidation              = "VALIDATION_ERROR"
	CodeInternal                = "INTERNAL_ERROR"
	CodeRateLimited             = "RATE_LIMITED"
	CodeHostNotFound            = "HOST_NOT_FOUND"
	CodeInvalidTarget           = "INVALID_TARGET"
	CodeUnrecognizedMaterial    = "UNRECOGNIZED_MATERIAL"
	CodeInventoryUnavailable    = "INVENTORY_UNAVAILABLE"
	CodeBindingQueryUnavailable = "BINDING_QUERY_UNAVAILABLE"
	CodeStageFailed             = "STAGE_FAILED"
	CodeImportFailed            = "IMPORT_FAILED"
	CodeReconciliationFailed    = "RECONCILIATION_FAILED"
	CodeMalformedOutput         = "MALFORMED_OUTPUT"
	CodeHostUnreachable         = "HOST_UNREACHABLE"
)

// MapError maps an internal error to an HTTP status code and APIError.
func MapError(err error) (int, *dto.APIError) {
	if err == nil {
		return http.StatusOK, nil
	}

	status, code := classify(err)
	apiErr := &dto.APIError{Code: code, Message: err.Error()}
	if status == http.StatusInternalServerError {
		apiErr.Message = "An internal error occurred"
	}

	var storeErr *certstore.StoreError
	var bindErr *iis.BindingError
	switch {
	case errors.As(err, &storeErr):
		apiErr.Details = map[string]string{
			"operation": storeErr.Op,
			"host":      storeErr.Host,
		}
		if storeErr.Store != "" {
			apiErr.Details["store"] = storeErr.Store
		}
	case errors.As(err, &bindErr):
		apiErr.Details = map[string]string{
			"operation": bindErr.Op,
			"host":      bindErr.Host,
		}
		if bindErr.Site != "" {
			apiErr.Details["site"] = bindErr.Site
		}
	}
	return status, apiErr
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, config.ErrUnknownHost):
		return http.StatusNotFound, CodeHostNotFound
	case errors.Is(err, iis.ErrInvalidTarget):
		return http.StatusBadRequest, CodeInvalidTarget
	case errors.Is(err, service.ErrInvalidRequest):
		return http.StatusBadRequest, CodeInvalidRequest
	case errors.Is(err, certstore.ErrUnrecognizedMaterial):
		return http.StatusBadRequest, CodeUnrecognizedMaterial
	case errors.Is(err, certstore.ErrInventoryUnavailable):
		return http.StatusBadGateway, CodeInventoryUnavailable
	case errors.Is(err, iis.ErrBindingQueryUnavailable):
		return http.StatusBadGateway, CodeBindingQueryUnavailable
	case errors.Is(err, certstore.ErrStageFailed):
		return http.StatusBadGateway, CodeStageFailed
	case errors.Is(err, psoutput.ErrMalformedExitMarker):
		return http.StatusBadGateway, CodeMalformedOutput
	case errors.Is(err, certstore.ErrImportFailed):
		return http.StatusUnprocessableEntity, CodeImportFailed
	case errors.Is(err, iis.ErrReconciliationFailed):
		return http.StatusUnprocessableEntity, CodeReconciliationFailed
	case errors.Is(err, remote.ErrOpenFailed), errors.Is(err, remote.ErrSessionClosed):
		return http.StatusBadGateway, CodeHostUnreachable
	}
	return http.StatusInternalServerError, CodeInternal
}

// NewBadRequest creates a bad request error.
func NewBadRequest(message string) *dto.APIError {
	return &dto.APIError{
		Code:    CodeInvalidRequest,
		Message: message,
	}
}

// NewNotFound creates a not found error.
func NewNotFound(resource, id string) *dto.APIError {
	return &dto.APIError{
		Code:    CodeNotFound,
		Message: resource + " not found",
		Details: map[string]string{"id": id},
	}
}

// NewValidationError creates a validation error.
func NewValidationError(message string, details map[string]string) *dto.APIError {
	return &dto.APIError{
		Code:    CodeValidation,
		Message: message,
		Details: details,
	}
}
