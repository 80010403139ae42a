package rest

import (
	"encoding/json"
	"net/http"

	"github.com/fairgrounds/deltashare/pkg/errors"
	"github.com/fairgrounds/deltashare/server/catalog"
	"github.com/fairgrounds/deltashare/server/query"
	"github.com/fairgrounds/deltashare/server/storage"
	"github.com/rs/zerolog"
)

// Protocol error codes returned in response bodies
const (
	codeUnauthenticated    = "UNAUTHENTICATED"
	codeNotFound           = "RESOURCE_DOES_NOT_EXIST"
	codeInvalidParameter   = "INVALID_PARAMETER_VALUE"
	codeStorageUnavailable = "STORAGE_UNAVAILABLE"
	codeInternal           = "INTERNAL_ERROR"
)

// REST-layer error codes
var (
	ErrMissingToken      = errors.MustNewCode("auth.token_missing")
	ErrInvalidToken      = errors.MustNewCode("auth.token_invalid")
	ErrShareForbidden    = errors.MustNewCode("auth.share_forbidden")
	ErrInvalidPageToken  = errors.MustNewCode("rest.invalid_page_token")
	ErrInvalidMaxResults = errors.MustNewCode("rest.invalid_max_results")
	ErrMalformedBody     = errors.MustNewCode("rest.malformed_body")
)

// errorBody is the wire shape of every error response
type errorBody struct {
	ErrorCode string `json:"errorCode"`
	Message   string `json:"message"`
}

// classify maps an internal error code to HTTP status and protocol code
func classify(err error) (int, string) {
	code := errors.GetCode(err)

	switch code.Package() {
	case "auth":
		return http.StatusUnauthorized, codeUnauthenticated
	}

	switch {
	case code.Equals(catalog.ErrShareNotFound),
		code.Equals(catalog.ErrSchemaNotFound),
		code.Equals(catalog.ErrTableNotFound):
		return http.StatusNotFound, codeNotFound

	case code.Equals(query.ErrConflictingVersion),
		code.Equals(query.ErrInvalidVersion),
		code.Equals(query.ErrVersionNotFound),
		code.Equals(query.ErrInvalidTimestamp),
		code.Equals(query.ErrTimestampOutOfRange),
		code.Equals(query.ErrVersionNotMaterialized),
		code.Equals(ErrInvalidPageToken),
		code.Equals(ErrInvalidMaxResults),
		code.Equals(ErrMalformedBody):
		return http.StatusBadRequest, codeInvalidParameter

	case code.Equals(storage.ErrUnavailable),
		code.Equals(errors.CommonTimeout):
		return http.StatusBadGateway, codeStorageUnavailable
	}

	return http.StatusInternalServerError, codeInternal
}

// writeError renders the error body and logs the failure with the request
// id. Bearer tokens and signed URLs never reach the log or the body.
func writeError(w http.ResponseWriter, r *http.Request, logger zerolog.Logger, err error) {
	status, protocolCode := classify(err)

	message := err.Error()
	if status == http.StatusInternalServerError {
		// Internal detail stays in the log
		message = "internal server error"
	}

	event := logger.Warn()
	if status >= 500 {
		event = logger.Error()
	}
	event.
		Str("request_id", requestIDFrom(r.Context())).
		Str("code", errors.GetCode(err).String()).
		Int("status", status).
		Err(err).
		Msg("Request failed")

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{ErrorCode: protocolCode, Message: message})
}
