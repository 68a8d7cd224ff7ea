package response

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgconn"

	"edu-platform/backend/internal/apperr"
)

// integrityViolationClass is the SQLSTATE class for constraint violations.
const integrityViolationClass = "23"

const unreadableBodyMessage = "request body is missing or malformed"

// Severity tells the caller how to log a mapped error.
type Severity int

const (
	// SeverityExpected is a client or business failure; log at warn.
	SeverityExpected Severity = iota
	// SeverityUnexpected is a server failure; log at error with the full error.
	SeverityUnexpected
)

// Mapped is the outcome of classifying an error.
type Mapped struct {
	Status   int
	Envelope Envelope
	Severity Severity
}

var businessDomains = map[apperr.Domain]struct{}{
	apperr.DomainAuth:    {},
	apperr.DomainContent: {},
	apperr.DomainComment: {},
	apperr.DomainAction:  {},
	apperr.DomainCache:   {},
	apperr.DomainUpload:  {},
}

// FromError converts err to a status and envelope. Rules are tried in order and
// the first match wins. Messages never include internal error text except for
// coded errors, whose message is client-facing by construction.
func FromError(err error) Mapped {
	var (
		coded     *apperr.Error
		verrs     validator.ValidationErrors
		missing   *apperr.MissingParamError
		typeErr   *apperr.ParamTypeError
		tooLarge  *http.MaxBytesError
		pgErr     *pgconn.PgError
		persisted *apperr.PersistenceError
	)

	if errors.As(err, &coded) {
		if _, ok := businessDomains[coded.Code.Domain()]; ok {
			return expected(http.StatusOK, coded.Code, coded.Message)
		}
	}
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return expected(http.StatusBadRequest, apperr.ValidationFailed, fieldMessage(verrs[0]))
	}
	if errors.As(err, &missing) {
		return expected(http.StatusBadRequest, apperr.MissingParameter, missing.Error())
	}
	if errors.As(err, &typeErr) {
		return expected(http.StatusBadRequest, apperr.ParameterTypeMismatch, typeErr.Error())
	}
	if errors.Is(err, apperr.ErrUnreadableBody) {
		return expected(http.StatusBadRequest, apperr.BadRequest, unreadableBodyMessage)
	}
	if errors.Is(err, apperr.ErrMethodNotAllowed) {
		return expected(http.StatusMethodNotAllowed, apperr.MethodNotAllowed, apperr.MethodNotAllowed.Message())
	}
	if errors.Is(err, apperr.ErrUnsupportedMediaType) {
		return expected(http.StatusUnsupportedMediaType, apperr.UnsupportedMediaType, apperr.UnsupportedMediaType.Message())
	}
	if errors.Is(err, apperr.ErrNoRoute) {
		return expected(http.StatusNotFound, apperr.NotFound, apperr.NotFound.Message())
	}
	if coded != nil {
		switch coded.Code {
		case apperr.Unauthorized:
			return expected(http.StatusUnauthorized, coded.Code, coded.Message)
		case apperr.Forbidden:
			return expected(http.StatusForbidden, coded.Code, coded.Message)
		case apperr.BadRequest, apperr.NotFound, apperr.MethodNotAllowed, apperr.UnsupportedMediaType:
			return expected(coded.Code.Int(), coded.Code, coded.Message)
		case apperr.ValidationFailed, apperr.MissingParameter, apperr.ParameterTypeMismatch:
			return expected(http.StatusBadRequest, coded.Code, coded.Message)
		case apperr.DatabaseConstraint:
			return expected(http.StatusConflict, coded.Code, coded.Message)
		}
	}
	if errors.As(err, &tooLarge) {
		return expected(http.StatusRequestEntityTooLarge, apperr.FileTooLarge, apperr.FileTooLarge.Message())
	}
	if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, integrityViolationClass) {
		return expected(http.StatusConflict, apperr.DatabaseConstraint, apperr.DatabaseConstraint.Message())
	}
	if errors.As(err, &persisted) || pgErr != nil {
		return unexpected(apperr.DatabaseError)
	}
	if coded != nil && coded.Code.Domain() == apperr.DomainPersistence {
		return unexpected(coded.Code)
	}
	return unexpected(apperr.InternalError)
}

func expected(status int, code apperr.Code, msg string) Mapped {
	return Mapped{Status: status, Envelope: errorEnvelope(code, msg), Severity: SeverityExpected}
}

func unexpected(code apperr.Code) Mapped {
	return Mapped{Status: http.StatusInternalServerError, Envelope: errorEnvelope(code, code.Message()), Severity: SeverityUnexpected}
}

func errorEnvelope(code apperr.Code, msg string) Envelope {
	return Envelope{Code: code.Int(), Message: msg, Data: nil, Timestamp: now().Format(TimestampLayout)}
}

// fieldMessage renders the first failed field constraint.
func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return field + " must be at least " + fe.Param() + " characters"
	case "max":
		return field + " must be at most " + fe.Param() + " characters"
	case "email":
		return field + " must be a valid email address"
	case "alphanum":
		return field + " must contain only letters and digits"
	}
	return field + " is invalid"
}

// WriteError maps err, logs it at the level its classification calls for,
// and writes the envelope. A 401 carries a Bearer challenge.
func WriteError(ctx context.Context, w http.ResponseWriter, logger *slog.Logger, err error) {
	m := FromError(err)
	if logger != nil {
		switch m.Severity {
		case SeverityUnexpected:
			logger.ErrorContext(ctx, "request failed", "code", m.Envelope.Code, "status", m.Status, "error", err)
		default:
			logger.WarnContext(ctx, "request rejected", "code", m.Envelope.Code, "status", m.Status, "reason", m.Envelope.Message)
		}
	}
	if m.Status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	}
	WriteJSON(w, m.Status, m.Envelope)
}

// HandlerFunc is an HTTP handler that reports failure by returning an error.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// Handle adapts h to http.HandlerFunc, writing any returned error with WriteError.
func Handle(logger *slog.Logger, h HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			WriteError(r.Context(), w, logger, err)
		}
	}
}
