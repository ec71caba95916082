package core

import (
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodePrefix = "CREDITS_"

	ErrorUnauthorized         = "CREDITS_UNAUTHORIZED"
	ErrorNotFound             = "CREDITS_NOT_FOUND"
	ErrorDuplicate            = "CREDITS_DUPLICATE"
	ErrorAlreadyRetired       = "CREDITS_ALREADY_RETIRED"
	ErrorInsufficientQuantity = "CREDITS_INSUFFICIENT_QUANTITY"
	ErrorInsufficientPayment  = "CREDITS_INSUFFICIENT_PAYMENT"
	ErrorInsufficientBalance  = "CREDITS_INSUFFICIENT_BALANCE"
	ErrorExpired              = "CREDITS_EXPIRED"
	ErrorInvalidSeller        = "CREDITS_INVALID_SELLER"
	ErrorBadInput             = "CREDITS_BAD_INPUT"
	ErrorInternal             = "CREDITS_INTERNAL_ERROR"
)

// ErrInsufficientFunds is returned by balance ledgers when a debit would
// overdraw an account.
var ErrInsufficientFunds = errors.New("core: insufficient funds")

func AuthorizationError(message string) *goerrors.Error {
	return newCreditsError(message, goerrors.CategoryAuthz, http.StatusForbidden, ErrorUnauthorized)
}

func NotFoundError(message string) *goerrors.Error {
	return newCreditsError(message, goerrors.CategoryNotFound, http.StatusNotFound, ErrorNotFound)
}

func DuplicateError(message string) *goerrors.Error {
	return newCreditsError(message, goerrors.CategoryConflict, http.StatusConflict, ErrorDuplicate)
}

func AlreadyRetiredError(message string) *goerrors.Error {
	return newCreditsError(message, goerrors.CategoryConflict, http.StatusConflict, ErrorAlreadyRetired)
}

func InsufficientQuantityError(message string) *goerrors.Error {
	return newCreditsError(message, goerrors.CategoryBadInput, http.StatusBadRequest, ErrorInsufficientQuantity)
}

func InsufficientPaymentError(message string) *goerrors.Error {
	return newCreditsError(message, goerrors.CategoryBadInput, http.StatusBadRequest, ErrorInsufficientPayment)
}

func InsufficientBalanceError(message string) *goerrors.Error {
	return newCreditsError(message, goerrors.CategoryBadInput, http.StatusBadRequest, ErrorInsufficientBalance)
}

func ExpiredError(message string) *goerrors.Error {
	return newCreditsError(message, goerrors.CategoryOperation, http.StatusUnprocessableEntity, ErrorExpired)
}

func InvalidSellerError(message string) *goerrors.Error {
	return newCreditsError(message, goerrors.CategoryOperation, http.StatusUnprocessableEntity, ErrorInvalidSeller)
}

func BadInputError(message string) *goerrors.Error {
	return newCreditsError(message, goerrors.CategoryBadInput, http.StatusBadRequest, ErrorBadInput)
}

func fieldError(field string, message string) *goerrors.Error {
	return goerrors.NewValidation("core: validation failed", goerrors.FieldError{
		Field:   field,
		Message: message,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorBadInput).
		WithSeverity(goerrors.SeverityError)
}

func newCreditsError(message string, category goerrors.Category, code int, textCode string) *goerrors.Error {
	return goerrors.New(message, category).
		WithCode(code).
		WithTextCode(textCode)
}

// IsErrorCode reports whether err carries the given text code.
func IsErrorCode(err error, textCode string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr == nil {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(richErr.TextCode), strings.TrimSpace(textCode))
}

func serviceErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureServiceErrorEnvelope(richErr)
	}
	if errors.Is(err, ErrInsufficientFunds) {
		return InsufficientBalanceError(err.Error())
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "not found"):
		return NotFoundError(err.Error())
	case strings.Contains(msg, "unique constraint"), strings.Contains(msg, "duplicate key"):
		return DuplicateError(err.Error())
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return BadInputError(err.Error())
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureServiceErrorEnvelope(mapped)
}

func ensureServiceErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = serviceHTTPStatus(err.Category)
	}
	if !strings.HasPrefix(strings.TrimSpace(err.TextCode), textCodePrefix) {
		err.TextCode = defaultServiceTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultServiceTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrorBadInput
	case goerrors.CategoryNotFound:
		return ErrorNotFound
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return ErrorUnauthorized
	case goerrors.CategoryConflict:
		return ErrorDuplicate
	default:
		return ErrorInternal
	}
}

func serviceHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryOperation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
