package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the stable, machine-readable error category exposed to callers.
type Kind string

const (
	KindAccountNotFound          Kind = "AccountNotFound"
	KindInvalidCredentials       Kind = "InvalidCredentials"
	KindInvalidAmount            Kind = "InvalidAmount"
	KindInsufficientFunds        Kind = "InsufficientFunds"
	KindFeeScheduleInvalid       Kind = "FeeScheduleInvalid"
	KindPartialSettlementFailure Kind = "PartialSettlementFailure"
	KindTimeout                  Kind = "Timeout"
	KindDuplicateSettlement      Kind = "DuplicateSettlement"
	KindAccountExists            Kind = "AccountExists"
	KindCancelled                Kind = "Cancelled"
	KindSettlementNotFound       Kind = "SettlementNotFound"
	KindValidation               Kind = "Validation"
	KindUnauthorized             Kind = "Unauthorized"
	KindRateLimited              Kind = "RateLimited"
	KindInternal                 Kind = "Internal"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Kind       Kind   `json:"kind"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Detail     any    `json:"detail,omitempty"` // Safe, structured context (e.g. partial failure steps)
	Err        error  `json:"-"`                // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, kind Kind, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Kind:       kind,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, kind Kind, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Kind:       kind,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// KindOf returns the Kind of err, or KindInternal for non-AppErrors.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// Is reports whether err is an AppError of the given kind.
func Is(err error, kind Kind) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Kind == kind
}

// ---- Ledger & Settlement (LED) ----

func ErrAccountNotFound(accountNumber string) *AppError {
	return New("LED_001", KindAccountNotFound, fmt.Sprintf("account %s not found", accountNumber), http.StatusNotFound)
}

func ErrInvalidCredentials() *AppError {
	return New("LED_002", KindInvalidCredentials, "Invalid account credentials", http.StatusUnauthorized)
}

func ErrInvalidAmount() *AppError {
	return New("LED_003", KindInvalidAmount, "Invalid amount", http.StatusBadRequest)
}

func ErrInsufficientFunds() *AppError {
	return New("LED_004", KindInsufficientFunds, "Insufficient balance in account", http.StatusPaymentRequired)
}

func ErrFeeScheduleInvalid(reason string) *AppError {
	return New("LED_005", KindFeeScheduleInvalid, "Invalid fee schedule: "+reason, http.StatusUnprocessableEntity)
}

// ErrPartialSettlement reports a settlement that committed some but not all of its
// mutations. detail identifies the committed steps for reconciliation.
func ErrPartialSettlement(detail any, err error) *AppError {
	e := Wrap("LED_006", KindPartialSettlementFailure, "Settlement partially applied, manual reconciliation required", http.StatusInternalServerError, err)
	e.Detail = detail
	return e
}

func ErrTimeout(err error) *AppError {
	return Wrap("LED_007", KindTimeout, "Ledger operation timed out", http.StatusGatewayTimeout, err)
}

func ErrDuplicateSettlement() *AppError {
	return New("LED_008", KindDuplicateSettlement, "Payment reference already used", http.StatusConflict)
}

func ErrAccountExists() *AppError {
	return New("LED_009", KindAccountExists, "Account number already exists", http.StatusConflict)
}

func ErrCancelled(err error) *AppError {
	return Wrap("LED_010", KindCancelled, "Settlement cancelled before funds moved", 499, err)
}

func ErrSettlementNotFound(paymentRef string) *AppError {
	return New("LED_011", KindSettlementNotFound, fmt.Sprintf("settlement %s not found", paymentRef), http.StatusNotFound)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New("AUTH_003", KindUnauthorized, "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", KindRateLimited, "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", KindInternal, "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a request validation error.
func Validation(message string) *AppError {
	return New("VAL_001", KindValidation, message, http.StatusBadRequest)
}
