package models

// Коды ошибок API.
const (
	ErrCodeUnauthorized        = 40101
	ErrCodeTokenExpired        = 40102
	ErrCodeBadRequest          = 40001
	ErrCodeEmptyInput          = 40002
	ErrCodeInputTooLong        = 40003
	ErrCodeInvalidTime         = 40004
	ErrCodeInvalidSquad        = 40005
	ErrCodeInsufficientTickets = 40201
	ErrCodeForbidden           = 40301
	ErrCodeCardNotOwned        = 40302
	ErrCodeNotFound            = 40401
	ErrCodeSessionClosed       = 40901
	ErrCodeDuplicate           = 40902
	ErrCodeTooSoon             = 42901
	ErrCodeInternal            = 50001
)

// ErrorResponse - стандартное тело ответа об ошибке.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
