package models

import "errors"

// Ошибки уровня приложения. Обработчики сопоставляют их с HTTP-статусами через errors.Is.
var (
	// Доступ и ресурсы
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrNotFound          = errors.New("resource not found")
	ErrCharacterNotFound = errors.New("character not found")
	ErrPlayerNotFound    = errors.New("player not found")

	// Token Errors
	ErrTokenInvalid   = errors.New("token is invalid")
	ErrTokenMalformed = errors.New("token is malformed")
	ErrTokenExpired   = errors.New("token has expired")

	// Переговоры
	ErrSessionClosed       = errors.New("negotiation session is already closed")
	ErrOpenSessionExists   = errors.New("open session already exists for this pair")
	ErrEmptyInput          = errors.New("proposal text is empty")
	ErrInputTooLong        = errors.New("proposal text is too long")
	ErrTooSoon             = errors.New("previous proposal is still awaiting a reply")
	ErrInsufficientTickets = errors.New("not enough tickets")

	// Мини-игры
	ErrInvalidCompletionTime = errors.New("completion time is out of range")
	ErrDuplicateSubmission   = errors.New("duplicate minigame submission")

	// Отряды
	ErrInvalidSquad = errors.New("unit must consist of 5 distinct cards and a name")
	ErrCardNotOwned = errors.New("unit contains a card the player does not own")

	ErrBadRequest = errors.New("bad request")
)
