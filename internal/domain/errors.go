package domain

import (
	"errors"
)

// Виды ошибок. Транспорт сопоставляет их со статусами ответа.
var (
	ErrNotFound     = errors.New("не найдено")
	ErrValidation   = errors.New("ошибка валидации")
	ErrForbidden    = errors.New("доступ запрещен")
	ErrConflict     = errors.New("конфликт")
	ErrUnauthorized = errors.New("требуется авторизация")
)

// Error - ошибка с сообщением для клиента.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func NotFound(message string) error {
	return &Error{Kind: ErrNotFound, Message: message}
}

func Validation(message string) error {
	return &Error{Kind: ErrValidation, Message: message}
}

func Forbidden(message string) error {
	return &Error{Kind: ErrForbidden, Message: message}
}

func Conflict(message string) error {
	return &Error{Kind: ErrConflict, Message: message}
}

func Unauthorized(message string) error {
	return &Error{Kind: ErrUnauthorized, Message: message}
}
