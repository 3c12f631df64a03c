package domain

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrForbidden            = errors.New("forbidden")
	ErrConflict             = errors.New("conflict")
	ErrBadRequest           = errors.New("bad request")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrAssistantUnavailable = errors.New("assistant unavailable")
)

type AssistantError struct {
	Model string
	Err   error
}

func (e *AssistantError) Error() string {
	return "assistant " + e.Model + ": " + e.Err.Error()
}

func (e *AssistantError) Unwrap() error {
	return e.Err
}

func (e *AssistantError) Is(target error) bool {
	return target == ErrAssistantUnavailable
}
