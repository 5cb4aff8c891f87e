package errors

import (
	"fmt"
	"strings"
)

type Messages map[string]string

type AppError struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	HTTPCode int    `json:"-"`

	messages Messages
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches on Code so callers can use errors.Is against a fresh constructor.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

func (e *AppError) Localize(lang string) *AppError {
	base := baseLanguage(lang)

	msg, ok := e.messages[base]
	if !ok {
		msg, ok = e.messages["en"]
	}
	if !ok {
		msg = e.Message
	}

	return &AppError{
		Code:     e.Code,
		Message:  msg,
		HTTPCode: e.HTTPCode,
		messages: e.messages,
	}
}

func New(code string, httpCode int, message string) *AppError {
	return newAppError(code, httpCode, Messages{"en": message})
}

func newAppError(code string, httpCode int, msgs Messages) *AppError {
	return &AppError{
		Code:     code,
		Message:  msgs["en"],
		HTTPCode: httpCode,
		messages: msgs,
	}
}

func catalogError(code string, httpCode int) *AppError {
	msgs := Messages{}
	for lang, entries := range messages {
		if msg, ok := entries[code]; ok {
			msgs[lang] = msg
		}
	}
	return newAppError(code, httpCode, msgs)
}

func (e *AppError) withDetail(detail string) *AppError {
	msgs := make(Messages, len(e.messages))
	for lang, msg := range e.messages {
		msgs[lang] = fmt.Sprintf("%s: %s", msg, detail)
	}
	return newAppError(e.Code, e.HTTPCode, msgs)
}

func baseLanguage(lang string) string {
	base := strings.SplitN(lang, "-", 2)[0]
	return strings.TrimSpace(strings.ToLower(base))
}
