package util

import (
	"errors"
	"net/http"
)

var (
	ErrDuplicateAttempt    = errors.New("an in-progress attempt already exists for this test set")
	ErrSubmissionClosed    = errors.New("submission is closed for this operation")
	ErrNotFound            = errors.New("resource not found")
	ErrInvalidQuestionType = errors.New("operation not allowed for this question type")
	ErrOutOfRange          = errors.New("manual score out of range")
	ErrPermissionDenied    = errors.New("permission denied")
	ErrInvalidRecording    = errors.New("invalid recording file")
	ErrInvalidAnswerData   = errors.New("answer data must be valid JSON")
	ErrInvalidFilter       = errors.New("invalid queue filter")
)

// StatusFor 将业务错误映射为 HTTP 状态码，未知错误返回 500
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicateAttempt), errors.Is(err, ErrSubmissionClosed):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidQuestionType), errors.Is(err, ErrOutOfRange),
		errors.Is(err, ErrInvalidRecording), errors.Is(err, ErrInvalidAnswerData), errors.Is(err, ErrInvalidFilter):
		return http.StatusBadRequest
	case errors.Is(err, ErrPermissionDenied):
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// ErrorKind 返回给前端的错误类型标识
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrDuplicateAttempt):
		return "DuplicateAttempt"
	case errors.Is(err, ErrSubmissionClosed):
		return "SubmissionClosed"
	case errors.Is(err, ErrInvalidQuestionType):
		return "InvalidQuestionType"
	case errors.Is(err, ErrOutOfRange):
		return "OutOfRange"
	case errors.Is(err, ErrPermissionDenied):
		return "PermissionDenied"
	case errors.Is(err, ErrInvalidRecording):
		return "InvalidRecording"
	case errors.Is(err, ErrInvalidAnswerData):
		return "InvalidAnswerData"
	case errors.Is(err, ErrInvalidFilter):
		return "InvalidFilter"
	}
	return "Internal"
}
