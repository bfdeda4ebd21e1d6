package response

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

const PasswordLengthMessage = "Password must be between 8 and 72 characters"

type Response struct {
	OK         bool   `json:"ok"`
	Message    string `json:"message,omitempty"`
	RetryAfter int64  `json:"retry_after,omitempty"`
}

func OK() Response {
	return Response{OK: true}
}

func Error(msg string) Response {
	return Response{Message: msg}
}

func RateLimited(retryAfterSeconds int64) Response {
	return Response{
		Message:    "Too many requests. Please try again later.",
		RetryAfter: retryAfterSeconds,
	}
}

func ValidationError(errs validator.ValidationErrors) Response {
	var errMsgs []string

	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			errMsgs = append(errMsgs, fmt.Sprintf("%s is required", err.Field()))
		case "email":
			errMsgs = append(errMsgs, fmt.Sprintf("%s must be a valid email address", err.Field()))
		case "min":
			errMsgs = append(errMsgs, fmt.Sprintf("%s must be at least %s characters", err.Field(), err.Param()))
		case "max":
			errMsgs = append(errMsgs, fmt.Sprintf("%s must be at most %s characters", err.Field(), err.Param()))
		default:
			errMsgs = append(errMsgs, fmt.Sprintf("%s is not valid", err.Field()))
		}
	}

	return Response{
		Message: strings.Join(errMsgs, ", "),
	}
}
