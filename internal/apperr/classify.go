package apperr

import (
	"errors"
	"strings"

	"github.com/aws/smithy-go"
)

var awsCodeCategories = map[string]string{
	"AccessDeniedException":         CategoryAccessDenied,
	"UnrecognizedClientException":   CategoryAccessDenied,
	"ResourceNotFoundException":     CategoryNotFound,
	"ValidationException":           CategoryInvalidRequest,
	"ThrottlingException":           CategoryThrottled,
	"ServiceQuotaExceededException": CategoryThrottled,
}

// Classify maps a provider error onto an upstream category.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if cat, ok := awsCodeCategories[apiErr.ErrorCode()]; ok {
			return cat
		}
	}
	msg := err.Error()
	for code, cat := range awsCodeCategories {
		if strings.Contains(msg, code) {
			return cat
		}
	}
	lower := strings.ToLower(msg)
	switch {
	case containsAny(lower, "401", "403", "unauthorized", "forbidden", "invalid api key"):
		return CategoryAccessDenied
	case containsAny(lower, "429", "rate limit", "too many requests", "throttl"):
		return CategoryThrottled
	case containsAny(lower, "404", "not found"):
		return CategoryNotFound
	case containsAny(lower, "400", "invalid request", "validation"):
		return CategoryInvalidRequest
	default:
		return CategoryUnavailable
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
