package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"

	"github.com/openai/openai-go"
)

// ErrEmptyResponse is returned when the model answers with blank text.
var ErrEmptyResponse = errors.New("empty model response")

// Category is a coarse, human-facing classification of a generation failure.
type Category string

const (
	CategoryMissingConfig      Category = "missing_config"
	CategoryConnectionRefused  Category = "connection_refused"
	CategoryModelNotFound      Category = "model_not_found"
	CategoryTimeout            Category = "timeout"
	CategoryInvalidCredentials Category = "invalid_credentials"
	CategoryQuotaOrPermission  Category = "quota_or_permission"
	CategorySafetyBlock        Category = "safety_block"
	CategoryEmptyResponse      Category = "empty_response"
	CategoryUnknown            Category = "unknown"
)

// Failure is the error type returned by Client. Match it with errors.As.
type Failure struct {
	Category Category
	Provider Name
	Model    string
	Err      error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s/%s: %v", f.Category, f.Provider, f.Model, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Hint is a one-line suggestion for the operator.
func (f *Failure) Hint() string {
	switch f.Category {
	case CategoryMissingConfig:
		return "check LLM_PROVIDER, MODEL_NAME and the provider API key"
	case CategoryConnectionRefused:
		if f.Provider == Ollama {
			return "is the Ollama server running at OLLAMA_BASE_URL?"
		}
		return "the provider endpoint refused the connection"
	case CategoryModelNotFound:
		if f.Provider == Ollama {
			return fmt.Sprintf("pull the model first: ollama pull %s", f.Model)
		}
		return "check MODEL_NAME"
	case CategoryTimeout:
		return "the request timed out; the model may be busy or the prompt too large"
	case CategoryInvalidCredentials:
		return "the API key was rejected"
	case CategoryQuotaOrPermission:
		return "permission denied or quota exhausted"
	case CategorySafetyBlock:
		return "the provider blocked the content"
	case CategoryEmptyResponse:
		return "the model returned no text"
	default:
		return "see the log for details"
	}
}

// CategoryOf returns the category of err, or CategoryUnknown when err is not a *Failure.
func CategoryOf(err error) Category {
	var f *Failure
	if errors.As(err, &f) {
		return f.Category
	}
	return CategoryUnknown
}

// Categorize maps a transport or API error onto a Category.
func Categorize(err error) Category {
	if err == nil {
		return ""
	}
	var f *Failure
	if errors.As(err, &f) {
		return f.Category
	}
	if errors.Is(err, ErrEmptyResponse) {
		return CategoryEmptyResponse
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return CategoryConnectionRefused
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CategoryTimeout
	}

	msg := strings.ToLower(err.Error())

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 401:
			return CategoryInvalidCredentials
		case 403, 429:
			return CategoryQuotaOrPermission
		case 404:
			return CategoryModelNotFound
		case 408, 504:
			return CategoryTimeout
		case 400:
			if strings.Contains(msg, "api key not valid") || strings.Contains(msg, "api_key_invalid") {
				return CategoryInvalidCredentials
			}
		}
	}

	switch {
	case strings.Contains(msg, "connection refused") || strings.Contains(msg, "failed to connect"):
		return CategoryConnectionRefused
	case strings.Contains(msg, "api key not valid"):
		return CategoryInvalidCredentials
	case strings.Contains(msg, "permission denied") || strings.Contains(msg, "quota"):
		return CategoryQuotaOrPermission
	case strings.Contains(msg, "safety") || strings.Contains(msg, "blocked"):
		return CategorySafetyBlock
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
		return CategoryTimeout
	case strings.Contains(msg, "404") && strings.Contains(msg, "model"):
		return CategoryModelNotFound
	}
	return CategoryUnknown
}

func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == 429 {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests")
}

func isServerError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode >= 500 {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "internal server error") ||
		strings.Contains(errStr, "server_error")
}
