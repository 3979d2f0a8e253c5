package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/fpang/noteppt-cli/internal/metrics"
)

// validationModel is the cheapest model accepted by free-tier keys.
const validationModel = "gemini-2.5-flash-lite"

// ValidationError represents a specific type of API key validation failure.
type ValidationError struct {
	Type    ValidationErrorType
	Message string
	Err     error
}

// ValidationErrorType categorizes validation failures.
type ValidationErrorType int

const (
	// ErrTypeNoKey indicates no API key was supplied.
	ErrTypeNoKey ValidationErrorType = iota
	// ErrTypeInvalidKey indicates the API key is invalid or revoked.
	ErrTypeInvalidKey
	// ErrTypeNetworkError indicates a network connectivity issue.
	ErrTypeNetworkError
	// ErrTypeQuotaExceeded indicates the API quota has been exceeded.
	ErrTypeQuotaExceeded
	// ErrTypeUnknown indicates an unknown error occurred.
	ErrTypeUnknown
)

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ContentGenerator is the subset of genai.Models used for key validation.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// ValidateGeminiKey verifies a Gemini API key with a minimal API call before
// it is handed to the backend. The key itself is never logged.
func ValidateGeminiKey(ctx context.Context, apiKey string) error {
	if strings.TrimSpace(apiKey) == "" {
		return &ValidationError{Type: ErrTypeNoKey, Message: "no API key supplied"}
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return &ValidationError{Type: ErrTypeUnknown, Message: "failed to create Gemini client", Err: err}
	}
	return validateWith(ctx, client.Models)
}

func validateWith(ctx context.Context, models ContentGenerator) error {
	log.Debug().Msg("Validating API key with Gemini API")

	start := time.Now()
	resp, err := models.GenerateContent(ctx, validationModel, genai.Text("hi"), nil)
	elapsed := time.Since(start)

	if err != nil {
		valErr := classifyError(err)
		recordValidation(resultLabel(valErr.Type), elapsed)
		return valErr
	}

	if resp == nil || len(resp.Candidates) == 0 {
		log.Warn().Msg("API key validation returned empty response")
		recordValidation("empty_response", elapsed)
		return &ValidationError{
			Type:    ErrTypeUnknown,
			Message: "API returned empty response",
		}
	}

	recordValidation("success", elapsed)
	log.Info().Dur("duration", elapsed).Msg("API key validated successfully")
	return nil
}

func recordValidation(result string, elapsed time.Duration) {
	metrics.New(metrics.Namespace).
		Dimension("Result", result).
		Metric("ApiKeyValidationMs", float64(elapsed.Milliseconds()), metrics.UnitMilliseconds).
		Count("ApiKeyValidationResult").
		Flush()
}

func resultLabel(t ValidationErrorType) string {
	switch t {
	case ErrTypeInvalidKey:
		return "invalid"
	case ErrTypeNetworkError:
		return "network_error"
	case ErrTypeQuotaExceeded:
		return "quota"
	default:
		return "unknown"
	}
}

// classifyError analyzes an error and returns a ValidationError with the appropriate type.
func classifyError(err error) *ValidationError {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return classifyAPIError(apiErr.Code, apiErr.Message, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return classifyAPIError(apiErrPtr.Code, apiErrPtr.Message, err)
	}

	errLower := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errLower, "api key not valid") ||
		strings.Contains(errLower, "invalid api key") ||
		strings.Contains(errLower, "api_key_invalid") ||
		strings.Contains(errLower, "permission denied"):
		log.Error().Err(err).Msg("Invalid API key")
		return &ValidationError{
			Type:    ErrTypeInvalidKey,
			Message: "API key is invalid or has been revoked",
			Err:     err,
		}

	case strings.Contains(errLower, "quota") ||
		strings.Contains(errLower, "resource exhausted") ||
		strings.Contains(errLower, "rate limit"):
		log.Error().Err(err).Msg("API quota exceeded")
		return &ValidationError{
			Type:    ErrTypeQuotaExceeded,
			Message: "API quota exceeded or rate limited",
			Err:     err,
		}

	case strings.Contains(errLower, "connection") ||
		strings.Contains(errLower, "network") ||
		strings.Contains(errLower, "timeout") ||
		strings.Contains(errLower, "dial") ||
		strings.Contains(errLower, "no such host") ||
		strings.Contains(errLower, "unreachable"):
		log.Error().Err(err).Msg("Network error during API validation")
		return &ValidationError{
			Type:    ErrTypeNetworkError,
			Message: "Network error - check your internet connection",
			Err:     err,
		}

	default:
		log.Error().Err(err).Msg("Unknown error during API validation")
		return &ValidationError{
			Type:    ErrTypeUnknown,
			Message: "Failed to validate API key",
			Err:     err,
		}
	}
}

// classifyAPIError categorizes a Google API error by HTTP status code.
func classifyAPIError(code int, message string, err error) *ValidationError {
	switch code {
	case 400:
		log.Error().Int("code", code).Msg("Bad request - possibly invalid API key format")
		return &ValidationError{Type: ErrTypeInvalidKey, Message: "Bad request - API key may be malformed", Err: err}
	case 401, 403:
		log.Error().Int("code", code).Msg("Authentication failed - invalid API key")
		return &ValidationError{Type: ErrTypeInvalidKey, Message: "API key is invalid, expired, or lacks permissions", Err: err}
	case 429:
		log.Error().Int("code", code).Msg("Rate limit exceeded")
		return &ValidationError{Type: ErrTypeQuotaExceeded, Message: "API rate limit exceeded - try again later", Err: err}
	case 500, 502, 503, 504:
		log.Error().Int("code", code).Msg("Server error during validation")
		return &ValidationError{Type: ErrTypeNetworkError, Message: "Gemini API server error - try again later", Err: err}
	default:
		log.Error().Int("code", code).Str("message", message).Msg("Google API error")
		return &ValidationError{Type: ErrTypeUnknown, Message: message, Err: err}
	}
}
