package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fpang/noteppt-cli/internal/auth"
)

// ResolveFile checks that path exists and is a regular file, then returns
// the absolute path.
func ResolveFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("file not found: %s", path)
		}
		return "", fmt.Errorf("failed to access %s: %w", path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory, not a PDF file", path)
	}

	if absPath, err := filepath.Abs(path); err == nil {
		path = absPath
	}
	return path, nil
}

// ValidationMessage maps an auth.ValidationError to user-facing text.
func ValidationMessage(err error) string {
	var validationErr *auth.ValidationError
	if !errors.As(err, &validationErr) {
		return "Unexpected error during API key validation"
	}
	switch validationErr.Type {
	case auth.ErrTypeNoKey:
		return "No API key supplied. Pass --api-key or set " + auth.OverrideEnvVar
	case auth.ErrTypeInvalidKey:
		return "Invalid API key. Please check your API key and try again"
	case auth.ErrTypeNetworkError:
		return "Network error. Please check your internet connection"
	case auth.ErrTypeQuotaExceeded:
		return "API quota exceeded. Please try again later or check your usage limits"
	default:
		return "API key validation failed"
	}
}

// IdentityMessage maps an auth.IdentityError to user-facing text.
func IdentityMessage(err error) string {
	var identityErr *auth.IdentityError
	if !errors.As(err, &identityErr) {
		return "Could not resolve an identity for this session"
	}
	switch identityErr.Type {
	case auth.ErrTypeNoIdentity:
		return "No identity configured. Pass --identity or set " + auth.IdentityEnvVar
	case auth.ErrTypeDecryptFailed:
		return "Could not decrypt the identity file. Check your GPG setup"
	default:
		return "Could not resolve an identity for this session"
	}
}
