// Package auth resolves the opaque per-session identity token and the
// optional per-request credential override. Neither value is ever written
// to disk by this package or logged.
package auth

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

const (
	// IdentityEnvVar supplies the identity token directly.
	IdentityEnvVar = "NOTEPPT_IDENTITY"

	credentialDir = ".noteppt"
	identityFile  = "identity.gpg"
)

// IdentityErrorType categorizes identity resolution failures.
type IdentityErrorType int

const (
	// ErrTypeNoIdentity indicates no identity source produced a token.
	ErrTypeNoIdentity IdentityErrorType = iota
	// ErrTypeDecryptFailed indicates the GPG identity file could not be decrypted.
	ErrTypeDecryptFailed
	// ErrTypeUnknownIdentity indicates an unexpected failure.
	ErrTypeUnknownIdentity
)

// IdentityError represents a specific type of identity resolution failure.
type IdentityError struct {
	Type    IdentityErrorType
	Message string
	Err     error
}

func (e *IdentityError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *IdentityError) Unwrap() error {
	return e.Err
}

// GetIdentity retrieves the identity token from available sources.
// Priority order:
//  1. explicit value (e.g. --identity flag)
//  2. NOTEPPT_IDENTITY environment variable
//  3. GPG-encrypted file at ~/.noteppt/identity.gpg
func GetIdentity(explicit string) (Identity, error) {
	if v := strings.TrimSpace(explicit); v != "" {
		log.Debug().Msg("Using identity from command line")
		return Identity(v), nil
	}

	if v := strings.TrimSpace(os.Getenv(IdentityEnvVar)); v != "" {
		log.Debug().Msg("Using identity from environment variable")
		return Identity(v), nil
	}

	token, err := getFromGPG()
	if err == nil && token != "" {
		log.Debug().Msg("Using identity from GPG encrypted file")
		return Identity(token), nil
	}

	if err != nil && !errors.Is(err, errNoIdentityFile) {
		return "", &IdentityError{
			Type:    ErrTypeDecryptFailed,
			Message: "failed to decrypt identity file",
			Err:     err,
		}
	}

	return "", &IdentityError{
		Type:    ErrTypeNoIdentity,
		Message: fmt.Sprintf("no identity found; pass --identity, set %s, or create ~/%s/%s", IdentityEnvVar, credentialDir, identityFile),
	}
}

var errNoIdentityFile = errors.New("identity file not found")

// getFromGPG decrypts the identity token from the GPG-encrypted file.
func getFromGPG() (string, error) {
	credPath, err := getCredentialPath()
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(credPath); os.IsNotExist(err) {
		return "", fmt.Errorf("%w at %s", errNoIdentityFile, credPath)
	}

	log.Debug().Str("file", credPath).Msg("Decrypting GPG identity")

	// Build GPG command with optional passphrase file for non-interactive use
	args := []string{"--decrypt", "--quiet"}

	if passphrasePath, err := getPassphrasePath(); err == nil {
		fi, statErr := os.Stat(passphrasePath)
		if statErr == nil {
			// Passphrase file must be owner-only
			mode := fi.Mode().Perm()
			if mode&0077 != 0 {
				log.Warn().
					Str("passphrase_file", passphrasePath).
					Str("permissions", fmt.Sprintf("%04o", mode)).
					Msg("Passphrase file has insecure permissions (should be 0600); skipping")
			} else {
				log.Debug().Str("passphrase_file", passphrasePath).Msg("Using passphrase file for GPG decryption")
				args = append(args, "--pinentry-mode", "loopback", "--passphrase-file", passphrasePath)
			}
		}
	}

	args = append(args, credPath)
	output, err := exec.Command("gpg", args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("GPG decryption failed: %s", strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("GPG decryption failed: %w", err)
	}

	return strings.TrimSpace(string(output)), nil
}

// getCredentialPath returns the full path to the identity file.
func getCredentialPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(home, credentialDir, identityFile), nil
}

// getPassphrasePath returns the path to the GPG passphrase file, looked up
// next to the executable first and then in ~/.noteppt.
func getPassphrasePath() (string, error) {
	exe, err := os.Executable()
	if err == nil {
		p := filepath.Join(filepath.Dir(exe), ".gpg-passphrase")
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, credentialDir, ".gpg-passphrase"), nil
}
