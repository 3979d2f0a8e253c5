package auth

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"
)

// OverrideEnvVar supplies a per-request credential override.
const OverrideEnvVar = "NOTEPPT_API_KEY"

// ParameterGetter is the subset of the SSM client used to read secrets.
type ParameterGetter interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// OverrideSource describes where a per-request credential override may come from.
type OverrideSource struct {
	Flag     string
	SSMParam string
	SSM      ParameterGetter
}

// ResolveOverride returns the credential override for a single conversion
// call, or "" when none is supplied. Priority: flag, NOTEPPT_API_KEY, SSM.
// The result is held in memory only for the duration of the call.
func ResolveOverride(ctx context.Context, src OverrideSource) (string, error) {
	if v := strings.TrimSpace(src.Flag); v != "" {
		log.Debug().Msg("Using credential override from command line")
		return v, nil
	}
	if v := strings.TrimSpace(os.Getenv(OverrideEnvVar)); v != "" {
		log.Debug().Msg("Using credential override from environment variable")
		return v, nil
	}
	if src.SSMParam == "" {
		return "", nil
	}
	if src.SSM == nil {
		return "", fmt.Errorf("SSM parameter %s requested but no SSM client configured", src.SSMParam)
	}
	return LoadOverrideFromSSM(ctx, src.SSM, src.SSMParam)
}

// LoadOverrideFromSSM reads a SecureString parameter holding a provider API key.
func LoadOverrideFromSSM(ctx context.Context, client ParameterGetter, paramName string) (string, error) {
	start := time.Now()
	result, err := client.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(paramName),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("read SSM parameter %s: %w", paramName, err)
	}
	if result.Parameter == nil || result.Parameter.Value == nil || *result.Parameter.Value == "" {
		return "", fmt.Errorf("SSM parameter %s is empty", paramName)
	}
	log.Debug().Str("param", paramName).Dur("elapsed", time.Since(start)).Msg("Credential override loaded from SSM")
	return strings.TrimSpace(*result.Parameter.Value), nil
}
