package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/noteppt-cli/internal/auth"
	"github.com/fpang/noteppt-cli/internal/cli"
	"github.com/fpang/noteppt-cli/internal/credentials"
	"github.com/fpang/noteppt-cli/internal/provider"
)

func newKeysCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage provider API keys saved on the server",
	}
	cmd.AddCommand(newKeysStatusCommand(ctx))
	cmd.AddCommand(newKeysSaveCommand(ctx))
	return cmd
}

func newKeysStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which providers have a saved API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reqCtx, err := ctx.resolveIdentity(cmd.Context()).Bind(cmd.Context())
			if err != nil {
				return errors.New(cli.IdentityMessage(err))
			}
			ctx.startupLogger(cmd).Feature("hasIdentity", true).Log()

			status := credentials.NewRegistry(ctx.backendClient()).FetchStatus(reqCtx)
			fmt.Fprintln(cmd.OutOrStdout(), renderKeyStatus(status))
			return nil
		},
	}
}

func newKeysSaveCommand(ctx *commandContext) *cobra.Command {
	var (
		providerFlag string
		apiKeyFlag   string
		verifyFlag   bool
	)

	cmd := &cobra.Command{
		Use:   "save",
		Short: "Save an API key for a provider",
		Long: `Save an API key on the server for the current identity. The key is read
from --api-key, NOTEPPT_API_KEY, or prompted for when neither is set.

With --verify, a Gemini key is checked against the Gemini API first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := provider.Parse(providerFlag)
			if err != nil {
				return err
			}

			field := &credentials.SecretField{}
			field.Set(apiKeyFlag)
			if field.Empty() {
				key, _ := auth.ResolveOverride(cmd.Context(), auth.OverrideSource{})
				field.Set(key)
			}
			if field.Empty() {
				field.Set(cli.PromptForSecret(cmd.InOrStdin(), cmd.OutOrStdout(), id.Label()+" API key"))
			}
			if field.Empty() {
				return credentials.ErrEmptySecret
			}

			if verifyFlag {
				if err := verifyKey(cmd.Context(), id, field.Value()); err != nil {
					return err
				}
			}

			reqCtx, err := ctx.resolveIdentity(cmd.Context()).Bind(cmd.Context())
			if err != nil {
				return errors.New(cli.IdentityMessage(err))
			}
			ctx.startupLogger(cmd).
				Config("provider", string(id)).
				Feature("hasIdentity", true).
				Feature("verifyKey", verifyFlag).
				Log()

			registry := credentials.NewRegistry(ctx.backendClient())
			session := credentials.NewSession()
			session.Load(registry.FetchStatus(reqCtx))

			status, err := credentials.SaveFromField(reqCtx, registry, session, field, id)
			if err != nil {
				log.Debug().Err(err).Msg("Credential save failed")
				return fmt.Errorf("could not save the %s API key; please try again", id.Label())
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s API key.\n", id.Label())
			fmt.Fprintln(cmd.OutOrStdout(), renderKeyStatus(status))
			return nil
		},
	}

	cmd.Flags().StringVarP(&providerFlag, "provider", "p", "", fmt.Sprintf("Provider to save the key for (%s)", strings.Join(provider.Names(), ", ")))
	cmd.Flags().StringVar(&apiKeyFlag, "api-key", "", "API key to save")
	cmd.Flags().BoolVar(&verifyFlag, "verify", false, "Check the key with the provider before saving (Gemini only)")
	_ = cmd.MarkFlagRequired("provider")

	return cmd
}

func verifyKey(ctx context.Context, id provider.ID, key string) error {
	if id != provider.Gemini {
		log.Warn().Str("provider", string(id)).Msg("Key verification is only available for Gemini; skipping")
		return nil
	}
	if err := auth.ValidateGeminiKey(ctx, key); err != nil {
		return errors.New(cli.ValidationMessage(err))
	}
	log.Info().Msg("Gemini API key verified")
	return nil
}

func renderKeyStatus(status credentials.StatusMap) string {
	rows := make([][]string, 0, len(provider.All()))
	for _, id := range provider.All() {
		saved := "no"
		if status.Has(id) {
			saved = "yes"
		}
		rows = append(rows, []string{string(id), id.Label(), saved})
	}
	return renderTable([]string{"Provider", "Name", "Saved"}, rows, nil)
}
