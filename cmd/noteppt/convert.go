package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/noteppt-cli/internal/auth"
	"github.com/fpang/noteppt-cli/internal/awsboot"
	"github.com/fpang/noteppt-cli/internal/backend"
	"github.com/fpang/noteppt-cli/internal/cli"
	"github.com/fpang/noteppt-cli/internal/conversion"
	"github.com/fpang/noteppt-cli/internal/credentials"
	"github.com/fpang/noteppt-cli/internal/history"
	"github.com/fpang/noteppt-cli/internal/progress"
	"github.com/fpang/noteppt-cli/internal/provider"
)

type convertOptions struct {
	provider        string
	apiKey          string
	apiKeySSM       string
	removeWatermark bool
	generateNotes   bool
	model           string
	contextText     string
	dpi             int
	out             string
	sink            string
	pick            bool
}

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var opts convertOptions

	cmd := &cobra.Command{
		Use:   "convert [file.pdf]",
		Short: "Convert a PDF into a PPTX presentation",
		Long: `Upload a PDF (up to 20MB) to the conversion server and save the resulting
presentation as converted_<timestamp>.pptx.

Without a file argument, --pick opens a file dialog; otherwise you are
prompted for a path.

A per-call API key can be supplied with --api-key, NOTEPPT_API_KEY or
--api-key-ssm. It is sent with this request only and never stored.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd, ctx, opts, args)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.provider, "provider", "p", "", fmt.Sprintf("AI provider (%s)", strings.Join(provider.Names(), ", ")))
	flags.StringVar(&opts.apiKey, "api-key", "", "API key override for this conversion only")
	flags.StringVar(&opts.apiKeySSM, "api-key-ssm", "", "SSM SecureString parameter holding an API key override")
	flags.BoolVar(&opts.removeWatermark, "remove-watermark", true, "Remove watermarks from slides")
	flags.BoolVar(&opts.generateNotes, "generate-notes", true, "Generate speaker notes")
	flags.StringVarP(&opts.model, "model", "m", "", "Provider model name (server default when empty)")
	flags.StringVar(&opts.contextText, "context", "", "Extra context passed to the AI provider")
	flags.IntVar(&opts.dpi, "dpi", 0, "Rendering DPI for slide images (server default when 0)")
	flags.StringVarP(&opts.out, "out", "o", "", "Output directory for local and dialog sinks")
	flags.StringVar(&opts.sink, "sink", "", "Where to save the result: local, dialog or s3")
	flags.BoolVar(&opts.pick, "pick", false, "Choose the PDF with a file dialog")

	return cmd
}

func runConvert(cmd *cobra.Command, cc *commandContext, opts convertOptions, args []string) error {
	cfg := cc.configValue()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// Resolved in the background while the file and options are prepared.
	identity := cc.resolveIdentity(ctx)

	source, err := selectSource(cmd, opts, args)
	if err != nil {
		return err
	}

	providerName := opts.provider
	if providerName == "" {
		providerName = cfg.Convert.Provider
	}
	providerID, err := provider.Parse(providerName)
	if err != nil {
		return err
	}

	req := conversion.Request{
		Source:   source,
		Provider: providerID,
		Options: conversion.Options{
			RemoveWatermark: boolOption(cmd, "remove-watermark", opts.removeWatermark, cfg.Convert.RemoveWatermark),
			GenerateNotes:   boolOption(cmd, "generate-notes", opts.generateNotes, cfg.Convert.GenerateNotes),
		},
		Model:       firstNonEmpty(opts.model, cfg.Convert.Model),
		ContextText: opts.contextText,
		DPI:         opts.dpi,
	}
	if req.DPI == 0 {
		req.DPI = cfg.Convert.DPI
	}
	if req.Source == nil {
		return conversion.ErrNoFile
	}
	if err := req.Validate(); err != nil {
		return err
	}

	override, err := resolveOverride(ctx, cc, opts)
	if err != nil {
		return err
	}
	req.CredentialOverride = override

	sink := firstNonEmpty(opts.sink, cfg.Delivery.Sink)
	deliverer, err := cc.deliverer(ctx, sink, firstNonEmpty(opts.out, cfg.Delivery.OutputDir))
	if err != nil {
		return err
	}

	journal, err := cc.openHistory(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("History unavailable; this job will not be journaled")
		journal = history.Nop{}
	}
	defer journal.Close()

	ctx, err = identity.Bind(ctx)
	if err != nil {
		return errors.New(cli.IdentityMessage(err))
	}

	client := cc.backendClient()

	cc.startupLogger(cmd).
		Sink("delivery", sink).
		Config("provider", string(req.Provider)).
		Feature("hasIdentity", true).
		Feature("hasOverride", req.HasOverride()).
		Feature("removeWatermark", req.Options.RemoveWatermark).
		Feature("generateNotes", req.Options.GenerateNotes).
		Log()

	// The credential check runs alongside the submission and never blocks it.
	checked := make(chan struct{})
	go func() {
		defer close(checked)
		checkSavedCredential(ctx, client, req)
	}()

	machine := conversion.NewMachine(conversion.NewSubmitter(client), deliverer)

	renderer := progress.NewRenderer(cmd.ErrOrStderr())
	presenter := progress.New(renderer.Show)
	defer presenter.Close()

	unsubscribe := machine.Subscribe(func(s conversion.Snapshot) {
		presenter.SetActive(s.State == conversion.StateSubmitting)
		if !s.State.Terminal() {
			return
		}
		renderer.Clear()
		rec := history.FromSnapshot(s)
		if err := journal.Put(ctx, &rec); err != nil {
			log.Warn().Err(err).Str("job", s.JobID).Msg("Failed to journal job")
		}
	})
	defer unsubscribe()

	snap, err := machine.Submit(ctx, req)
	<-checked
	if err != nil {
		return err
	}
	return reportOutcome(cmd, snap)
}

// selectSource returns the file to convert, or nil when none was chosen.
func selectSource(cmd *cobra.Command, opts convertOptions, args []string) (*conversion.SourceFile, error) {
	var path string
	switch {
	case len(args) > 0:
		path = args[0]
	case opts.pick:
		picked, err := cli.PickSourceFile()
		if err != nil && !errors.Is(err, cli.ErrNoSelection) {
			return nil, err
		}
		path = picked
	default:
		path = cli.PromptForFile(cmd.InOrStdin(), cmd.OutOrStdout())
	}
	if path == "" {
		return nil, nil
	}

	resolved, err := cli.ResolveFile(path)
	if err != nil {
		return nil, err
	}
	return conversion.LoadSourceFile(resolved)
}

func resolveOverride(ctx context.Context, cc *commandContext, opts convertOptions) (string, error) {
	src := auth.OverrideSource{Flag: opts.apiKey, SSMParam: opts.apiKeySSM}
	if opts.apiKeySSM != "" && opts.apiKey == "" {
		awsCfg, err := cc.aws(ctx)
		if err != nil {
			return "", err
		}
		src.SSM = awsboot.SSM(awsCfg)
	}
	return auth.ResolveOverride(ctx, src)
}

// checkSavedCredential warns when the provider has no saved key and no
// override was given. Failures are ignored.
func checkSavedCredential(ctx context.Context, client *backend.Client, req conversion.Request) {
	if req.HasOverride() {
		return
	}
	status := credentials.NewRegistry(client).FetchStatus(ctx)
	if !status.Has(req.Provider) {
		log.Warn().
			Str("provider", string(req.Provider)).
			Msgf("No saved %s credential found; save one with 'noteppt keys save --provider %s' or pass --api-key", req.Provider.Label(), req.Provider)
	}
}

func reportOutcome(cmd *cobra.Command, snap conversion.Snapshot) error {
	out := cmd.OutOrStdout()
	switch snap.State {
	case conversion.StateSucceeded:
		fmt.Fprintf(out, "Conversion complete: %s (%s, %s)\n",
			snap.Artifact.Filename,
			cli.FormatBytes(int64(snap.Artifact.Size)),
			cli.FormatDurationShort(snap.FinishedAt.Sub(snap.StartedAt)))
		if snap.Location != "" {
			fmt.Fprintf(out, "Saved to %s\n", snap.Location)
		}
		if snap.DeliveryNotice != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s\n", snap.DeliveryNotice)
		}
		return nil
	case conversion.StateFailed:
		return errors.New(snap.Error)
	default:
		return fmt.Errorf("conversion ended in unexpected state %s", snap.State)
	}
}

func boolOption(cmd *cobra.Command, name string, flagValue, configValue bool) bool {
	if cmd.Flags().Changed(name) {
		return flagValue
	}
	return configValue
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
