package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var identityFlag string

	ctx := newCommandContext(&configFlag, &identityFlag)

	rootCmd := &cobra.Command{
		Use:   "noteppt",
		Short: "Convert lecture PDFs into PowerPoint slides with speaker notes",
		Long: `noteppt uploads a PDF to the NotePPT conversion server, waits for the AI
provider of your choice to turn it into a PPTX deck, and saves the result.

Examples:
  noteppt convert lecture.pdf
  noteppt convert lecture.pdf --provider anthropic --generate-notes=false
  noteppt convert --pick --sink dialog
  noteppt keys save --provider openai
  noteppt keys status
  noteppt history --limit 10`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return ctx.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return ctx.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path (default ~/.config/noteppt/config.toml)")
	rootCmd.PersistentFlags().StringVar(&identityFlag, "identity", "", "Identity token for this session (default: NOTEPPT_IDENTITY or ~/.noteppt/identity.gpg)")

	rootCmd.AddCommand(newConvertCommand(ctx))
	rootCmd.AddCommand(newKeysCommand(ctx))
	rootCmd.AddCommand(newHistoryCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
