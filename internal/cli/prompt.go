package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/ncruces/zenity"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

// ErrNoSelection is returned when the user picks no file.
var ErrNoSelection = errors.New("no file selected")

// PromptForFile prompts the user interactively for a PDF path.
// Returns "" if the user enters nothing.
func PromptForFile(in io.Reader, out io.Writer) string {
	fmt.Fprint(out, "PDF file: ")

	reader := bufio.NewReader(in)
	input, err := reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		log.Warn().Err(err).Msg("Failed to read input")
		return ""
	}

	return strings.Trim(strings.TrimSpace(input), `"'`)
}

// PickSourceFile opens a native file dialog filtered to PDFs.
func PickSourceFile() (string, error) {
	selected, err := zenity.SelectFile(
		zenity.Title("Select a PDF to convert"),
		zenity.FileFilters{
			{Name: "PDF documents", Patterns: []string{"*.pdf"}, CaseFold: true},
		},
	)
	if err != nil {
		if errors.Is(err, zenity.ErrCanceled) {
			return "", ErrNoSelection
		}
		return "", fmt.Errorf("file dialog: %w", err)
	}
	return selected, nil
}

// PromptForSecret prompts for a single line of secret input. On a terminal
// echo is disabled while the value is typed.
func PromptForSecret(in io.Reader, out io.Writer, label string) string {
	fmt.Fprintf(out, "%s: ", label)

	if f, ok := in.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		secret, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to read secret")
			return ""
		}
		return strings.TrimSpace(string(secret))
	}

	input, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		log.Warn().Err(err).Msg("Failed to read input")
		return ""
	}
	return strings.TrimSpace(input)
}
