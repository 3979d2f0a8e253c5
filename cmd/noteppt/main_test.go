package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/fpang/noteppt-cli/internal/conversion"
)

// fakeBackend emulates /get-keys, /save-keys and /convert.
type fakeBackend struct {
	mu           sync.Mutex
	keys         map[string]bool
	convertCalls int
	lastForm     map[string]string
	lastIdentity string
	failStatus   int
	failBody     string
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastIdentity = r.Header.Get("uid")

	switch r.URL.Path {
	case "/get-keys":
		json.NewEncoder(w).Encode(f.keys)
	case "/save-keys":
		var body struct {
			Provider string `json:"provider"`
			APIKey   string `json:"api_key"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.APIKey == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.keys[body.Provider] = true
	case "/convert":
		f.convertCalls++
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.lastForm = make(map[string]string)
		for k, v := range r.MultipartForm.Value {
			f.lastForm[k] = v[0]
		}
		if f.failStatus != 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(f.failStatus)
			io.WriteString(w, f.failBody)
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.presentationml.presentation")
		w.Write([]byte("PK\x03\x04deck"))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type cliTestEnv struct {
	backend *fakeBackend
	baseDir string
	outDir  string
	pdfPath string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	fb := &fakeBackend{keys: map[string]bool{"gemini": true}}
	srv := httptest.NewServer(fb)
	t.Cleanup(srv.Close)

	env := &cliTestEnv{
		backend: fb,
		baseDir: base,
		outDir:  filepath.Join(base, "out"),
		pdfPath: filepath.Join(base, "slides.pdf"),
	}

	configPath := filepath.Join(base, "config.toml")
	configBody := fmt.Sprintf(`backend_base_url = %q
log_level = "error"

[delivery]
sink = "local"
output_dir = %q

[history]
backend = "sqlite"
path = %q
`, srv.URL, env.outDir, filepath.Join(base, "history.db"))
	if err := os.WriteFile(configPath, []byte(configBody), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := os.WriteFile(env.pdfPath, []byte("%PDF-1.7 lecture"), 0o644); err != nil {
		t.Fatalf("write pdf: %v", err)
	}

	t.Setenv("HOME", base)
	t.Setenv("NOTEPPT_CONFIG", configPath)
	t.Setenv("NOTEPPT_API_URL", "")
	t.Setenv("NOTEPPT_API_KEY", "")
	t.Setenv("NOTEPPT_LOG_LEVEL", "")
	t.Setenv("NOTEPPT_IDENTITY", "student-42")
	return env
}

func runCLI(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, s, want string) {
	t.Helper()
	if !strings.Contains(s, want) {
		t.Fatalf("expected %q in output:\n%s", want, s)
	}
}

func TestConvertSavesArtifactAndJournals(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, "", "convert", env.pdfPath)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	requireContains(t, out, "Conversion complete: converted_")

	entries, err := os.ReadDir(env.outDir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one artifact in %s, got %v (%v)", env.outDir, entries, err)
	}
	if !regexp.MustCompile(`^converted_\d+\.pptx$`).MatchString(entries[0].Name()) {
		t.Errorf("unexpected artifact name %s", entries[0].Name())
	}

	env.backend.mu.Lock()
	form, identity := env.backend.lastForm, env.backend.lastIdentity
	env.backend.mu.Unlock()
	if identity != "student-42" {
		t.Errorf("expected identity header, got %q", identity)
	}
	if form["provider"] != "gemini" || form["remove_watermark"] != "true" || form["generate_notes"] != "true" {
		t.Errorf("unexpected form %v", form)
	}
	if _, ok := form["api_key"]; ok {
		t.Error("api_key must not be sent without an override")
	}

	out, _, err = runCLI(t, "", "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "slides.pdf")
	requireContains(t, out, "succeeded")
}

func TestConvertFlagsOverrideConfig(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, "", "convert", env.pdfPath,
		"--provider", "anthropic", "--generate-notes=false", "--api-key", "sk-ant", "--dpi", "200")
	if err != nil {
		t.Fatalf("convert: %v", err)
	}

	env.backend.mu.Lock()
	form := env.backend.lastForm
	env.backend.mu.Unlock()
	want := map[string]string{
		"provider":         "anthropic",
		"generate_notes":   "false",
		"remove_watermark": "true",
		"api_key":          "sk-ant",
		"dpi":              "200",
	}
	for k, v := range want {
		if form[k] != v {
			t.Errorf("field %s = %q, want %q", k, form[k], v)
		}
	}
}

func TestConvertBackendDetail(t *testing.T) {
	env := setupCLITestEnv(t)
	env.backend.failStatus = http.StatusInternalServerError
	env.backend.failBody = `{"detail":"invalid pdf"}`

	_, _, err := runCLI(t, "", "convert", env.pdfPath)
	if err == nil || err.Error() != "invalid pdf" {
		t.Fatalf("expected exact detail error, got %v", err)
	}
	if entries, _ := os.ReadDir(env.outDir); len(entries) != 0 {
		t.Errorf("failed job must not produce an artifact, found %d files", len(entries))
	}

	out, _, err := runCLI(t, "", "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "failed")
	requireContains(t, out, "invalid pdf")
}

func TestConvertWithoutFileMakesNoRequest(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, "\n", "convert")
	if !errors.Is(err, conversion.ErrNoFile) {
		t.Fatalf("expected ErrNoFile, got %v", err)
	}
	env.backend.mu.Lock()
	calls := env.backend.convertCalls
	env.backend.mu.Unlock()
	if calls != 0 {
		t.Errorf("expected no conversion request, got %d", calls)
	}
}

func TestConvertRejectsNonPDF(t *testing.T) {
	env := setupCLITestEnv(t)
	doc := filepath.Join(env.baseDir, "notes.docx")
	os.WriteFile(doc, []byte("x"), 0o644)

	_, _, err := runCLI(t, "", "convert", doc)
	var pe *conversion.PreconditionError
	if !errors.As(err, &pe) || pe.Kind != conversion.PreconditionUnsupportedFormat {
		t.Fatalf("expected unsupported format, got %v", err)
	}
}

func TestKeysSaveAndStatus(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, "", "keys", "save", "--provider", "openai", "--api-key", "sk-test")
	if err != nil {
		t.Fatalf("keys save: %v", err)
	}
	requireContains(t, out, "Saved OpenAI")

	env.backend.mu.Lock()
	saved := env.backend.keys["openai"]
	env.backend.mu.Unlock()
	if !saved {
		t.Fatal("expected backend to record the openai key")
	}

	out, _, err = runCLI(t, "", "keys", "status")
	if err != nil {
		t.Fatalf("keys status: %v", err)
	}
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "openai") && !strings.Contains(line, "yes") {
			t.Errorf("expected openai to be saved, got %q", line)
		}
		if strings.Contains(line, "grok") && !strings.Contains(line, "no") {
			t.Errorf("expected grok to be unsaved, got %q", line)
		}
	}
}

func TestKeysSavePromptsForKey(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, "xai-secret\n", "keys", "save", "--provider", "grok")
	if err != nil {
		t.Fatalf("keys save: %v", err)
	}
	requireContains(t, out, "API key: ")

	env.backend.mu.Lock()
	defer env.backend.mu.Unlock()
	if !env.backend.keys["grok"] {
		t.Error("expected prompted key to be saved")
	}
}

func TestConfigCommands(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, "", "config", "path")
	if err != nil {
		t.Fatalf("config path: %v", err)
	}
	requireContains(t, out, filepath.Join(env.baseDir, "config.toml"))

	out, _, err = runCLI(t, "", "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "backend_base_url")
	requireContains(t, out, "history.db")
}
