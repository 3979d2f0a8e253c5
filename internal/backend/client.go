// Package backend is the HTTP transport for the NotePPT conversion service.
// It knows the three endpoints the CLI consumes (/get-keys, /save-keys,
// /convert) and attaches the caller's identity token as a header on every
// request. It performs no retries and, unless configured, no client-side
// timeout: a hanging request stays in flight until the server or the
// transport gives up.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/noteppt-cli/internal/auth"
)

// IdentityHeader carries the opaque identity token.
const IdentityHeader = "uid"

const (
	pathGetKeys  = "/get-keys"
	pathSaveKeys = "/save-keys"
	pathConvert  = "/convert"

	// maxErrorBody bounds how much of a failed response is read.
	maxErrorBody = 1 << 20
)

// TruncatedMarker is appended to error bodies cut at maxErrorBody.
const TruncatedMarker = "\n[response truncated]"

// ErrNoIdentity is returned before any network activity when the context
// carries no identity token.
var ErrNoIdentity = errors.New("no identity token available")

// StatusError is returned for non-2xx responses on JSON endpoints.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, ErrorMessage(e.Body))
}

// Client provides access to the conversion backend.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets a client-side timeout. Zero keeps the default of none.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient = &http.Client{Transport: c.httpClient.Transport, Timeout: d}
		}
	}
}

// NewClient creates a backend client for baseURL, which is resolved once at
// startup and reused for every call.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{},
		baseURL:    baseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured backend address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// GetKeys returns the provider -> "credential on file" map for the identity in ctx.
func (c *Client) GetKeys(ctx context.Context) (map[string]bool, error) {
	resp, err := c.do(ctx, http.MethodGet, pathGetKeys, nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if !IsSuccess(resp.StatusCode) {
		return nil, statusError(resp)
	}

	keys := make(map[string]bool)
	if err := json.NewDecoder(resp.Body).Decode(&keys); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", pathGetKeys, err)
	}
	return keys, nil
}

type saveKeyRequest struct {
	Provider string `json:"provider"`
	APIKey   string `json:"api_key"`
}

// SaveKey stores apiKey for providerID on the backend. Any 2xx is success.
func (c *Client) SaveKey(ctx context.Context, providerID, apiKey string) error {
	body, err := json.Marshal(saveKeyRequest{Provider: providerID, APIKey: apiKey})
	if err != nil {
		return fmt.Errorf("encode save request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, pathSaveKeys, bytes.NewReader(body), "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if !IsSuccess(resp.StatusCode) {
		return statusError(resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// ConvertForm holds the multipart fields of a /convert request.
type ConvertForm struct {
	FileName        string
	File            io.Reader
	Provider        string
	RemoveWatermark bool
	GenerateNotes   bool
	APIKey          string // optional credential override, sent for this call only

	// Optional extras accepted by the server; omitted when empty or zero.
	Model       string
	ContextText string
	DPI         int
}

// Convert posts the form to /convert and returns the raw response. The
// caller owns the response body and classifies the status.
func (c *Client) Convert(ctx context.Context, form ConvertForm) (*http.Response, error) {
	if _, ok := auth.IdentityFromContext(ctx); !ok {
		return nil, ErrNoIdentity
	}

	body, contentType, err := encodeConvertForm(form)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPost, pathConvert, body, contentType)
}

func encodeConvertForm(form ConvertForm) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	part, err := mw.CreateFormFile("pdf_file", form.FileName)
	if err != nil {
		return nil, "", fmt.Errorf("create pdf_file part: %w", err)
	}
	if _, err := io.Copy(part, form.File); err != nil {
		return nil, "", fmt.Errorf("read source file: %w", err)
	}

	fields := [][2]string{
		{"provider", form.Provider},
		{"remove_watermark", strconv.FormatBool(form.RemoveWatermark)},
		{"generate_notes", strconv.FormatBool(form.GenerateNotes)},
	}
	if form.APIKey != "" {
		fields = append(fields, [2]string{"api_key", form.APIKey})
	}
	if form.Model != "" {
		fields = append(fields, [2]string{"model", form.Model})
	}
	if form.ContextText != "" {
		fields = append(fields, [2]string{"context_text", form.ContextText})
	}
	if form.DPI > 0 {
		fields = append(fields, [2]string{"dpi", strconv.Itoa(form.DPI)})
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("write %s field: %w", f[0], err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart body: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}

// do sends a request with the identity header from ctx.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	id, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return nil, ErrNoIdentity
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set(IdentityHeader, string(id))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	log.Debug().Str("method", method).Str("path", path).Msg("Backend request")
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		log.Debug().Int("statusCode", 0).Dur("duration", duration).Err(err).Msg("Backend response")
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	log.Debug().Int("statusCode", resp.StatusCode).Dur("duration", duration).Msg("Backend response")
	return resp, nil
}

// IsSuccess reports whether status is a 2xx code.
func IsSuccess(status int) bool {
	return status >= 200 && status < 300
}

// ReadErrorBody reads a failed response body. Bodies longer than 1 MiB are
// cut and end with TruncatedMarker.
func ReadErrorBody(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBody+1))
	if len(body) > maxErrorBody {
		body = append(body[:maxErrorBody:maxErrorBody], TruncatedMarker...)
	}
	return body, err
}

func statusError(resp *http.Response) error {
	body, _ := ReadErrorBody(resp.Body)
	return &StatusError{StatusCode: resp.StatusCode, Body: body}
}
