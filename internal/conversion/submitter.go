package conversion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/noteppt-cli/internal/backend"
	"github.com/fpang/noteppt-cli/internal/delivery"
	"github.com/fpang/noteppt-cli/internal/metrics"
)

// Transport sends the conversion form. *backend.Client implements it.
type Transport interface {
	Convert(ctx context.Context, form backend.ConvertForm) (*http.Response, error)
}

// Submitter performs one conversion request per call and converts every
// result, including transport errors, into an Outcome.
type Submitter struct {
	transport Transport
	now       func() time.Time

	mu        sync.Mutex
	lastStamp int64
}

// SubmitterOption configures a Submitter.
type SubmitterOption func(*Submitter)

// WithClock replaces time.Now for filename stamps and latency.
func WithClock(now func() time.Time) SubmitterOption {
	return func(s *Submitter) { s.now = now }
}

// NewSubmitter creates a Submitter over t.
func NewSubmitter(t Transport, opts ...SubmitterOption) *Submitter {
	s := &Submitter{transport: t, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit validates req, sends it and classifies the response. It never
// retries and never returns a raw transport error.
func (s *Submitter) Submit(ctx context.Context, req Request) Outcome {
	start := s.now()
	out := s.submit(ctx, req)
	s.record(req, out, s.now().Sub(start))
	return out
}

func (s *Submitter) submit(ctx context.Context, req Request) Outcome {
	if err := req.Validate(); err != nil {
		return preconditionFailure(err)
	}

	f, err := req.Source.Open()
	if err != nil {
		return preconditionFailure(&PreconditionError{
			Kind:    PreconditionUnreadable,
			Message: fmt.Sprintf("Could not read %s.", req.Source.Name),
			Err:     err,
		})
	}
	defer f.Close()

	log.Info().
		Str("file", req.Source.Name).
		Int64("bytes", req.Source.Size).
		Str("provider", string(req.Provider)).
		Bool("hasOverride", req.HasOverride()).
		Bool("removeWatermark", req.Options.RemoveWatermark).
		Bool("generateNotes", req.Options.GenerateNotes).
		Msg("Submitting conversion")

	resp, err := s.transport.Convert(ctx, backend.ConvertForm{
		FileName:        req.Source.Name,
		File:            f,
		Provider:        string(req.Provider),
		RemoveWatermark: req.Options.RemoveWatermark,
		GenerateNotes:   req.Options.GenerateNotes,
		APIKey:          req.CredentialOverride,
		Model:           req.Model,
		ContextText:     req.ContextText,
		DPI:             req.DPI,
	})
	if err != nil {
		if errors.Is(err, backend.ErrNoIdentity) {
			return preconditionFailure(&PreconditionError{
				Kind:    PreconditionNoIdentity,
				Message: "No identity is available for this session.",
				Err:     err,
			})
		}
		log.Error().Err(err).Msg("Conversion request failed")
		return Failure{Message: backend.MsgServerUnreachable, Kind: FailureTransport}
	}
	defer resp.Body.Close()

	if !backend.IsSuccess(resp.StatusCode) {
		body, readErr := backend.ReadErrorBody(resp.Body)
		if readErr != nil {
			log.Warn().Err(readErr).Int("statusCode", resp.StatusCode).Msg("Failed to read error body")
		}
		msg := backend.ErrorMessage(body)
		log.Warn().Int("statusCode", resp.StatusCode).Str("message", msg).Msg("Backend rejected conversion")
		return Failure{Message: msg, Kind: FailureBackend}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read converted presentation")
		return Failure{Message: backend.MsgServerUnreachable, Kind: FailureTransport}
	}

	artifact := Artifact{
		Bytes:       data,
		Filename:    fmt.Sprintf("converted_%d.pptx", s.nextStamp()),
		ContentType: contentType(resp.Header.Get("Content-Type")),
	}
	log.Info().Str("filename", artifact.Filename).Int("bytes", len(data)).Msg("Conversion succeeded")
	return Success{Artifact: artifact}
}

// nextStamp returns the current Unix time in milliseconds, bumped past the
// previous stamp so filenames from one Submitter never repeat.
func (s *Submitter) nextStamp() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	stamp := s.now().UnixMilli()
	if stamp <= s.lastStamp {
		stamp = s.lastStamp + 1
	}
	s.lastStamp = stamp
	return stamp
}

func (s *Submitter) record(req Request, out Outcome, elapsed time.Duration) {
	m := metrics.New(metrics.Namespace).
		Metric("ConversionLatency", float64(elapsed.Milliseconds()), metrics.UnitMilliseconds).
		Property("provider", string(req.Provider))
	switch o := out.(type) {
	case Success:
		m.Dimension("Result", "success").
			Count("ConversionSucceeded").
			Metric("ArtifactBytes", float64(len(o.Artifact.Bytes)), metrics.UnitBytes)
	case Failure:
		m.Dimension("Result", string(o.Kind)).Count("ConversionFailed")
	}
	m.Flush()
}

func preconditionFailure(err error) Failure {
	log.Warn().Err(err).Msg("Conversion request rejected locally")
	return Failure{Message: err.Error(), Kind: FailurePrecondition}
}

func contentType(header string) string {
	mt, _, err := mime.ParseMediaType(header)
	if err != nil || mt == "" || mt == "application/octet-stream" {
		return delivery.ContentTypePPTX
	}
	return mt
}
