package conversion

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/noteppt-cli/internal/backend"
	"github.com/fpang/noteppt-cli/internal/delivery"
	"github.com/fpang/noteppt-cli/internal/jobs"
	"github.com/fpang/noteppt-cli/internal/provider"
)

// State is the lifecycle position of the current job.
type State string

const (
	StateIdle       State = "idle"
	StateSubmitting State = "submitting"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

// Terminal reports whether s ends a job.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// ErrBusy is returned when a job is already in flight.
var ErrBusy = errors.New("a conversion is already in progress")

// RequestEcho is the non-secret part of a request kept for display.
type RequestEcho struct {
	SourceName  string
	SourceSize  int64
	Provider    provider.ID
	HasOverride bool
	Options     Options
	Model       string
	DPI         int
}

// ArtifactInfo describes a produced artifact without its bytes.
type ArtifactInfo struct {
	Filename    string
	ContentType string
	Size        int
}

// Snapshot is a copy of the machine state at one point in time.
type Snapshot struct {
	JobID   string
	State   State
	Request RequestEcho

	// Error holds the failure message of the last job. At most one.
	Error       string
	FailureKind FailureKind

	// Artifact is nil until a job succeeds. Each Snapshot holds its own copy.
	Artifact *ArtifactInfo
	Location string
	// DeliveryNotice is set when the artifact was produced but could not be
	// saved. State stays StateSucceeded.
	DeliveryNotice string

	StartedAt  time.Time
	FinishedAt time.Time
}

// JobSubmitter performs the network part of a job. *Submitter implements it.
type JobSubmitter interface {
	Submit(ctx context.Context, req Request) Outcome
}

// Machine serializes conversion jobs: idle -> submitting -> succeeded|failed,
// and back to submitting on the next Submit.
type Machine struct {
	submitter JobSubmitter
	deliverer delivery.Deliverer
	now       func() time.Time

	mu      sync.Mutex
	snap    Snapshot
	subs    map[int]func(Snapshot)
	nextSub int
}

// NewMachine creates an idle Machine. A nil deliverer skips delivery.
func NewMachine(s JobSubmitter, d delivery.Deliverer) *Machine {
	return &Machine{
		submitter: s,
		deliverer: d,
		now:       time.Now,
		snap:      Snapshot{State: StateIdle},
		subs:      make(map[int]func(Snapshot)),
	}
}

// Snapshot returns the current state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap.clone()
}

func (s Snapshot) clone() Snapshot {
	if s.Artifact != nil {
		a := *s.Artifact
		s.Artifact = &a
	}
	return s
}

// Subscribe registers fn to receive every state change. Callbacks run on the
// goroutine that called Submit, in registration order. A panicking callback
// is logged and skipped.
func (m *Machine) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// Submit runs one job to completion and returns the terminal snapshot.
//
// It returns ErrBusy while another job is submitting and ErrNoFile when req
// has no source; neither changes state nor reaches the network. Cancelling
// ctx does not abort the request once it has been admitted.
func (m *Machine) Submit(ctx context.Context, req Request) (Snapshot, error) {
	m.mu.Lock()
	if m.snap.State == StateSubmitting {
		snap := m.snap.clone()
		m.mu.Unlock()
		log.Warn().Str("job", snap.JobID).Msg("Conversion already in progress; ignoring submit")
		return snap, ErrBusy
	}
	if req.Source == nil {
		snap := m.snap.clone()
		m.mu.Unlock()
		return snap, ErrNoFile
	}
	m.snap = Snapshot{
		JobID:     jobs.NewConversionID(),
		State:     StateSubmitting,
		Request:   echo(req),
		StartedAt: m.now(),
	}
	snap, subs := m.snap, m.subscribersLocked()
	m.mu.Unlock()

	log.Debug().Str("job", snap.JobID).Str("file", snap.Request.SourceName).Msg("Conversion submitting")
	notify(subs, snap)

	ctx = context.WithoutCancel(ctx)
	switch o := m.dispatch(ctx, req).(type) {
	case Success:
		snap = m.succeed(ctx, o.Artifact)
	case Failure:
		snap = m.fail(o)
	default:
		snap = m.fail(Failure{Message: backend.MsgConversionFailed, Kind: FailureBackend})
	}

	m.mu.Lock()
	subs = m.subscribersLocked()
	m.mu.Unlock()
	notify(subs, snap)
	return snap, nil
}

// dispatch runs the submitter. A panic becomes a backend failure.
func (m *Machine) dispatch(ctx context.Context, req Request) (o Outcome) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("panic", fmt.Sprint(r)).Msg("Conversion submitter panicked")
			o = Failure{Message: backend.MsgConversionFailed, Kind: FailureBackend}
		}
	}()
	return m.submitter.Submit(ctx, req)
}

// deliver runs the deliverer. A panic becomes a delivery error.
func (m *Machine) deliver(ctx context.Context, a Artifact) (receipt delivery.Receipt, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("delivery panicked: %v", r)
		}
	}()
	return m.deliverer.Deliver(ctx, a)
}

// succeed delivers the artifact, then enters StateSucceeded whatever the
// delivery result.
func (m *Machine) succeed(ctx context.Context, a Artifact) Snapshot {
	info := &ArtifactInfo{Filename: a.Filename, ContentType: a.ContentType, Size: len(a.Bytes)}

	var location, notice string
	if m.deliverer != nil {
		receipt, err := m.deliver(ctx, a)
		if err != nil {
			notice = delivery.Notice(a.Filename, err)
			log.Warn().Err(err).Str("filename", a.Filename).Msg("Artifact delivery failed")
		} else {
			location = receipt.Location
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap.State = StateSucceeded
	m.snap.Artifact = info
	m.snap.Location = location
	m.snap.DeliveryNotice = notice
	m.snap.FinishedAt = m.now()
	return m.snap.clone()
}

func (m *Machine) fail(f Failure) Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap.State = StateFailed
	m.snap.Error = f.Message
	m.snap.FailureKind = f.Kind
	m.snap.FinishedAt = m.now()
	return m.snap.clone()
}

func (m *Machine) subscribersLocked() []func(Snapshot) {
	ids := make([]int, 0, len(m.subs))
	for id := range m.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]func(Snapshot), 0, len(ids))
	for _, id := range ids {
		out = append(out, m.subs[id])
	}
	return out
}

func notify(subs []func(Snapshot), snap Snapshot) {
	for _, fn := range subs {
		notifyOne(fn, snap.clone())
	}
}

func notifyOne(fn func(Snapshot), snap Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("panic", fmt.Sprint(r)).Str("state", string(snap.State)).Msg("Snapshot subscriber panicked")
		}
	}()
	fn(snap)
}

func echo(req Request) RequestEcho {
	e := RequestEcho{
		Provider:    req.Provider,
		HasOverride: req.HasOverride(),
		Options:     req.Options,
		Model:       req.Model,
		DPI:         req.DPI,
	}
	if req.Source != nil {
		e.SourceName = req.Source.Name
		e.SourceSize = req.Source.Size
	}
	return e
}
