package conversion

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fpang/noteppt-cli/internal/backend"
	"github.com/fpang/noteppt-cli/internal/delivery"
)

type fakeSubmitter struct {
	calls   int32
	outcome Outcome
	release chan struct{}
	started chan struct{}
	ctxErr  error
}

func (f *fakeSubmitter) Submit(ctx context.Context, _ Request) Outcome {
	atomic.AddInt32(&f.calls, 1)
	if f.started != nil {
		close(f.started)
	}
	if f.release != nil {
		<-f.release
	}
	f.ctxErr = ctx.Err()
	return f.outcome
}

type recordingDeliverer struct {
	machine      *Machine
	stateAtCall  State
	delivered    []Artifact
	err          error
	receiptPlace string
}

func (d *recordingDeliverer) Deliver(_ context.Context, a Artifact) (delivery.Receipt, error) {
	if d.machine != nil {
		d.stateAtCall = d.machine.Snapshot().State
	}
	d.delivered = append(d.delivered, a)
	if d.err != nil {
		return delivery.Receipt{}, d.err
	}
	return delivery.Receipt{Location: d.receiptPlace}, nil
}

func successOutcome() Outcome {
	return Success{Artifact: Artifact{Bytes: []byte("pptx"), Filename: "converted_1.pptx", ContentType: delivery.ContentTypePPTX}}
}

func TestMachineStartsIdle(t *testing.T) {
	m := NewMachine(&fakeSubmitter{}, nil)
	if got := m.Snapshot().State; got != StateIdle {
		t.Errorf("expected idle, got %s", got)
	}
}

func TestMachineRejectsMissingFile(t *testing.T) {
	fs := &fakeSubmitter{outcome: successOutcome()}
	m := NewMachine(fs, nil)

	snap, err := m.Submit(context.Background(), Request{Provider: "gemini"})
	if !errors.Is(err, ErrNoFile) {
		t.Fatalf("expected ErrNoFile, got %v", err)
	}
	if snap.State != StateIdle || m.Snapshot().State != StateIdle {
		t.Errorf("state must not change, got %s", m.Snapshot().State)
	}
	if atomic.LoadInt32(&fs.calls) != 0 {
		t.Error("submitter must not be called without a file")
	}
}

func TestMachineRejectsWhileSubmitting(t *testing.T) {
	fs := &fakeSubmitter{
		outcome: successOutcome(),
		release: make(chan struct{}),
		started: make(chan struct{}),
	}
	m := NewMachine(fs, nil)

	done := make(chan Snapshot)
	go func() {
		snap, _ := m.Submit(context.Background(), pdfRequest(10))
		done <- snap
	}()
	<-fs.started

	if got := m.Snapshot().State; got != StateSubmitting {
		t.Fatalf("expected submitting, got %s", got)
	}
	if _, err := m.Submit(context.Background(), pdfRequest(10)); !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy, got %v", err)
	}

	close(fs.release)
	if snap := <-done; snap.State != StateSucceeded {
		t.Errorf("expected succeeded, got %s", snap.State)
	}
	if n := atomic.LoadInt32(&fs.calls); n != 1 {
		t.Errorf("expected exactly one dispatch, got %d", n)
	}
}

// slides.pdf (5MB) against a 200 backend: succeeded, and the artifact is
// delivered as converted_<ts>.pptx before the state changes.
func TestMachineSuccessScenario(t *testing.T) {
	srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", delivery.ContentTypePPTX)
		w.Write([]byte("PK-binary"))
	})
	d := &recordingDeliverer{receiptPlace: "/tmp/out.pptx"}
	m := NewMachine(newTestSubmitter(srv), d)
	d.machine = m

	snap, err := m.Submit(identityCtx(), pdfRequest(5<<20))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.State != StateSucceeded {
		t.Fatalf("expected succeeded, got %s (%s)", snap.State, snap.Error)
	}
	if len(d.delivered) != 1 || !filenamePattern.MatchString(d.delivered[0].Filename) {
		t.Fatalf("expected one converted_<ts>.pptx delivery, got %+v", d.delivered)
	}
	if d.stateAtCall != StateSubmitting {
		t.Errorf("delivery must happen before succeeded, saw %s", d.stateAtCall)
	}
	if snap.Location != "/tmp/out.pptx" || snap.Artifact.Filename != d.delivered[0].Filename {
		t.Errorf("unexpected snapshot %+v", snap)
	}
	if snap.Request.SourceName != "slides.pdf" || !snap.Request.Options.RemoveWatermark || !snap.Request.Options.GenerateNotes {
		t.Errorf("request config not echoed: %+v", snap.Request)
	}
}

func TestMachineBackendDetailScenario(t *testing.T) {
	srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"detail":"invalid pdf"}`))
	})
	d := &recordingDeliverer{}
	m := NewMachine(newTestSubmitter(srv), d)

	snap, _ := m.Submit(identityCtx(), pdfRequest(5<<20))
	if snap.State != StateFailed {
		t.Fatalf("expected failed, got %s", snap.State)
	}
	if snap.Error != "invalid pdf" {
		t.Errorf("expected exact detail, got %q", snap.Error)
	}
	if len(d.delivered) != 0 || snap.Artifact != nil {
		t.Error("a failed job must not produce an artifact")
	}
}

func TestMachineConnectionErrorScenario(t *testing.T) {
	m := NewMachine(NewSubmitter(backend.NewClient("http://127.0.0.1:1")), nil)

	snap, _ := m.Submit(identityCtx(), pdfRequest(10))
	if snap.State != StateFailed {
		t.Fatalf("expected failed, got %s", snap.State)
	}
	if snap.Error != backend.MsgServerUnreachable {
		t.Errorf("expected generic message, got %q", snap.Error)
	}
}

func TestMachineDeliveryFailureStillSucceeds(t *testing.T) {
	d := &recordingDeliverer{err: &delivery.Error{Sink: "local", Err: errors.New("disk full")}}
	m := NewMachine(&fakeSubmitter{outcome: successOutcome()}, d)

	snap, err := m.Submit(context.Background(), pdfRequest(10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.State != StateSucceeded {
		t.Errorf("expected succeeded, got %s", snap.State)
	}
	if snap.Error != "" {
		t.Errorf("delivery failure must not be a conversion error, got %q", snap.Error)
	}
	if snap.DeliveryNotice == "" {
		t.Error("expected a delivery notice")
	}
}

func TestMachineHoldsOneError(t *testing.T) {
	fs := &fakeSubmitter{outcome: Failure{Message: "first", Kind: FailureBackend}}
	m := NewMachine(fs, nil)

	m.Submit(context.Background(), pdfRequest(10))
	fs.outcome = Failure{Message: "second", Kind: FailureTransport}
	snap, _ := m.Submit(context.Background(), pdfRequest(10))
	if snap.Error != "second" || snap.FailureKind != FailureTransport {
		t.Errorf("expected only the latest error, got %q (%s)", snap.Error, snap.FailureKind)
	}

	fs.outcome = successOutcome()
	snap, _ = m.Submit(context.Background(), pdfRequest(10))
	if snap.Error != "" || snap.State != StateSucceeded {
		t.Errorf("next submission must clear the error, got %+v", snap)
	}
}

func TestMachineDetachesCancellation(t *testing.T) {
	fs := &fakeSubmitter{outcome: successOutcome()}
	m := NewMachine(fs, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	snap, err := m.Submit(ctx, pdfRequest(10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fs.ctxErr != nil {
		t.Errorf("submitter saw cancelled context: %v", fs.ctxErr)
	}
	if snap.State != StateSucceeded {
		t.Errorf("expected succeeded, got %s", snap.State)
	}
}

func TestMachineSubscribe(t *testing.T) {
	m := NewMachine(&fakeSubmitter{outcome: Failure{Message: "boom", Kind: FailureBackend}}, nil)
	m.now = func() time.Time { return time.Unix(100, 0) }

	var (
		mu     sync.Mutex
		states []State
	)
	unsubscribe := m.Subscribe(func(s Snapshot) {
		mu.Lock()
		states = append(states, s.State)
		mu.Unlock()
	})

	m.Submit(context.Background(), pdfRequest(10))
	unsubscribe()
	m.Submit(context.Background(), pdfRequest(10))

	mu.Lock()
	defer mu.Unlock()
	if len(states) != 2 || states[0] != StateSubmitting || states[1] != StateFailed {
		t.Errorf("expected [submitting failed], got %v", states)
	}
}

func TestStateTerminal(t *testing.T) {
	for _, tt := range []struct {
		s    State
		want bool
	}{
		{StateIdle, false}, {StateSubmitting, false}, {StateSucceeded, true}, {StateFailed, true},
	} {
		if got := tt.s.Terminal(); got != tt.want {
			t.Errorf("%s.Terminal() = %v, want %v", tt.s, got, tt.want)
		}
	}
}

type panickingDeliverer struct{}

func (panickingDeliverer) Deliver(context.Context, Artifact) (delivery.Receipt, error) {
	panic("save dialog crashed")
}

type panickingSubmitter struct{}

func (panickingSubmitter) Submit(context.Context, Request) Outcome {
	panic("encoder bug")
}

func TestMachineDeliveryPanicStillSucceeds(t *testing.T) {
	fs := &fakeSubmitter{outcome: successOutcome()}
	m := NewMachine(fs, panickingDeliverer{})

	snap, err := m.Submit(context.Background(), pdfRequest(10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.State != StateSucceeded {
		t.Fatalf("expected succeeded, got %s", snap.State)
	}
	if snap.DeliveryNotice == "" {
		t.Error("expected a delivery notice for the panic")
	}

	if _, err := m.Submit(context.Background(), pdfRequest(10)); err != nil {
		t.Errorf("next submit must be admitted, got %v", err)
	}
	if n := atomic.LoadInt32(&fs.calls); n != 2 {
		t.Errorf("expected 2 dispatches, got %d", n)
	}
}

func TestMachineSubmitterPanicFails(t *testing.T) {
	m := NewMachine(panickingSubmitter{}, nil)

	snap, err := m.Submit(context.Background(), pdfRequest(10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.State != StateFailed || snap.FailureKind != FailureBackend {
		t.Errorf("expected backend failure, got %s (%s)", snap.State, snap.FailureKind)
	}
	if snap.Error != backend.MsgConversionFailed {
		t.Errorf("expected generic message, got %q", snap.Error)
	}
	if got := m.Snapshot().State; got != StateFailed {
		t.Errorf("machine must not stay submitting, got %s", got)
	}
}

func TestMachineSubscriberPanicIsContained(t *testing.T) {
	m := NewMachine(&fakeSubmitter{outcome: successOutcome()}, nil)
	m.Subscribe(func(Snapshot) { panic("renderer bug") })
	var seen []State
	m.Subscribe(func(s Snapshot) { seen = append(seen, s.State) })

	snap, err := m.Submit(context.Background(), pdfRequest(10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.State != StateSucceeded {
		t.Errorf("expected succeeded, got %s", snap.State)
	}
	if len(seen) != 2 || seen[0] != StateSubmitting || seen[1] != StateSucceeded {
		t.Errorf("later subscribers must still run, got %v", seen)
	}
}

func TestMachineSnapshotsAreCopies(t *testing.T) {
	m := NewMachine(&fakeSubmitter{outcome: successOutcome()}, nil)
	var fromSub Snapshot
	m.Subscribe(func(s Snapshot) { fromSub = s })

	returned, err := m.Submit(context.Background(), pdfRequest(10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	returned.Artifact.Filename = "changed.pptx"
	fromSub.Artifact.Size = -1

	got := m.Snapshot()
	if got.Artifact.Filename != "converted_1.pptx" || got.Artifact.Size != 4 {
		t.Errorf("machine state changed through a snapshot: %+v", *got.Artifact)
	}
	if m.Snapshot().Artifact == got.Artifact {
		t.Error("each Snapshot call must return its own artifact info")
	}
}
