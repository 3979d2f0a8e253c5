package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"testing"

	"github.com/fpang/noteppt-cli/internal/auth"
	"github.com/fpang/noteppt-cli/internal/backend"
	"github.com/fpang/noteppt-cli/internal/provider"
)

type fakeBackend struct {
	mu      sync.Mutex
	keys    map[string]bool
	getErr  error
	saveErr error
	saved   map[string]string
}

func (f *fakeBackend) GetKeys(context.Context) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	out := make(map[string]bool, len(f.keys))
	for k, v := range f.keys {
		out[k] = v
	}
	return out, nil
}

func (f *fakeBackend) SaveKey(_ context.Context, p, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	if f.saved == nil {
		f.saved = make(map[string]string)
	}
	f.saved[p] = key
	return nil
}

func TestFetchStatusFiltersUnknownProviders(t *testing.T) {
	r := NewRegistry(&fakeBackend{keys: map[string]bool{"gemini": true, "openai": false, "mistral": true}})

	got := r.FetchStatus(context.Background())
	want := StatusMap{provider.Gemini: true, provider.OpenAI: false}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestFetchStatusDegradesToEmpty(t *testing.T) {
	r := NewRegistry(&fakeBackend{getErr: errors.New("connection refused")})

	got := r.FetchStatus(context.Background())
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil map, got %v", got)
	}
}

func TestFetchStatusIsIdempotent(t *testing.T) {
	r := NewRegistry(&fakeBackend{keys: map[string]bool{"anthropic": true}})

	first := r.FetchStatus(context.Background())
	second := r.FetchStatus(context.Background())
	if !reflect.DeepEqual(first, second) {
		t.Errorf("expected identical maps, got %v then %v", first, second)
	}
}

func TestSaveReturnsTransition(t *testing.T) {
	fb := &fakeBackend{}
	r := NewRegistry(fb)

	tr, err := r.Save(context.Background(), provider.OpenAI, "sk-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr != (Transition{Provider: provider.OpenAI, Saved: true}) {
		t.Errorf("unexpected transition %+v", tr)
	}
	if fb.saved["openai"] != "sk-test" {
		t.Errorf("secret not forwarded to backend")
	}
}

func TestSaveFailureHasNoTransition(t *testing.T) {
	r := NewRegistry(&fakeBackend{saveErr: errors.New("500")})

	tr, err := r.Save(context.Background(), provider.Grok, "xai-key")
	var saveErr *SaveError
	if !errors.As(err, &saveErr) {
		t.Fatalf("expected SaveError, got %v", err)
	}
	if tr != (Transition{}) {
		t.Errorf("expected zero transition, got %+v", tr)
	}
}

func TestSaveRejectsEmptySecretAndUnknownProvider(t *testing.T) {
	fb := &fakeBackend{}
	r := NewRegistry(fb)

	if _, err := r.Save(context.Background(), provider.Gemini, "   "); !errors.Is(err, ErrEmptySecret) {
		t.Errorf("expected ErrEmptySecret, got %v", err)
	}
	if _, err := r.Save(context.Background(), provider.ID("mistral"), "k"); err == nil {
		t.Error("expected error for unknown provider")
	}
	if len(fb.saved) != 0 {
		t.Errorf("backend must not be called, got %v", fb.saved)
	}
}

func TestStatusMapApplyDoesNotMutate(t *testing.T) {
	base := StatusMap{provider.Gemini: true}
	next := base.Apply(Transition{Provider: provider.OpenAI, Saved: true})

	if base.Has(provider.OpenAI) {
		t.Error("Apply must not modify the receiver")
	}
	if !next.Has(provider.OpenAI) || !next.Has(provider.Gemini) {
		t.Errorf("unexpected result %v", next)
	}
}

// Saving openai with sk-test against a 200 backend marks openai as saved
// and clears the input field.
func TestSaveFromFieldAgainstBackend(t *testing.T) {
	var (
		mu    sync.Mutex
		saved = map[string]bool{"gemini": true}
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		switch r.URL.Path {
		case "/get-keys":
			json.NewEncoder(w).Encode(saved)
		case "/save-keys":
			var body struct {
				Provider string `json:"provider"`
				APIKey   string `json:"api_key"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			if body.APIKey != "sk-test" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			saved[body.Provider] = true
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer server.Close()

	ctx := auth.WithIdentity(context.Background(), "user-1")
	reg := NewRegistry(backend.NewClient(server.URL, backend.WithHTTPClient(server.Client())))
	session := NewSession()
	session.Load(reg.FetchStatus(ctx))

	field := &SecretField{}
	field.Set("sk-test")

	status, err := SaveFromField(ctx, reg, session, field, provider.OpenAI)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !status.Has(provider.OpenAI) || !status.Has(provider.Gemini) {
		t.Errorf("expected openai and gemini saved, got %v", status)
	}
	if !field.Empty() {
		t.Error("expected secret field to be cleared after a successful save")
	}
	if !session.Snapshot().Has(provider.OpenAI) {
		t.Error("session snapshot should reflect the transition")
	}
}

func TestSaveFromFieldFailureKeepsState(t *testing.T) {
	session := NewSession()
	session.Load(StatusMap{provider.Gemini: true})
	field := &SecretField{}
	field.Set("sk-bad")

	reg := NewRegistry(&fakeBackend{saveErr: errors.New("boom")})
	status, err := SaveFromField(context.Background(), reg, session, field, provider.OpenAI)
	if err == nil {
		t.Fatal("expected error")
	}
	if status.Has(provider.OpenAI) {
		t.Error("failed save must not mark the provider as saved")
	}
	if field.Value() != "sk-bad" {
		t.Error("failed save must leave the field untouched")
	}
}
