package extension

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/xraph/cahiers"
	"github.com/xraph/cahiers/school"
	"github.com/xraph/cahiers/store/memory"
)

func buildExtension(t *testing.T, opts ...Option) *Extension {
	t.Helper()
	quiet := cahiers.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	e := New(append([]Option{WithStore(memory.New()), WithLedgerOption(quiet)}, opts...)...)
	e.config = mergeWithDefaults(e.config)
	if err := e.build(); err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := e.Engine().Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = e.Engine().Stop() })
	return e
}

func TestHandlerServesLedger(t *testing.T) {
	e := buildExtension(t, WithBasePath("/api/cahiers"))
	if e.Handler() == nil {
		t.Fatal("Handler: got nil, want router")
	}

	srv := httptest.NewServer(e.Handler())
	defer srv.Close()

	body, _ := json.Marshal(map[string]any{"name": "École Liberté 6"})
	resp, err := http.Post(srv.URL+"/api/cahiers/schools", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST status: got %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	var created school.School
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	got, err := e.Engine().GetSchool(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetSchool through engine: %v", err)
	}
	if got.Name != "École Liberté 6" {
		t.Errorf("Name: got %q", got.Name)
	}

	get, err := http.Get(srv.URL + "/api/cahiers/schools/" + created.ID.String())
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	get.Body.Close()
	if get.StatusCode != http.StatusOK {
		t.Errorf("GET status: got %d, want %d", get.StatusCode, http.StatusOK)
	}

	def, err := http.Get(srv.URL + "/cahiers/schools")
	if err != nil {
		t.Fatalf("GET default path: %v", err)
	}
	def.Body.Close()
	if def.StatusCode != http.StatusNotFound {
		t.Errorf("default base path: got %d, want %d", def.StatusCode, http.StatusNotFound)
	}
}

func TestDisableRoutes(t *testing.T) {
	e := buildExtension(t, WithDisableRoutes())
	if e.Handler() != nil {
		t.Error("Handler: want nil when routes are disabled")
	}
	if e.Engine() == nil {
		t.Error("Engine: got nil")
	}
}

func TestHealthPingsStore(t *testing.T) {
	e := buildExtension(t)
	if err := e.Health(context.Background()); err != nil {
		t.Errorf("Health: %v", err)
	}
	if err := New().Health(context.Background()); err == nil {
		t.Error("Health without store: want error")
	}
}
