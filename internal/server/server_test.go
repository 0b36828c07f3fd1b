package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"palmbudget/internal/bucket"
	"palmbudget/internal/calendar"
	"palmbudget/internal/ledger"
	"palmbudget/internal/registry"
	"palmbudget/internal/sweep"
)

func newTestServer(t *testing.T) (*httptest.Server, *registry.Registry, *ledger.Memory) {
	t.Helper()
	reg := registry.New(registry.Defaults{MinimumBalance: decimal.NewFromInt(10)}, zerolog.Nop())
	mem := ledger.NewMemory()
	pause := sweep.NewPauseState("0xadmin", zerolog.Nop())
	scheduler := sweep.New(reg, mem, pause, zerolog.Nop())

	srv := httptest.NewServer(New(scheduler, zerolog.Nop()).Router())
	t.Cleanup(srv.Close)
	return srv, reg, mem
}

func monthEndQuery() string {
	ts := calendar.Timestamp(calendar.Date{Year: 2026, Month: 1, Day: 31}, 9*3600)
	return "?at=" + time.Unix(ts, 0).UTC().Format(time.RFC3339)
}

func TestCheckEndpoint(t *testing.T) {
	srv, reg, mem := newTestServer(t)
	_ = reg.Authorize(context.Background(), "0xuser")
	mem.SetBalance("0xuser", bucket.Spendable, decimal.NewFromInt(50))

	resp, err := http.Get(srv.URL + "/api/sweep/0xuser/check" + monthEndQuery())
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}

	var payload struct {
		CanExecute bool   `json:"can_execute"`
		Reason     string `json:"reason"`
		Amount     string `json:"amount"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatal(err)
	}
	if !payload.CanExecute || payload.Amount != "40" {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestExecuteRejectionStatus(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/sweep/0xnobody/execute"+monthEndQuery(), "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for a rejected sweep, got %d", resp.StatusCode)
	}

	var payload struct {
		Reason   string `json:"reason"`
		Category string `json:"category"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatal(err)
	}
	if payload.Reason != string(sweep.ReasonNotAuthorized) || payload.Category != "fix_setup" {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestPauseRequiresAdminHeader(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/admin/pause", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 without admin header, got %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/admin/pause", nil)
	req.Header.Set("X-Admin-Identity", "0xadmin")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with admin header, got %d", resp.StatusCode)
	}

	// The gate now reports paused.
	resp, err = http.Get(srv.URL + "/api/admin/paused")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var state struct {
		Paused bool `json:"paused"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		t.Fatal(err)
	}
	if !state.Paused {
		t.Fatal("system should report paused")
	}
}

func TestBadAtParameter(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/api/sweep/0xuser/check?at=yesterday")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}
