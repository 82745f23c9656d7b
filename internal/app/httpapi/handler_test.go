package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	app "github.com/bayanihan-circle/coop_ledger/internal/app"
	"github.com/bayanihan-circle/coop_ledger/internal/app/domain/policy"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	application, err := app.New(app.Stores{}, policy.Default(), nil)
	if err != nil {
		t.Fatalf("build application: %v", err)
	}
	srv := httptest.NewServer(NewHandler(application))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, payload any, out any) *http.Response {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("encode payload: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return resp
}

func createMember(t *testing.T, srv *httptest.Server, name, email string) map[string]any {
	t.Helper()
	var m map[string]any
	resp := doJSON(t, http.MethodPost, srv.URL+"/members", map[string]string{
		"full_name": name,
		"email":     email,
	}, &m)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create member: status %d", resp.StatusCode)
	}
	return m
}

func promoteAdmin(t *testing.T, srv *httptest.Server, memberID string) {
	t.Helper()
	resp := doJSON(t, http.MethodPost, srv.URL+"/members/"+memberID+"/promote",
		map[string]string{"role": "operations_admin"}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("promote: status %d", resp.StatusCode)
	}
}

func TestContributionFlowOverHTTP(t *testing.T) {
	srv := newServer(t)
	m := createMember(t, srv, "Ana Reyes", "ana@example.ph")
	admin := createMember(t, srv, "Bea Cruz", "bea@example.ph")
	promoteAdmin(t, srv, admin["id"].(string))

	var c map[string]any
	resp := doJSON(t, http.MethodPost, srv.URL+"/contributions", map[string]any{
		"member_id":   m["id"],
		"amount":      "1000",
		"method":      "cash",
		"recorded_by": admin["id"],
	}, &c)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("record contribution: status %d", resp.StatusCode)
	}
	if c["status"] != "approved" {
		t.Fatalf("admin-recorded contribution should be approved, got %v", c["status"])
	}
	if c["net"] != "900" {
		t.Fatalf("net capital should be 900, got %v", c["net"])
	}

	var got map[string]any
	doJSON(t, http.MethodGet, srv.URL+"/members/"+m["id"].(string), nil, &got)
	if got["share_capital"] != "900" {
		t.Fatalf("share capital should be 900, got %v", got["share_capital"])
	}
}

func TestErrorTaxonomyMapsToStatusCodes(t *testing.T) {
	srv := newServer(t)
	m := createMember(t, srv, "Cora Santos", "cora@example.ph")
	admin := createMember(t, srv, "Dina Flores", "dina@example.ph")
	promoteAdmin(t, srv, admin["id"].(string))

	// Validation: below the minimum contribution.
	resp := doJSON(t, http.MethodPost, srv.URL+"/contributions", map[string]any{
		"member_id": m["id"],
		"amount":    "50",
		"method":    "cash",
	}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("validation error should map to 400, got %d", resp.StatusCode)
	}

	// Insufficient funds: withdrawing more than the member holds.
	resp = doJSON(t, http.MethodPost, srv.URL+"/withdrawals", map[string]any{
		"member_id": m["id"],
		"amount":    "99999",
	}, nil)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("insufficient funds should map to 422, got %d", resp.StatusCode)
	}

	// Invalid state: approving a contribution twice.
	var c map[string]any
	doJSON(t, http.MethodPost, srv.URL+"/contributions", map[string]any{
		"member_id": m["id"],
		"amount":    "1000",
		"method":    "gcash",
	}, &c)
	approveURL := fmt.Sprintf("%s/contributions/%s/approve", srv.URL, c["id"])
	if resp := doJSON(t, http.MethodPost, approveURL, map[string]any{"approved_by": admin["id"]}, nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("first approval: status %d", resp.StatusCode)
	}
	if resp := doJSON(t, http.MethodPost, approveURL, map[string]any{"approved_by": admin["id"]}, nil); resp.StatusCode != http.StatusConflict {
		t.Fatalf("double approval should map to 409, got %d", resp.StatusCode)
	}
}

func TestFundsSnapshotEndpoint(t *testing.T) {
	srv := newServer(t)
	m := createMember(t, srv, "Elena Uy", "elena@example.ph")
	admin := createMember(t, srv, "Fely Go", "fely@example.ph")
	promoteAdmin(t, srv, admin["id"].(string))

	doJSON(t, http.MethodPost, srv.URL+"/contributions", map[string]any{
		"member_id":   m["id"],
		"amount":      "10000",
		"method":      "bank_transfer",
		"recorded_by": admin["id"],
	}, nil)

	var snap map[string]any
	resp := doJSON(t, http.MethodGet, srv.URL+"/funds", nil, &snap)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("funds: status %d", resp.StatusCode)
	}
	// 10,000 gross lands as 9,000 capital; 20% reserve leaves 7,200.
	if snap["total_capital"] != "9000" {
		t.Fatalf("total capital should be 9000, got %v", snap["total_capital"])
	}
	if snap["available_for_lending"] != "7200" {
		t.Fatalf("available should be 7200, got %v", snap["available_for_lending"])
	}
}

func TestAuditTrailRecordsMutations(t *testing.T) {
	srv := newServer(t)
	createMember(t, srv, "Gina Lim", "gina@example.ph")

	var entries []map[string]any
	resp := doJSON(t, http.MethodGet, srv.URL+"/audit", nil, &entries)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("audit: status %d", resp.StatusCode)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one audit entry, got %d", len(entries))
	}
	if entries[0]["method"] != "POST" || entries[0]["path"] != "/members" {
		t.Fatalf("unexpected audit entry: %+v", entries[0])
	}
}

func TestLoanLifecycleOverHTTP(t *testing.T) {
	srv := newServer(t)
	m := createMember(t, srv, "Hana Sy", "hana@example.ph")
	admin := createMember(t, srv, "Ines Tan", "ines@example.ph")
	promoteAdmin(t, srv, admin["id"].(string))

	// Capital backs the 3x borrowing ceiling.
	doJSON(t, http.MethodPost, srv.URL+"/contributions", map[string]any{
		"member_id":   m["id"],
		"amount":      "10000",
		"method":      "cash",
		"recorded_by": admin["id"],
	}, nil)

	var ln map[string]any
	resp := doJSON(t, http.MethodPost, srv.URL+"/loans", map[string]any{
		"member_id":   m["id"],
		"amount":      "10000",
		"term_months": 12,
		"purpose":     "sari-sari store stock",
	}, &ln)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("apply: status %d", resp.StatusCode)
	}

	loanURL := fmt.Sprintf("%s/loans/%s", srv.URL, ln["id"])
	var approved map[string]any
	doJSON(t, http.MethodPost, loanURL+"/approve", map[string]any{"approved_by": admin["id"]}, &approved)
	if approved["balance"] != "12400" {
		t.Fatalf("2%% x 12 months on 10,000 should owe 12400, got %v", approved["balance"])
	}

	var payment map[string]any
	resp = doJSON(t, http.MethodPost, loanURL+"/payments", map[string]any{
		"amount": "2000",
		"method": "gcash",
	}, &payment)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("payment: status %d", resp.StatusCode)
	}
	balance := payment["loan"].(map[string]any)["balance"]
	if balance != "10400" {
		t.Fatalf("balance after 2,000 payment should be 10400, got %v", balance)
	}
}
