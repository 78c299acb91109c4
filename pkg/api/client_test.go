package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	oerrors "github.com/campex/campex/pkg/errors"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client, server
}

func TestMyPermissions(t *testing.T) {
	var gotAuth, gotRequestID string

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/rbac/my-permissions" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Request-ID")

		_ = json.NewEncoder(w).Encode(PermissionsResponse{
			Role:        "admin",
			Permissions: []string{"a", "b"},
		})
	}))

	resp, err := client.MyPermissions(context.Background(), "tok-123")
	if err != nil {
		t.Fatalf("my-permissions failed: %v", err)
	}

	if gotAuth != "Bearer tok-123" {
		t.Fatalf("unexpected Authorization header %q", gotAuth)
	}
	if gotRequestID == "" {
		t.Fatal("expected a request id header")
	}
	if resp.Role != "admin" || len(resp.Permissions) != 2 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestStatusCodeMapping(t *testing.T) {
	cases := []struct {
		status int
		code   oerrors.Code
	}{
		{http.StatusUnauthorized, oerrors.CodeUnauthenticated},
		{http.StatusForbidden, oerrors.CodePermissionDenied},
		{http.StatusNotFound, oerrors.CodeNotFound},
		{http.StatusTooManyRequests, oerrors.CodeRateLimited},
		{http.StatusBadGateway, oerrors.CodeAPIUnavailable},
		{http.StatusBadRequest, oerrors.CodeUnknown},
	}

	for _, tc := range cases {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "nope"})
		}))

		_, err := client.AdminStats(context.Background(), "tok")
		if err == nil {
			t.Fatalf("status %d: expected error", tc.status)
		}
		if !oerrors.IsCode(err, tc.code) {
			t.Fatalf("status %d: expected code %q, got %v", tc.status, tc.code, err)
		}
		if err.Error() != "nope" {
			t.Fatalf("status %d: expected server message to surface, got %q", tc.status, err.Error())
		}
	}
}

func TestAdminLoginSendsNoBearer(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Fatal("login must not carry a bearer token")
		}

		var input AdminLoginInput
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			t.Fatalf("decode login body: %v", err)
		}
		if input.Code != "1234" {
			t.Fatalf("unexpected admin code %q", input.Code)
		}

		_ = json.NewEncoder(w).Encode(AdminLoginResponse{Token: "issued"})
	}))

	resp, err := client.AdminLogin(context.Background(), AdminLoginInput{Code: "1234"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if resp.Token != "issued" {
		t.Fatalf("unexpected token %q", resp.Token)
	}
}

func TestCancelOrderNoContent(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Fatalf("unexpected method %q", r.Method)
		}
		if r.URL.Path != "/api/web/stock/orders/ord-9" {
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	if err := client.CancelOrder(context.Background(), "tok", "ord-9"); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
}

func TestUnreachableBackend(t *testing.T) {
	client, server := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	_, err := client.Leaderboard(context.Background(), "tok")
	if err == nil {
		t.Fatal("expected network error")
	}
	if !oerrors.IsCode(err, oerrors.CodeAPIUnavailable) {
		t.Fatalf("expected api_unavailable, got %v", err)
	}
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatal("expected missing base URL error")
	}
}
