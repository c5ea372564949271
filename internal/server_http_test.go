package internal

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newHTTPTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	server, _ := newTestServer(t)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/register", server.HandleRegister)
	mux.HandleFunc("POST /api/auth/login", server.HandleLogin)
	mux.HandleFunc("GET /api/auth/profile", server.HandleProfile)
	mux.HandleFunc("PUT /api/auth/pronouns", server.HandlePronouns)
	mux.HandleFunc("PUT /api/auth/headline", server.HandleHeadline)
	mux.HandleFunc("PUT /api/auth/avatar", server.HandleAvatar)
	mux.HandleFunc("GET /health", server.HandleHealth)
	httpServer := httptest.NewServer(mux)
	t.Cleanup(httpServer.Close)
	return server, httpServer
}

func doRequest(t *testing.T, method, url, token string, payload any) *http.Response {
	t.Helper()
	var body *bytes.Buffer
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewBuffer(encoded)
	} else {
		body = bytes.NewBuffer(nil)
	}
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func TestRegisterAndLogin(t *testing.T) {
	_, httpServer := newHTTPTestServer(t)

	resp := doRequest(t, http.MethodPost, httpServer.URL+"/api/auth/register", "", registerRequest{
		Email:    "Ana@Test.dev",
		Password: "hunter2!",
		Username: "ana",
		Headline: "hello there",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status = %d", resp.StatusCode)
	}
	created := decodeBody[authResponse](t, resp)
	if created.Token == "" {
		t.Fatalf("expected a token on registration")
	}
	if created.User.Email != "ana@test.dev" {
		t.Fatalf("expected lowercased email, got %q", created.User.Email)
	}
	if created.User.Headline == nil || *created.User.Headline != "hello there" {
		t.Fatalf("headline not stored: %+v", created.User.Headline)
	}
	if len(created.User.Avatar) == 0 || !json.Valid(created.User.Avatar) {
		t.Fatalf("expected a generated default avatar")
	}
	if created.ExpiresAt.Before(time.Now()) {
		t.Fatalf("token already expired")
	}

	resp = doRequest(t, http.MethodPost, httpServer.URL+"/api/auth/login", "", loginRequest{
		Email:    "ana@test.dev",
		Password: "hunter2!",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	loggedIn := decodeBody[authResponse](t, resp)
	if loggedIn.User.ID != created.User.ID {
		t.Fatalf("login returned a different user")
	}

	resp = doRequest(t, http.MethodPost, httpServer.URL+"/api/auth/login", "", loginRequest{
		Email:    "ana@test.dev",
		Password: "wrong",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad password status = %d", resp.StatusCode)
	}
}

func TestRegisterConflicts(t *testing.T) {
	_, httpServer := newHTTPTestServer(t)

	first := registerRequest{Email: "a@test.dev", Password: "pw123456", Username: "ana"}
	if resp := doRequest(t, http.MethodPost, httpServer.URL+"/api/auth/register", "", first); resp.StatusCode != http.StatusCreated {
		t.Fatalf("first register status = %d", resp.StatusCode)
	}

	dupEmail := registerRequest{Email: "a@test.dev", Password: "pw123456", Username: "other"}
	if resp := doRequest(t, http.MethodPost, httpServer.URL+"/api/auth/register", "", dupEmail); resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate email status = %d", resp.StatusCode)
	}

	dupName := registerRequest{Email: "b@test.dev", Password: "pw123456", Username: "ana"}
	if resp := doRequest(t, http.MethodPost, httpServer.URL+"/api/auth/register", "", dupName); resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate username status = %d", resp.StatusCode)
	}
}

func TestProfileUpdates(t *testing.T) {
	_, httpServer := newHTTPTestServer(t)

	resp := doRequest(t, http.MethodPost, httpServer.URL+"/api/auth/register", "", registerRequest{
		Email: "a@test.dev", Password: "pw123456", Username: "ana",
	})
	account := decodeBody[authResponse](t, resp)
	token := account.Token

	pronouns := "they/them"
	resp = doRequest(t, http.MethodPut, httpServer.URL+"/api/auth/pronouns", token, pronounsRequest{Pronouns: &pronouns})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("pronouns status = %d", resp.StatusCode)
	}
	updated := decodeBody[userDTO](t, resp)
	if updated.Pronouns == nil || *updated.Pronouns != pronouns {
		t.Fatalf("pronouns not stored: %+v", updated.Pronouns)
	}

	headline := "out and about"
	resp = doRequest(t, http.MethodPut, httpServer.URL+"/api/auth/headline", token, headlineRequest{Headline: &headline})
	updated = decodeBody[userDTO](t, resp)
	if updated.Headline == nil || *updated.Headline != headline {
		t.Fatalf("headline not stored: %+v", updated.Headline)
	}

	// blank input clears the field
	blank := "   "
	resp = doRequest(t, http.MethodPut, httpServer.URL+"/api/auth/pronouns", token, pronounsRequest{Pronouns: &blank})
	updated = decodeBody[userDTO](t, resp)
	if updated.Pronouns != nil {
		t.Fatalf("expected pronouns cleared, got %q", *updated.Pronouns)
	}

	avatar := json.RawMessage(`{"skinColor":["variant01"]}`)
	resp = doRequest(t, http.MethodPut, httpServer.URL+"/api/auth/avatar", token, avatarRequest{Avatar: avatar})
	updated = decodeBody[userDTO](t, resp)
	if !bytes.Equal(updated.Avatar, avatar) {
		t.Fatalf("avatar not stored: %s", updated.Avatar)
	}

	resp = doRequest(t, http.MethodGet, httpServer.URL+"/api/auth/profile", token, nil)
	profile := decodeBody[userDTO](t, resp)
	if profile.Headline == nil || *profile.Headline != headline {
		t.Fatalf("profile read back mismatch: %+v", profile)
	}
}

func TestProfileRequiresAuth(t *testing.T) {
	_, httpServer := newHTTPTestServer(t)

	if resp := doRequest(t, http.MethodGet, httpServer.URL+"/api/auth/profile", "", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("missing token status = %d", resp.StatusCode)
	}
	if resp := doRequest(t, http.MethodGet, httpServer.URL+"/api/auth/profile", "garbage", nil); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad token status = %d", resp.StatusCode)
	}
}

func TestHealthEndpoint(t *testing.T) {
	_, httpServer := newHTTPTestServer(t)

	resp := doRequest(t, http.MethodGet, httpServer.URL+"/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", resp.StatusCode)
	}
	body := decodeBody[map[string]string](t, resp)
	if body["status"] != "OK" || body["database"] != "connected" {
		t.Fatalf("unexpected health body: %+v", body)
	}
	if !strings.Contains(body["timestamp"], "T") {
		t.Fatalf("expected rfc3339 timestamp, got %q", body["timestamp"])
	}
}
