package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"crisisdesk.org/internal/auth"
)

func newTestAPI(t *testing.T) (*API, http.Handler) {
	t.Helper()
	svc, err := auth.NewService(auth.NewMemoryStore())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	for _, nu := range []auth.NewUser{
		{Username: "admin", Password: "admin123", Role: auth.RoleAdmin,
			Name: "System Administrator", Email: "admin@crisis-mgmt.local"},
		{Username: "dispatcher1", Password: "dispatch123", Role: auth.RoleDispatcher,
			Name: "Sarah Johnson", Email: "sarah.j@dispatch.local"},
	} {
		if _, err := svc.CreateUser(context.Background(), nu); err != nil {
			t.Fatalf("seed %s: %v", nu.Username, err)
		}
	}
	api := New(svc, ReadyProbe{}, "test")
	return api, api.Handler()
}

func doLogin(t *testing.T, handler http.Handler, username, password string) *http.Response {
	t.Helper()
	body := `{"username":"` + username + `","password":"` + password + `"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr.Result()
}

func sessionCookie(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == "session_token" {
			return c
		}
	}
	return nil
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func TestLoginSetsCookieAndReturnsPublicUser(t *testing.T) {
	_, handler := newTestAPI(t)

	resp := doLogin(t, handler, "admin", "admin123")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	cookie := sessionCookie(t, resp)
	if cookie == nil {
		t.Fatalf("expected session cookie")
	}
	if !cookie.HttpOnly {
		t.Fatalf("session cookie must be http-only")
	}
	if cookie.SameSite != http.SameSiteLaxMode {
		t.Fatalf("session cookie must be same-site lax")
	}
	if len(cookie.Value) != 64 {
		t.Fatalf("expected 64-char token, got %d", len(cookie.Value))
	}
	if cookie.MaxAge != int(auth.DefaultSessionTTL.Seconds()) {
		t.Fatalf("cookie max-age %d does not match session ttl", cookie.MaxAge)
	}

	body := decodeBody(t, resp)
	user, ok := body["user"].(map[string]any)
	if !ok {
		t.Fatalf("expected user in body: %v", body)
	}
	if user["username"] != "admin" || user["role"] != "admin" {
		t.Fatalf("unexpected user payload: %v", user)
	}
	for _, forbidden := range []string{"password", "password_hash"} {
		if _, present := user[forbidden]; present {
			t.Fatalf("user payload leaked %s", forbidden)
		}
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	_, handler := newTestAPI(t)

	wrongPassword := doLogin(t, handler, "admin", "wrong")
	unknownUser := doLogin(t, handler, "nosuchuser", "x")

	if wrongPassword.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong password: expected 401, got %d", wrongPassword.StatusCode)
	}
	if unknownUser.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unknown user: expected 401, got %d", unknownUser.StatusCode)
	}
	msg1 := decodeBody(t, wrongPassword)["error"]
	msg2 := decodeBody(t, unknownUser)["error"]
	if msg1 != msg2 {
		t.Fatalf("failure messages differ: %q vs %q", msg1, msg2)
	}
	if sessionCookie(t, wrongPassword) != nil {
		t.Fatalf("failed login must not set a session cookie")
	}
}

func TestLoginValidation(t *testing.T) {
	_, handler := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/auth/login", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/v1/auth/login", strings.NewReader(`{"username":"admin"}`))
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing password, got %d", rr.Code)
	}
}

func TestSessionCheckRoundtrip(t *testing.T) {
	_, handler := newTestAPI(t)

	login := doLogin(t, handler, "admin", "admin123")
	cookie := sessionCookie(t, login)
	if cookie == nil {
		t.Fatalf("expected session cookie")
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/auth/session", nil)
	req.AddCookie(cookie)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := decodeBody(t, rr.Result())
	user := body["user"].(map[string]any)
	if user["username"] != "admin" {
		t.Fatalf("unexpected session user: %v", user)
	}

	// Missing cookie and garbage cookie produce the same generic response.
	noCookie := httptest.NewRecorder()
	handler.ServeHTTP(noCookie, httptest.NewRequest(http.MethodGet, "/v1/auth/session", nil))

	badReq := httptest.NewRequest(http.MethodGet, "/v1/auth/session", nil)
	badReq.AddCookie(&http.Cookie{Name: "session_token", Value: "not-a-real-token"})
	badCookie := httptest.NewRecorder()
	handler.ServeHTTP(badCookie, badReq)

	if noCookie.Code != http.StatusUnauthorized || badCookie.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401/401, got %d/%d", noCookie.Code, badCookie.Code)
	}
	msg1 := decodeBody(t, noCookie.Result())["error"]
	msg2 := decodeBody(t, badCookie.Result())["error"]
	if msg1 != msg2 {
		t.Fatalf("session failure messages differ: %q vs %q", msg1, msg2)
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	_, handler := newTestAPI(t)

	login := doLogin(t, handler, "admin", "admin123")
	cookie := sessionCookie(t, login)

	logout := func() *http.Response {
		req := httptest.NewRequest(http.MethodPost, "/v1/auth/logout", nil)
		req.AddCookie(cookie)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Result()
	}

	first := logout()
	if first.StatusCode != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d", first.StatusCode)
	}
	cleared := sessionCookie(t, first)
	if cleared == nil || cleared.MaxAge >= 0 {
		t.Fatalf("expected cleared session cookie")
	}

	// The token no longer resolves.
	req := httptest.NewRequest(http.MethodGet, "/v1/auth/session", nil)
	req.AddCookie(cookie)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", rr.Code)
	}

	// Logging out again with the dead token still succeeds.
	second := logout()
	if second.StatusCode != http.StatusOK {
		t.Fatalf("repeated logout: expected 200, got %d", second.StatusCode)
	}
}

func TestConcurrentLoginsYieldIndependentSessions(t *testing.T) {
	_, handler := newTestAPI(t)

	first := doLogin(t, handler, "admin", "admin123")
	second := doLogin(t, handler, "admin", "admin123")
	c1 := sessionCookie(t, first)
	c2 := sessionCookie(t, second)
	if c1 == nil || c2 == nil {
		t.Fatalf("expected cookies on both logins")
	}
	if c1.Value == c2.Value {
		t.Fatalf("two logins produced the same token")
	}

	for _, c := range []*http.Cookie{c1, c2} {
		req := httptest.NewRequest(http.MethodGet, "/v1/auth/session", nil)
		req.AddCookie(c)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected both sessions valid, got %d", rr.Code)
		}
	}
}
