package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func TestNew_RandomSecretWhenEmpty(t *testing.T) {
	a := New("pw", nil)
	b := New("pw", nil)

	if len(a.secret) != 32 {
		t.Fatalf("expected 32-byte secret, got %d", len(a.secret))
	}
	token, _ := a.Login("pw")
	if b.ValidateSession(token) {
		t.Error("token signed with one random secret must not validate under another")
	}
}

func TestGeneratePassword_Format(t *testing.T) {
	pw := GeneratePassword()

	parts := strings.Split(pw, "-")
	if len(parts) != 3 {
		t.Errorf("expected 3 words separated by dashes, got %d parts: %s", len(parts), pw)
	}

	for _, part := range parts {
		found := false
		for _, word := range passwordWords {
			if part == word {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("word %q not in passwordWords list", part)
		}
	}
}

func TestGeneratePassword_Randomness(t *testing.T) {
	passwords := make(map[string]bool)
	for i := 0; i < 10; i++ {
		passwords[GeneratePassword()] = true
	}
	if len(passwords) < 3 {
		t.Errorf("expected more password variety, got only %d unique passwords", len(passwords))
	}
}

func TestLogin(t *testing.T) {
	a := New("correct-password", testSecret)

	if token, ok := a.Login("wrong-password"); ok || token != "" {
		t.Error("expected login to fail with wrong password")
	}

	token, ok := a.Login("correct-password")
	if !ok || token == "" {
		t.Fatal("expected login to succeed with correct password")
	}
	if strings.Count(token, ".") != 2 {
		t.Errorf("expected a compact JWT, got %q", token)
	}
	if !a.ValidateSession(token) {
		t.Error("expected session to be valid after login")
	}
}

func TestLogout_RevokesSession(t *testing.T) {
	a := New("password", testSecret)
	token, _ := a.Login("password")
	other, _ := a.Login("password")

	a.Logout(token)

	if a.ValidateSession(token) {
		t.Error("expected session to be invalid after logout")
	}
	if !a.ValidateSession(other) {
		t.Error("logout must only revoke its own token")
	}
}

func TestValidateSession_Rejections(t *testing.T) {
	a := New("password", testSecret)
	now := time.Now()

	sign := func(method jwt.SigningMethod, key any, claims jwt.RegisteredClaims) string {
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		if err != nil {
			t.Fatalf("signing: %v", err)
		}
		return s
	}
	valid := jwt.RegisteredClaims{
		ID: "id", Issuer: issuer, Subject: adminSubject,
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}

	expired := valid
	expired.ExpiresAt = jwt.NewNumericDate(now.Add(-time.Minute))
	wrongSubject := valid
	wrongSubject.Subject = "voter"
	noExpiry := valid
	noExpiry.ExpiresAt = nil

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-token"},
		{"expired", sign(jwt.SigningMethodHS256, testSecret, expired)},
		{"wrong secret", sign(jwt.SigningMethodHS256, []byte("another-secret-another-secret!!!"), valid)},
		{"wrong algorithm", sign(jwt.SigningMethodHS512, testSecret, valid)},
		{"wrong subject", sign(jwt.SigningMethodHS256, testSecret, wrongSubject)},
		{"no expiry", sign(jwt.SigningMethodHS256, testSecret, noExpiry)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if a.ValidateSession(tt.token) {
				t.Errorf("expected %s token to be rejected", tt.name)
			}
		})
	}

	if !a.ValidateSession(sign(jwt.SigningMethodHS256, testSecret, valid)) {
		t.Error("control token should validate")
	}
}

func TestLogout_PrunesExpiredRevocations(t *testing.T) {
	a := New("password", testSecret)
	start := time.Now()
	a.now = func() time.Time { return start }

	old, _ := a.Login("password")
	a.Logout(old)

	a.now = func() time.Time { return start.Add(SessionExpiry + time.Minute) }
	fresh, _ := a.Login("password")
	a.Logout(fresh)

	a.mu.RLock()
	defer a.mu.RUnlock()
	if len(a.revoked) != 1 {
		t.Errorf("expected expired revocation to be pruned, have %d", len(a.revoked))
	}
}

func TestGetSessionFromRequest(t *testing.T) {
	a := New("password", testSecret)
	token, _ := a.Login("password")

	req := httptest.NewRequest("GET", "/api/admin/polls", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	if !a.GetSessionFromRequest(req) {
		t.Error("expected valid session from request")
	}

	if a.GetSessionFromRequest(httptest.NewRequest("GET", "/api/admin/polls", nil)) {
		t.Error("expected false when no cookie present")
	}

	req = httptest.NewRequest("GET", "/api/admin/polls", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "invalid-token"})
	if a.GetSessionFromRequest(req) {
		t.Error("expected false for invalid token")
	}
}

func TestRequireAuthAPI(t *testing.T) {
	a := New("password", testSecret)
	token, _ := a.Login("password")

	handler := a.RequireAuthAPI(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/api/admin/polls", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/api/admin/polls", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rr.Code)
	}
	if rr.Header().Get("Content-Type") != "application/json" {
		t.Error("expected JSON content type")
	}
	if body := rr.Body.String(); !strings.Contains(body, "UNAUTHORIZED") || !strings.Contains(body, `"success":false`) {
		t.Errorf("unexpected body: %s", body)
	}
}

func TestSessionCookies(t *testing.T) {
	rr := httptest.NewRecorder()
	SetSessionCookie(rr, "test-token")

	cookies := rr.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected 1 cookie, got %d", len(cookies))
	}
	if c := cookies[0]; c.Name != CookieName || c.Value != "test-token" || !c.HttpOnly || c.Path != "/" {
		t.Errorf("unexpected cookie %+v", c)
	}

	rr = httptest.NewRecorder()
	ClearSessionCookie(rr)
	cookies = rr.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge != -1 {
		t.Errorf("expected deleting cookie, got %+v", cookies)
	}
}

func TestSecretFromString(t *testing.T) {
	if SecretFromString("") != nil {
		t.Error("expected nil for empty secret")
	}
	if got := SecretFromString("00112233445566778899aabbccddeeff"); len(got) != 16 {
		t.Errorf("expected hex decode to 16 bytes, got %d", len(got))
	}
	if got := SecretFromString("plain text secret"); string(got) != "plain text secret" {
		t.Errorf("expected raw bytes, got %q", got)
	}
}

func TestConcurrentSessionAccess(t *testing.T) {
	a := New("password", testSecret)

	done := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func() {
			token, _ := a.Login("password")
			a.ValidateSession(token)
			a.Logout(token)
			done <- true
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}
}
