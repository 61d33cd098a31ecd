package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	CookieName    = "electionvote_session"
	SessionExpiry = 24 * time.Hour
	issuer        = "electionvote"
	adminSubject  = "admin"
)

// Words for generated admin passwords
var passwordWords = []string{
	"ballot", "booth", "himal", "river", "terai",
	"lotus", "rhino", "yak", "temple", "valley",
	"summit", "monsoon", "pagoda", "stupa", "prayer",
	"flag", "kite", "drum", "tika",
}

var ErrInvalidSession = errors.New("invalid session")

// Auth handles admin authentication with signed session tokens
type Auth struct {
	password string
	secret   []byte
	revoked  map[string]time.Time // jti -> token expiry
	mu       sync.RWMutex
	now      func() time.Time
}

// New creates a new Auth instance. An empty secret is replaced with random
// bytes, which invalidates sessions across restarts.
func New(password string, secret []byte) *Auth {
	if len(secret) == 0 {
		secret = make([]byte, 32)
		rand.Read(secret)
	}
	return &Auth{
		password: password,
		secret:   secret,
		revoked:  make(map[string]time.Time),
		now:      time.Now,
	}
}

// GeneratePassword creates a random 3-word password
func GeneratePassword() string {
	words := make([]string, 3)
	for i := range words {
		words[i] = passwordWords[randomInt(len(passwordWords))]
	}
	return strings.Join(words, "-")
}

// Login validates the password and returns a signed session token if valid
func (a *Auth) Login(password string) (string, bool) {
	if !passwordsEqual(password, a.password) {
		return "", false
	}

	now := a.now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    issuer,
		Subject:   adminSubject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(SessionExpiry)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", false
	}
	return token, true
}

// Logout revokes a session token until it would have expired anyway
func (a *Auth) Logout(token string) {
	claims, err := a.parse(token)
	if err != nil {
		return
	}
	a.mu.Lock()
	a.revoked[claims.ID] = claims.ExpiresAt.Time
	a.pruneLocked()
	a.mu.Unlock()
}

// ValidateSession checks if a session token is valid
func (a *Auth) ValidateSession(token string) bool {
	claims, err := a.parse(token)
	if err != nil {
		return false
	}
	a.mu.RLock()
	_, revoked := a.revoked[claims.ID]
	a.mu.RUnlock()
	return !revoked
}

func (a *Auth) parse(token string) (*jwt.RegisteredClaims, error) {
	if token == "" {
		return nil, ErrInvalidSession
	}
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithSubject(adminSubject),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// pruneLocked drops revocations whose tokens have expired
func (a *Auth) pruneLocked() {
	now := a.now()
	for id, exp := range a.revoked {
		if now.After(exp) {
			delete(a.revoked, id)
		}
	}
}

// GetSessionFromRequest extracts and validates the session from a request
func (a *Auth) GetSessionFromRequest(r *http.Request) bool {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return false
	}
	return a.ValidateSession(cookie.Value)
}

// RequireAuthAPI middleware for API endpoints (returns 401)
func (a *Auth) RequireAuthAPI(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.GetSessionFromRequest(r) {
			next.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"success":false,"code":"UNAUTHORIZED","message":"Unauthorized - please log in","error":"Unauthorized - please log in"}`))
	})
}

// SetSessionCookie sets the session cookie on the response
func SetSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(SessionExpiry.Seconds()),
	})
}

// ClearSessionCookie removes the session cookie
func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}

// passwordsEqual compares digests so the comparison time does not depend on
// where the inputs differ
func passwordsEqual(got, want string) bool {
	g := sha256.Sum256([]byte(got))
	w := sha256.Sum256([]byte(want))
	return hmac.Equal(g[:], w[:])
}

// randomInt returns a random int in [0, max)
func randomInt(max int) int {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0
	}
	return int(n.Int64())
}

// SecretFromString decodes a hex secret, falling back to the raw bytes
func SecretFromString(s string) []byte {
	if s == "" {
		return nil
	}
	if b, err := hex.DecodeString(s); err == nil && len(b) >= 16 {
		return b
	}
	return []byte(s)
}
