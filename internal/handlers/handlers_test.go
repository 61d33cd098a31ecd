package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/abrezinsky/electionvote/internal/auth"
	"github.com/abrezinsky/electionvote/internal/handlers"
	"github.com/abrezinsky/electionvote/internal/logger"
	"github.com/abrezinsky/electionvote/internal/repository"
	"github.com/abrezinsky/electionvote/internal/repository/mock"
	"github.com/abrezinsky/electionvote/internal/services"
	"github.com/abrezinsky/electionvote/internal/testutil"
	"github.com/abrezinsky/electionvote/pkg/electionfeed"
)

const testPassword = "test-password"

// testServer wires real services over an in-memory store behind the mock
// repository so tests can inject storage failures
type testServer struct {
	t      *testing.T
	repo   *repository.Repository
	mock   *mock.Repository
	h      *handlers.Handlers
	router http.Handler
	feed   *electionfeed.MockClient
}

func newTestServer(t *testing.T, configure ...func(*handlers.Handlers)) *testServer {
	t.Helper()
	repo := testutil.NewTestRepository(t)
	mockRepo := mock.NewRepository(repo)
	log := logger.Discard()

	guard := services.NewGuard(log, mockRepo, nil)
	tally := services.NewTallyService(log, mockRepo, nil)
	feed := electionfeed.NewMockClient()

	h := handlers.New(
		services.NewCandidateVotingService(log, mockRepo, guard, tally, nil),
		services.NewPollService(log, mockRepo, guard, tally, nil),
		tally,
		services.NewFeedService(log, mockRepo, feed),
		services.NewShareService(log, mockRepo, "http://vote.example.org/"),
		auth.New(testPassword, []byte("0123456789abcdef0123456789abcdef")),
		log,
	)
	h.Health = repo
	for _, fn := range configure {
		fn(h)
	}

	return &testServer{t: t, repo: repo, mock: mockRepo, h: h, router: h.Router(), feed: feed}
}

// do sends a request and returns the recorder. body may be nil, a string, or
// any value that is JSON encoded.
func (s *testServer) do(method, path string, body interface{}, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			s.t.Fatalf("encoding body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

// doFrom sends a request from a specific remote address
func (s *testServer) doFrom(remote, method, path string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	buf, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewReader(buf))
	req.RemoteAddr = remote
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

// login returns the admin session cookie
func (s *testServer) login() *http.Cookie {
	s.t.Helper()
	rec := s.do("POST", "/api/admin/login", map[string]string{"password": testPassword})
	if rec.Code != http.StatusOK {
		s.t.Fatalf("login failed: %d %s", rec.Code, rec.Body.String())
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.CookieName {
			return c
		}
	}
	s.t.Fatal("no session cookie set")
	return nil
}

// apiResponse is the decoded envelope of either outcome
type apiResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) apiResponse {
	t.Helper()
	var resp apiResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON response %q: %v", rec.Body.String(), err)
	}
	return resp
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, target interface{}) apiResponse {
	t.Helper()
	resp := decode(t, rec)
	if err := json.Unmarshal(resp.Data, target); err != nil {
		t.Fatalf("invalid data %q: %v", string(resp.Data), err)
	}
	return resp
}

// expectError asserts the status and error code of a failure envelope
func expectError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) apiResponse {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("expected status %d, got %d: %s", status, rec.Code, rec.Body.String())
	}
	resp := decode(t, rec)
	if resp.Success || resp.Code != code {
		t.Fatalf("expected success=false code=%s, got %+v", code, resp)
	}
	if resp.Message == "" || resp.Error == "" {
		t.Errorf("expected message and error fields, got %+v", resp)
	}
	return resp
}

func boolPtr(b bool) *bool { return &b }
