package handlers

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/abrezinsky/electionvote/internal/errors"
)

func TestToAPIError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", errors.Validation("bad"), http.StatusBadRequest, ErrCodeValidation},
		{"invalid input", errors.InvalidInput("bad"), http.StatusBadRequest, ErrCodeValidation},
		{"duplicate", errors.Duplicate("again"), http.StatusBadRequest, ErrCodeAlreadyVoted},
		{"forbidden", errors.Forbidden("closed"), http.StatusForbidden, ErrCodeForbidden},
		{"auth required", errors.AuthenticationRequired("login"), http.StatusForbidden, "AUTH_REQUIRED"},
		{"not found", errors.NotFound("gone"), http.StatusNotFound, ErrCodeNotFound},
		{"conflict", errors.Conflict("busy"), http.StatusConflict, ErrCodeConflict},
		{"wrapped not found", fmt.Errorf("loading: %w", errors.NotFound("gone")), http.StatusNotFound, ErrCodeNotFound},
		{"plain error", stderrors.New("database is locked"), http.StatusInternalServerError, ErrCodeInternalServer},
		{"internal kind", errors.Internal(stderrors.New("x")), http.StatusInternalServerError, ErrCodeInternalServer},
		{"api error passthrough", BadRequest("nope"), http.StatusBadRequest, ErrCodeBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToAPIError(tt.err)
			if got.Status != tt.status || got.Code != tt.code {
				t.Errorf("ToAPIError() = %d/%s, want %d/%s", got.Status, got.Code, tt.status, tt.code)
			}
		})
	}
}

func TestToAPIError_InternalHidesMessage(t *testing.T) {
	got := ToAPIError(stderrors.New("UNIQUE constraint failed: votes.candidate_id"))
	if strings.Contains(got.Message, "constraint") || strings.Contains(got.Err, "constraint") {
		t.Errorf("internal error leaked: %+v", got)
	}
}

func TestValidateStruct_UsesJSONNames(t *testing.T) {
	err := validateStruct(&CreatePollRequest{Choices: []string{"A", "B"}})
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.Message != "title is required" {
		t.Errorf("unexpected message %q", apiErr.Message)
	}

	err = validateStruct(&CreatePollRequest{Title: "T", Choices: []string{"A"}})
	if err == nil || !strings.Contains(err.Error(), "choices") {
		t.Errorf("expected choices error, got %v", err)
	}
}

func TestDecodeJSON(t *testing.T) {
	var target PollVoteRequest

	r := httptest.NewRequest("POST", "/", strings.NewReader(""))
	if err := decodeJSON(httptest.NewRecorder(), r, &target, true); err != nil {
		t.Errorf("empty body should be allowed: %v", err)
	}
	r = httptest.NewRequest("POST", "/", strings.NewReader(""))
	if err := decodeJSON(httptest.NewRecorder(), r, &target, false); err == nil {
		t.Error("expected error for empty body")
	}

	r = httptest.NewRequest("POST", "/", strings.NewReader(`{"choiceId":"c1"}`))
	if err := decodeJSON(httptest.NewRecorder(), r, &target, false); err != nil || target.ChoiceID != "c1" {
		t.Errorf("decode failed: %v %+v", err, target)
	}

	r = httptest.NewRequest("POST", "/", strings.NewReader(`{"choiceId":`))
	err := decodeJSON(httptest.NewRecorder(), r, &target, false)
	if apiErr, ok := err.(*APIError); !ok || apiErr.Status != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}
