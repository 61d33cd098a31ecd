package handlers

import "time"

// CastVoteRequest is the body of a candidate vote. voterId is checked by the
// service after the voting gate.
type CastVoteRequest struct {
	VoterID      string `json:"voterId"`
	VoterEmail   string `json:"voterEmail"`
	VoterName    string `json:"voterName"`
	Constituency string `json:"constituency"`
}

// RemoveVoteRequest is the body of a vote retraction
type RemoveVoteRequest struct {
	VoterID string `json:"voterId"`
}

// PollVoteRequest is the body of a poll vote
type PollVoteRequest struct {
	ChoiceID string `json:"choiceId"`
	VoterID  string `json:"voterId"`
}

// LoginRequest is the admin login body
type LoginRequest struct {
	Password string `json:"password" validate:"required"`
}

// CreateCandidateRequest is the admin candidate create body
type CreateCandidateRequest struct {
	FullName       string `json:"fullName" validate:"required,max=200"`
	ProfilePhoto   string `json:"profilePhoto" validate:"omitempty,url"`
	Gender         string `json:"gender"`
	District       string `json:"district"`
	PartyName      string `json:"partyName"`
	Constituency   string `json:"constituency"`
	CandidacyLevel string `json:"candidacyLevel" validate:"omitempty,oneof=federal provincial local"`
	VotingEnabled  *bool  `json:"votingEnabled"`
	IsActive       *bool  `json:"isActive"`
}

// SetVotingRequest toggles a candidate's voting gate; nil flips it
type SetVotingRequest struct {
	VotingEnabled *bool `json:"votingEnabled"`
}

// SetActiveRequest toggles activity; nil flips it
type SetActiveRequest struct {
	IsActive *bool `json:"isActive"`
}

// VerifyVoteRequest sets a vote's verification flag
type VerifyVoteRequest struct {
	IsVerified *bool `json:"isVerified" validate:"required"`
}

// CreatePollRequest is the admin poll create body
type CreatePollRequest struct {
	Title            string     `json:"title" validate:"required,max=300"`
	Description      string     `json:"description"`
	Choices          []string   `json:"choices" validate:"min=2,dive,required"`
	StartAt          *time.Time `json:"startAt"`
	EndAt            *time.Time `json:"endAt"`
	IsActive         *bool      `json:"isActive"`
	AllowAnonymous   *bool      `json:"allowAnonymous"`
	MaxVotesPerVoter int        `json:"maxVotesPerVoter"`
}

// SyncCandidatesRequest imports the roster; an empty feedUrl uses the configured feed
type SyncCandidatesRequest struct {
	FeedURL string `json:"feedUrl" validate:"omitempty,url"`
}

// SetLoggingRequest adjusts logging at runtime
type SetLoggingRequest struct {
	Level string `json:"level" validate:"omitempty,oneof=debug info warn warning error"`
	HTTP  *bool  `json:"http"`
}
