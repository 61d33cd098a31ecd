package services

import "github.com/abrezinsky/electionvote/internal/errors"

// Service errors
var (
	ErrCandidateNotFound     = errors.NotFound("Candidate not found")
	ErrVotingDisabled        = errors.Forbidden("Voting is currently disabled for this candidate")
	ErrCandidateInactive     = errors.Forbidden("This candidate is not active")
	ErrVoterIDRequired       = errors.Validation("Voter ID is required")
	ErrAlreadyVotedCandidate = errors.Duplicate("You have already voted for this candidate")
	ErrVoteNotFound          = errors.NotFound("Vote not found")
	ErrCandidateNameRequired = errors.Validation("fullName is required")

	ErrPollNotFound        = errors.NotFound("Poll not found")
	ErrPollClosed          = errors.Forbidden("Poll is closed")
	ErrChoiceRequired      = errors.Validation("choiceId is required")
	ErrAuthRequired        = errors.AuthenticationRequired("Authentication required to vote on this poll")
	ErrInvalidChoice       = errors.Validation("Invalid choice")
	ErrAlreadyVotedPoll    = errors.Duplicate("You have already voted")
	ErrPollTitleRequired   = errors.Validation("Poll title is required")
	ErrPollTooFewChoices   = errors.Validation("A poll needs at least two choices")
	ErrPollWindowInvalid   = errors.Validation("endAt must be after startAt")
	ErrMaxVotesUnsupported = errors.Validation("maxVotesPerVoter must be 1")

	ErrFeedURLMissing = errors.Validation("no election feed URL configured")
)
