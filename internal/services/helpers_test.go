package services_test

import (
	"sync"
	"testing"
	"time"

	"github.com/abrezinsky/electionvote/internal/logger"
	"github.com/abrezinsky/electionvote/internal/models"
	"github.com/abrezinsky/electionvote/internal/repository"
	"github.com/abrezinsky/electionvote/internal/repository/mock"
	"github.com/abrezinsky/electionvote/internal/services"
	"github.com/abrezinsky/electionvote/internal/testutil"
)

// countingRecorder tallies recorder events by key
type countingRecorder struct {
	mu     sync.Mutex
	events map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{events: make(map[string]int)}
}

func (r *countingRecorder) inc(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[key]++
}

func (r *countingRecorder) VoteAccepted(kind string)         { r.inc("accepted:" + kind) }
func (r *countingRecorder) VoteRejected(kind, reason string) { r.inc("rejected:" + kind + ":" + reason) }
func (r *countingRecorder) CounterDrift(kind string)         { r.inc("drift:" + kind) }
func (r *countingRecorder) Reconciled(kind string)           { r.inc("reconciled:" + kind) }
func (r *countingRecorder) ObserveRecompute(time.Duration)   { r.inc("recompute") }

func (r *countingRecorder) count(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[key]
}

// recordingBroadcaster captures broadcasts
type recordingBroadcaster struct {
	mu         sync.Mutex
	tallies    map[string]int
	pollTally  []*services.PollResults
	pollStates map[string]models.PollState
}

func newRecordingBroadcaster() *recordingBroadcaster {
	return &recordingBroadcaster{tallies: make(map[string]int), pollStates: make(map[string]models.PollState)}
}

func (b *recordingBroadcaster) BroadcastVoteTally(candidateID string, totalVotes int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tallies[candidateID] = totalVotes
}

func (b *recordingBroadcaster) BroadcastPollTally(results *services.PollResults) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pollTally = append(b.pollTally, results)
}

func (b *recordingBroadcaster) BroadcastPollState(pollID string, state models.PollState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pollStates[pollID] = state
}

// fixture wires every service over one in-memory repository wrapped by the
// error-injecting mock
type fixture struct {
	repo        *repository.Repository
	mock        *mock.Repository
	recorder    *countingRecorder
	broadcaster *recordingBroadcaster
	guard       *services.Guard
	tally       *services.TallyService
	candidates  *services.CandidateVotingService
	polls       *services.PollService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	repo := testutil.NewTestRepository(t)
	mockRepo := mock.NewRepository(repo)
	log := logger.Discard()
	rec := newCountingRecorder()

	guard := services.NewGuard(log, mockRepo, rec)
	tally := services.NewTallyService(log, mockRepo, rec)
	f := &fixture{
		repo:        repo,
		mock:        mockRepo,
		recorder:    rec,
		broadcaster: newRecordingBroadcaster(),
		guard:       guard,
		tally:       tally,
		candidates:  services.NewCandidateVotingService(log, mockRepo, guard, tally, rec),
		polls:       services.NewPollService(log, mockRepo, guard, tally, rec),
	}
	f.candidates.SetBroadcaster(f.broadcaster)
	f.polls.SetBroadcaster(f.broadcaster)
	return f
}

func boolPtr(b bool) *bool { return &b }

func timePtr(t time.Time) *time.Time { return &t }
