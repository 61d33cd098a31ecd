package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/abrezinsky/electionvote/internal/models"
)

// Repository provides data access methods backed by SQLite
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// New creates a new Repository
func New(dbPath string) (*Repository, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable foreign key constraints
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, err
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite works best with single connection
	db.SetMaxIdleConns(1)

	repo := &Repository{db: db, now: time.Now}

	// Run migrations
	if err := repo.migrate(); err != nil {
		return nil, err
	}

	return repo, nil
}

// NewWithDB wraps an existing connection without running migrations.
// Tests use it with go-sqlmock.
func NewWithDB(db *sql.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// DB returns the underlying database connection (for transactions)
func (r *Repository) DB() *sql.DB {
	return r.db
}

// Close closes the database connection
func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks if the database connection is alive
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// migrate runs database migrations
func (r *Repository) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS candidates (
			id TEXT PRIMARY KEY,
			external_id TEXT UNIQUE,
			full_name TEXT NOT NULL,
			profile_photo TEXT NOT NULL DEFAULT '',
			gender TEXT NOT NULL DEFAULT '',
			district TEXT NOT NULL DEFAULT '',
			party_name TEXT NOT NULL DEFAULT '',
			constituency TEXT NOT NULL DEFAULT '',
			candidacy_level TEXT NOT NULL DEFAULT '',
			votes INTEGER NOT NULL DEFAULT 0,
			vote_percentage TEXT NOT NULL DEFAULT '0.00',
			voting_enabled BOOLEAN NOT NULL DEFAULT 1,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			likes INTEGER NOT NULL DEFAULT 0,
			shares INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS votes (
			id TEXT PRIMARY KEY,
			candidate_id TEXT NOT NULL,
			voter_id TEXT NOT NULL,
			voter_email TEXT NOT NULL DEFAULT '',
			voter_name TEXT NOT NULL DEFAULT '',
			ip_address TEXT NOT NULL DEFAULT '',
			user_agent TEXT NOT NULL DEFAULT '',
			constituency TEXT NOT NULL DEFAULT '',
			vote_timestamp DATETIME NOT NULL,
			is_verified BOOLEAN NOT NULL DEFAULT 0,
			FOREIGN KEY (candidate_id) REFERENCES candidates(id) ON DELETE CASCADE,
			UNIQUE(candidate_id, voter_id)
		)`,
		`CREATE TABLE IF NOT EXISTS polls (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			start_at DATETIME,
			end_at DATETIME,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			allow_anonymous BOOLEAN NOT NULL DEFAULT 1,
			max_votes_per_voter INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS poll_choices (
			id TEXT PRIMARY KEY,
			poll_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			label TEXT NOT NULL,
			votes_count INTEGER NOT NULL DEFAULT 0,
			FOREIGN KEY (poll_id) REFERENCES polls(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS poll_votes (
			id TEXT PRIMARY KEY,
			poll_id TEXT NOT NULL,
			choice_id TEXT NOT NULL,
			voter_id TEXT,
			ip_address TEXT NOT NULL DEFAULT '',
			user_agent TEXT NOT NULL DEFAULT '',
			vote_timestamp DATETIME NOT NULL,
			FOREIGN KEY (poll_id) REFERENCES polls(id) ON DELETE CASCADE,
			FOREIGN KEY (choice_id) REFERENCES poll_choices(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS candidate_likes (
			candidate_id TEXT NOT NULL,
			client_id TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (candidate_id) REFERENCES candidates(id) ON DELETE CASCADE,
			UNIQUE(candidate_id, client_id)
		)`,
		// Identified poll voters are keyed on voter_id only; anonymous ones on ip_address.
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_poll_votes_voter ON poll_votes(poll_id, voter_id) WHERE voter_id IS NOT NULL`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_poll_votes_anon ON poll_votes(poll_id, ip_address) WHERE voter_id IS NULL`,
		`CREATE INDEX IF NOT EXISTS idx_votes_candidate_time ON votes(candidate_id, vote_timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_poll_choices_poll ON poll_choices(poll_id, position)`,
		`CREATE INDEX IF NOT EXISTS idx_candidates_votes ON candidates(votes DESC)`,
	}

	for _, migration := range migrations {
		if _, err := r.db.Exec(migration); err != nil {
			return err
		}
	}
	return nil
}

// isUniqueViolation reports whether err is a SQLite uniqueness failure
func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if stderrors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
			se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

type rowScanner interface {
	Scan(dest ...any) error
}

// ==================== Candidate Methods ====================

const candidateColumns = `id, external_id, full_name, profile_photo, gender, district, party_name,
	constituency, candidacy_level, votes, vote_percentage, voting_enabled, is_active,
	likes, shares, created_at, updated_at`

func scanCandidate(row rowScanner) (*models.Candidate, error) {
	var c models.Candidate
	var externalID sql.NullString
	err := row.Scan(&c.ID, &externalID, &c.FullName, &c.ProfilePhoto, &c.Gender, &c.District,
		&c.PartyName, &c.Constituency, &c.CandidacyLevel, &c.Votes, &c.VotePercentage,
		&c.VotingEnabled, &c.IsActive, &c.Likes, &c.Shares, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.ExternalID = externalID.String
	return &c, nil
}

// CreateCandidate inserts a candidate, assigning an id when empty
func (r *Repository) CreateCandidate(ctx context.Context, c *models.Candidate) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.VotePercentage == "" {
		c.VotePercentage = "0.00"
	}
	now := r.now()
	c.CreatedAt, c.UpdatedAt = now, now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO candidates (`+candidateColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, nullString(c.ExternalID), c.FullName, c.ProfilePhoto, c.Gender, c.District,
		c.PartyName, c.Constituency, c.CandidacyLevel, c.Votes, c.VotePercentage,
		c.VotingEnabled, c.IsActive, c.Likes, c.Shares, c.CreatedAt, c.UpdatedAt)
	return err
}

// GetCandidate returns a candidate by id
func (r *Repository) GetCandidate(ctx context.Context, id string) (*models.Candidate, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+candidateColumns+` FROM candidates WHERE id = ?`, id)
	c, err := scanCandidate(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return c, err
}

// ListCandidates returns candidates matching the filter, most votes first
func (r *Repository) ListCandidates(ctx context.Context, f models.CandidateFilter) ([]models.Candidate, error) {
	query := `SELECT ` + candidateColumns + ` FROM candidates WHERE 1 = 1`
	var args []any

	if f.ActiveOnly || f.VotingOnly {
		query += ` AND is_active = 1`
	}
	if f.VotingOnly {
		query += ` AND voting_enabled = 1`
	}
	if f.Constituency != "" {
		query += ` AND instr(lower(constituency), lower(?)) > 0`
		args = append(args, f.Constituency)
	}
	if f.PartyName != "" {
		query += ` AND instr(lower(party_name), lower(?)) > 0`
		args = append(args, f.PartyName)
	}
	if f.CandidacyLevel != "" {
		query += ` AND candidacy_level = ?`
		args = append(args, f.CandidacyLevel)
	}
	query += ` ORDER BY votes DESC, full_name`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []models.Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, *c)
	}
	return candidates, rows.Err()
}

// UpsertCandidateByExternalID creates or refreshes a candidate imported from
// the election feed. Counters and gate switches of existing rows are kept.
func (r *Repository) UpsertCandidateByExternalID(ctx context.Context, c *models.Candidate) (bool, error) {
	var existingID string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM candidates WHERE external_id = ?`, c.ExternalID).Scan(&existingID)
	if err != nil && err != sql.ErrNoRows {
		return false, err
	}
	if err == sql.ErrNoRows {
		return true, r.CreateCandidate(ctx, c)
	}

	c.ID = existingID
	c.UpdatedAt = r.now()
	_, err = r.db.ExecContext(ctx, `
		UPDATE candidates SET
			full_name = ?, profile_photo = ?, gender = ?, district = ?,
			party_name = ?, constituency = ?, updated_at = ?
		WHERE id = ?
	`, c.FullName, c.ProfilePhoto, c.Gender, c.District, c.PartyName, c.Constituency, c.UpdatedAt, existingID)
	return false, err
}

func (r *Repository) execByID(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetVotingEnabled flips the candidate voting gate
func (r *Repository) SetVotingEnabled(ctx context.Context, id string, enabled bool) error {
	return r.execByID(ctx, `UPDATE candidates SET voting_enabled = ?, updated_at = ? WHERE id = ?`, enabled, r.now(), id)
}

// SetCandidateActive flips the candidate activity flag
func (r *Repository) SetCandidateActive(ctx context.Context, id string, active bool) error {
	return r.execByID(ctx, `UPDATE candidates SET is_active = ?, updated_at = ? WHERE id = ?`, active, r.now(), id)
}

// IncrementShares bumps the share counter and returns the new value
func (r *Repository) IncrementShares(ctx context.Context, id string) (int, error) {
	var shares int
	err := r.db.QueryRowContext(ctx,
		`UPDATE candidates SET shares = shares + 1 WHERE id = ? RETURNING shares`, id).Scan(&shares)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	return shares, err
}

// ToggleLike adds or removes clientID's like in one transaction
func (r *Repository) ToggleLike(ctx context.Context, candidateID, clientID string) (int, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM candidate_likes WHERE candidate_id = ? AND client_id = ?`, candidateID, clientID)
	if err != nil {
		return 0, false, err
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, false, err
	}

	liked := removed == 0
	update := `UPDATE candidates SET likes = MAX(likes - 1, 0) WHERE id = ? RETURNING likes`
	if liked {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO candidate_likes (candidate_id, client_id, created_at) VALUES (?, ?, ?)`,
			candidateID, clientID, r.now()); err != nil {
			return 0, false, err
		}
		update = `UPDATE candidates SET likes = likes + 1 WHERE id = ? RETURNING likes`
	}

	var likes int
	if err := tx.QueryRowContext(ctx, update, candidateID).Scan(&likes); err != nil {
		if err == sql.ErrNoRows {
			return 0, false, ErrNotFound
		}
		return 0, false, err
	}
	return likes, liked, tx.Commit()
}

// ==================== Tally Methods ====================

// IncrementVotes atomically adds one to the candidate counter
func (r *Repository) IncrementVotes(ctx context.Context, candidateID string) (int, error) {
	var votes int
	err := r.db.QueryRowContext(ctx,
		`UPDATE candidates SET votes = votes + 1, updated_at = ? WHERE id = ? RETURNING votes`,
		r.now(), candidateID).Scan(&votes)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	return votes, err
}

// DecrementVotes atomically subtracts one, never going below zero
func (r *Repository) DecrementVotes(ctx context.Context, candidateID string) (int, error) {
	var votes int
	err := r.db.QueryRowContext(ctx,
		`UPDATE candidates SET votes = MAX(votes - 1, 0), updated_at = ? WHERE id = ? RETURNING votes`,
		r.now(), candidateID).Scan(&votes)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	return votes, err
}

// ReconcileVoteCount sets the counter to the ledger count in one statement,
// so increments that commit before it are never overwritten. It reports the
// resulting counter and whether a write happened.
func (r *Repository) ReconcileVoteCount(ctx context.Context, candidateID string) (int, bool, error) {
	var votes int
	err := r.db.QueryRowContext(ctx, `
		UPDATE candidates
		SET votes = (SELECT COUNT(*) FROM votes WHERE votes.candidate_id = candidates.id), updated_at = ?
		WHERE id = ? AND votes <> (SELECT COUNT(*) FROM votes WHERE votes.candidate_id = candidates.id)
		RETURNING votes
	`, r.now(), candidateID).Scan(&votes)
	if err == nil {
		return votes, true, nil
	}
	if err != sql.ErrNoRows {
		return 0, false, err
	}

	// Already in sync, or no such candidate
	err = r.db.QueryRowContext(ctx, `SELECT votes FROM candidates WHERE id = ?`, candidateID).Scan(&votes)
	if err == sql.ErrNoRows {
		return 0, false, ErrNotFound
	}
	return votes, false, err
}

// UpdateVotePercentages writes all percentages in a single transaction
func (r *Repository) UpdateVotePercentages(ctx context.Context, percentages map[string]string) error {
	if len(percentages) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `UPDATE candidates SET vote_percentage = ? WHERE id = ?`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for id, pct := range percentages {
		if _, err := stmt.ExecContext(ctx, pct, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// IncrementChoice atomically adds one to a poll choice counter
func (r *Repository) IncrementChoice(ctx context.Context, pollID, choiceID string) (int, error) {
	var votes int
	err := r.db.QueryRowContext(ctx,
		`UPDATE poll_choices SET votes_count = votes_count + 1 WHERE poll_id = ? AND id = ? RETURNING votes_count`,
		pollID, choiceID).Scan(&votes)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	return votes, err
}

// ReconcileChoiceCount is ReconcileVoteCount for one poll choice
func (r *Repository) ReconcileChoiceCount(ctx context.Context, pollID, choiceID string) (int, bool, error) {
	var votes int
	err := r.db.QueryRowContext(ctx, `
		UPDATE poll_choices
		SET votes_count = (SELECT COUNT(*) FROM poll_votes
			WHERE poll_votes.poll_id = poll_choices.poll_id AND poll_votes.choice_id = poll_choices.id)
		WHERE poll_id = ? AND id = ? AND votes_count <> (SELECT COUNT(*) FROM poll_votes
			WHERE poll_votes.poll_id = poll_choices.poll_id AND poll_votes.choice_id = poll_choices.id)
		RETURNING votes_count
	`, pollID, choiceID).Scan(&votes)
	if err == nil {
		return votes, true, nil
	}
	if err != sql.ErrNoRows {
		return 0, false, err
	}

	err = r.db.QueryRowContext(ctx,
		`SELECT votes_count FROM poll_choices WHERE poll_id = ? AND id = ?`, pollID, choiceID).Scan(&votes)
	if err == sql.ErrNoRows {
		return 0, false, ErrNotFound
	}
	return votes, false, err
}

// SetChoiceCount overwrites a poll choice counter
func (r *Repository) SetChoiceCount(ctx context.Context, pollID, choiceID string, votes int) error {
	return r.execByID(ctx, `UPDATE poll_choices SET votes_count = ? WHERE poll_id = ? AND id = ?`, votes, pollID, choiceID)
}

// ==================== Vote Ledger Methods ====================

// RecordVote appends a candidate vote. A (candidate, voter) collision yields ErrDuplicateVote.
func (r *Repository) RecordVote(ctx context.Context, v *models.Vote) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.VoteTimestamp.IsZero() {
		v.VoteTimestamp = r.now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO votes (id, candidate_id, voter_id, voter_email, voter_name, ip_address,
			user_agent, constituency, vote_timestamp, is_verified)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, v.ID, v.CandidateID, v.VoterID, v.VoterEmail, v.VoterName, v.IPAddress,
		v.UserAgent, v.Constituency, v.VoteTimestamp, v.IsVerified)
	if isUniqueViolation(err) {
		return ErrDuplicateVote
	}
	return err
}

// HasVoted reports whether voterID holds a ledger record for the candidate
func (r *Repository) HasVoted(ctx context.Context, candidateID, voterID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM votes WHERE candidate_id = ? AND voter_id = ?)`,
		candidateID, voterID).Scan(&exists)
	return exists, err
}

// RemoveVote deletes the voter's record, reporting whether one existed
func (r *Repository) RemoveVote(ctx context.Context, candidateID, voterID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM votes WHERE candidate_id = ? AND voter_id = ?`, candidateID, voterID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// CountVotes counts ledger records for a candidate
func (r *Repository) CountVotes(ctx context.Context, candidateID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM votes WHERE candidate_id = ?`, candidateID).Scan(&count)
	return count, err
}

// VoteStats splits the ledger count by verification status
func (r *Repository) VoteStats(ctx context.Context, candidateID string) (models.VoteStats, error) {
	var stats models.VoteStats
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN is_verified THEN 1 ELSE 0 END), 0)
		FROM votes WHERE candidate_id = ?
	`, candidateID).Scan(&stats.TotalVotes, &stats.VerifiedVotes)
	if err != nil {
		return models.VoteStats{}, err
	}
	stats.UnverifiedVotes = stats.TotalVotes - stats.VerifiedVotes
	return stats, nil
}

// ListVotes returns one page of a candidate's ledger and the total matching rows
func (r *Repository) ListVotes(ctx context.Context, candidateID string, q models.VoterQuery) ([]models.Vote, int, error) {
	where := ` WHERE candidate_id = ?`
	args := []any{candidateID}
	if q.Verified != nil {
		where += ` AND is_verified = ?`
		args = append(args, *q.Verified)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM votes`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := (q.Page - 1) * q.Limit
	if offset < 0 {
		offset = 0
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, candidate_id, voter_id, voter_email, voter_name, ip_address, user_agent,
			constituency, vote_timestamp, is_verified
		FROM votes`+where+` ORDER BY vote_timestamp DESC LIMIT ? OFFSET ?`,
		append(args, q.Limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var votes []models.Vote
	for rows.Next() {
		var v models.Vote
		if err := rows.Scan(&v.ID, &v.CandidateID, &v.VoterID, &v.VoterEmail, &v.VoterName,
			&v.IPAddress, &v.UserAgent, &v.Constituency, &v.VoteTimestamp, &v.IsVerified); err != nil {
			return nil, 0, err
		}
		votes = append(votes, v)
	}
	return votes, total, rows.Err()
}

// SetVoteVerified toggles the verification flag of one ledger record
func (r *Repository) SetVoteVerified(ctx context.Context, candidateID, voteID string, verified bool) error {
	return r.execByID(ctx, `UPDATE votes SET is_verified = ? WHERE id = ? AND candidate_id = ?`, verified, voteID, candidateID)
}

// ==================== Poll Methods ====================

// CreatePoll inserts a poll and its choices in one transaction
func (r *Repository) CreatePoll(ctx context.Context, p *models.Poll) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt = r.now()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO polls (id, title, description, start_at, end_at, is_active, allow_anonymous, max_votes_per_voter, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.Title, p.Description, nullTime(p.StartAt), nullTime(p.EndAt),
		p.IsActive, p.AllowAnonymous, p.MaxVotesPerVoter, p.CreatedAt); err != nil {
		return err
	}

	for i := range p.Choices {
		c := &p.Choices[i]
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO poll_choices (id, poll_id, position, label, votes_count) VALUES (?, ?, ?, ?, ?)`,
			c.ID, p.ID, i, c.Label, c.VotesCount); err != nil {
			return err
		}
	}
	return tx.Commit()
}

const pollColumns = `id, title, description, start_at, end_at, is_active, allow_anonymous, max_votes_per_voter, created_at`

func scanPoll(row rowScanner) (*models.Poll, error) {
	var p models.Poll
	var startAt, endAt sql.NullTime
	if err := row.Scan(&p.ID, &p.Title, &p.Description, &startAt, &endAt,
		&p.IsActive, &p.AllowAnonymous, &p.MaxVotesPerVoter, &p.CreatedAt); err != nil {
		return nil, err
	}
	if startAt.Valid {
		p.StartAt = &startAt.Time
	}
	if endAt.Valid {
		p.EndAt = &endAt.Time
	}
	return &p, nil
}

func (r *Repository) loadChoices(ctx context.Context, p *models.Poll) error {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, label, votes_count FROM poll_choices WHERE poll_id = ? ORDER BY position`, p.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	p.Choices = p.Choices[:0]
	for rows.Next() {
		var c models.Choice
		if err := rows.Scan(&c.ID, &c.Label, &c.VotesCount); err != nil {
			return err
		}
		p.Choices = append(p.Choices, c)
	}
	return rows.Err()
}

// GetPoll returns a poll with its choices in order
func (r *Repository) GetPoll(ctx context.Context, id string) (*models.Poll, error) {
	p, err := scanPoll(r.db.QueryRowContext(ctx, `SELECT `+pollColumns+` FROM polls WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := r.loadChoices(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ListPolls returns polls newest first
func (r *Repository) ListPolls(ctx context.Context, activeOnly bool) ([]models.Poll, error) {
	query := `SELECT ` + pollColumns + ` FROM polls`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	var polls []models.Poll
	for rows.Next() {
		p, err := scanPoll(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		polls = append(polls, *p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Choices are loaded after the cursor is released; the pool holds one connection.
	for i := range polls {
		if err := r.loadChoices(ctx, &polls[i]); err != nil {
			return nil, err
		}
	}
	return polls, nil
}

// SetPollActive sets the poll admin override
func (r *Repository) SetPollActive(ctx context.Context, id string, active bool) error {
	return r.execByID(ctx, `UPDATE polls SET is_active = ? WHERE id = ?`, active, id)
}

// ==================== Poll Ledger Methods ====================

// RecordPollVote appends a poll vote. Anonymous votes store a NULL voter_id so
// the partial index on ip_address applies.
func (r *Repository) RecordPollVote(ctx context.Context, v *models.PollVote) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.VoteTimestamp.IsZero() {
		v.VoteTimestamp = r.now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO poll_votes (id, poll_id, choice_id, voter_id, ip_address, user_agent, vote_timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, v.ID, v.PollID, v.ChoiceID, nullString(v.VoterID), v.IPAddress, v.UserAgent, v.VoteTimestamp)
	if isUniqueViolation(err) {
		return ErrDuplicateVote
	}
	return err
}

// HasPollVote checks the ledger using the same key the unique indexes use
func (r *Repository) HasPollVote(ctx context.Context, pollID string, voter models.VoterIdentity) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM poll_votes WHERE poll_id = ? AND voter_id = ?)`
	arg := voter.Token()
	if voter.IsAnonymous() {
		query = `SELECT EXISTS(SELECT 1 FROM poll_votes WHERE poll_id = ? AND voter_id IS NULL AND ip_address = ?)`
		arg = voter.Origin()
	}

	var exists bool
	err := r.db.QueryRowContext(ctx, query, pollID, arg).Scan(&exists)
	return exists, err
}

// CountPollVotes counts ledger records per choice
func (r *Repository) CountPollVotes(ctx context.Context, pollID string) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT choice_id, COUNT(*) FROM poll_votes WHERE poll_id = ? GROUP BY choice_id`, pollID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var choiceID string
		var n int
		if err := rows.Scan(&choiceID, &n); err != nil {
			return nil, err
		}
		counts[choiceID] = n
	}
	return counts, rows.Err()
}
