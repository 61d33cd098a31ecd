package repository

import (
	"context"
	stderrors "errors"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/abrezinsky/electionvote/internal/models"
)

// Collection names
const (
	CollCandidates = "candidates"
	CollVotes      = "votes"
	CollPolls      = "polls"
	CollPollVotes  = "pollvotes"
	CollLikes      = "candidatelikes"
)

// MongoRepository is the MongoDB-backed store. Uniqueness is enforced by the
// compound unique indexes created in EnsureIndexes.
type MongoRepository struct {
	client     *mongo.Client
	candidates *mongo.Collection
	votes      *mongo.Collection
	polls      *mongo.Collection
	pollVotes  *mongo.Collection
	likes      *mongo.Collection
	now        func() time.Time
}

// pollVoteDoc adds the anonymous marker the partial ip index filters on
type pollVoteDoc struct {
	models.PollVote `bson:",inline"`
	Anonymous       bool `bson:"anonymous"`
}

// NewMongo connects, pings and ensures indexes
func NewMongo(ctx context.Context, uri, database string) (*MongoRepository, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	repo := NewMongoWithDatabase(client.Database(database))
	repo.client = client
	if err := repo.EnsureIndexes(connectCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return repo, nil
}

// NewMongoWithDatabase wraps an existing database handle without creating indexes
func NewMongoWithDatabase(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		candidates: db.Collection(CollCandidates),
		votes:      db.Collection(CollVotes),
		polls:      db.Collection(CollPolls),
		pollVotes:  db.Collection(CollPollVotes),
		likes:      db.Collection(CollLikes),
		now:        time.Now,
	}
}

// EnsureIndexes creates the unique indexes that make the ledger authoritative
func (r *MongoRepository) EnsureIndexes(ctx context.Context) error {
	specs := []struct {
		coll  *mongo.Collection
		index mongo.IndexModel
	}{
		{r.votes, mongo.IndexModel{
			Keys:    bson.D{{Key: "candidateId", Value: 1}, {Key: "voterId", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uq_candidate_voter"),
		}},
		{r.votes, mongo.IndexModel{
			Keys: bson.D{{Key: "candidateId", Value: 1}, {Key: "voteTimestamp", Value: -1}},
		}},
		{r.pollVotes, mongo.IndexModel{
			Keys: bson.D{{Key: "pollId", Value: 1}, {Key: "voterId", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uq_poll_voter").
				SetPartialFilterExpression(bson.D{{Key: "anonymous", Value: false}}),
		}},
		{r.pollVotes, mongo.IndexModel{
			Keys: bson.D{{Key: "pollId", Value: 1}, {Key: "ipAddress", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uq_poll_anon_ip").
				SetPartialFilterExpression(bson.D{{Key: "anonymous", Value: true}}),
		}},
		{r.likes, mongo.IndexModel{
			Keys:    bson.D{{Key: "candidateId", Value: 1}, {Key: "clientId", Value: 1}},
			Options: options.Index().SetUnique(true),
		}},
		{r.candidates, mongo.IndexModel{
			Keys: bson.D{{Key: "externalId", Value: 1}},
			Options: options.Index().SetUnique(true).
				SetPartialFilterExpression(bson.D{{Key: "externalId", Value: bson.D{{Key: "$exists", Value: true}}}}),
		}},
	}

	for _, s := range specs {
		if _, err := s.coll.Indexes().CreateOne(ctx, s.index); err != nil {
			return err
		}
	}
	return nil
}

// Ping checks the server
func (r *MongoRepository) Ping(ctx context.Context) error {
	if r.client == nil {
		return nil
	}
	return r.client.Ping(ctx, nil)
}

// Close disconnects the client
func (r *MongoRepository) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Disconnect(context.Background())
}

func notFound(err error) error {
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}

func afterUpdate() *options.FindOneAndUpdateOptions {
	return options.FindOneAndUpdate().SetReturnDocument(options.After)
}

// floorDecrement is an update pipeline computing max(field - 1, 0)
func floorDecrement(field string) mongo.Pipeline {
	return mongo.Pipeline{{{Key: "$set", Value: bson.D{{Key: field, Value: bson.D{{Key: "$max", Value: bson.A{
		bson.D{{Key: "$subtract", Value: bson.A{"$" + field, 1}}}, 0,
	}}}}}}}}
}

// ==================== Candidate Methods ====================

func (r *MongoRepository) CreateCandidate(ctx context.Context, c *models.Candidate) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.VotePercentage == "" {
		c.VotePercentage = "0.00"
	}
	now := r.now()
	c.CreatedAt, c.UpdatedAt = now, now
	_, err := r.candidates.InsertOne(ctx, c)
	return err
}

func (r *MongoRepository) GetCandidate(ctx context.Context, id string) (*models.Candidate, error) {
	var c models.Candidate
	if err := r.candidates.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func containsFold(s string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}
}

func (r *MongoRepository) ListCandidates(ctx context.Context, f models.CandidateFilter) ([]models.Candidate, error) {
	filter := bson.M{}
	if f.ActiveOnly || f.VotingOnly {
		filter["isActive"] = true
	}
	if f.VotingOnly {
		filter["votingEnabled"] = true
	}
	if f.Constituency != "" {
		filter["constituency"] = containsFold(f.Constituency)
	}
	if f.PartyName != "" {
		filter["partyName"] = containsFold(f.PartyName)
	}
	if f.CandidacyLevel != "" {
		filter["candidacyLevel"] = f.CandidacyLevel
	}

	opts := options.Find().SetSort(bson.D{{Key: "votes", Value: -1}, {Key: "fullName", Value: 1}})
	cur, err := r.candidates.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var candidates []models.Candidate
	if err := cur.All(ctx, &candidates); err != nil {
		return nil, err
	}
	return candidates, nil
}

func (r *MongoRepository) UpsertCandidateByExternalID(ctx context.Context, c *models.Candidate) (bool, error) {
	var existing models.Candidate
	err := r.candidates.FindOne(ctx, bson.M{"externalId": c.ExternalID}).Decode(&existing)
	if stderrors.Is(err, mongo.ErrNoDocuments) {
		return true, r.CreateCandidate(ctx, c)
	}
	if err != nil {
		return false, err
	}

	c.ID = existing.ID
	c.UpdatedAt = r.now()
	_, err = r.candidates.UpdateByID(ctx, existing.ID, bson.M{"$set": bson.M{
		"fullName":     c.FullName,
		"profilePhoto": c.ProfilePhoto,
		"gender":       c.Gender,
		"district":     c.District,
		"partyName":    c.PartyName,
		"constituency": c.Constituency,
		"updatedAt":    c.UpdatedAt,
	}})
	return false, err
}

func (r *MongoRepository) setCandidateField(ctx context.Context, id, field string, value any) error {
	res, err := r.candidates.UpdateByID(ctx, id, bson.M{"$set": bson.M{field: value, "updatedAt": r.now()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoRepository) SetVotingEnabled(ctx context.Context, id string, enabled bool) error {
	return r.setCandidateField(ctx, id, "votingEnabled", enabled)
}

func (r *MongoRepository) SetCandidateActive(ctx context.Context, id string, active bool) error {
	return r.setCandidateField(ctx, id, "isActive", active)
}

func (r *MongoRepository) IncrementShares(ctx context.Context, id string) (int, error) {
	var c models.Candidate
	err := r.candidates.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"shares": 1}}, afterUpdate()).Decode(&c)
	if err != nil {
		return 0, notFound(err)
	}
	return c.Shares, nil
}

// ToggleLike removes the like if present, otherwise records it. A concurrent
// insert losing the unique race counts as already liked.
func (r *MongoRepository) ToggleLike(ctx context.Context, candidateID, clientID string) (int, bool, error) {
	key := bson.M{"candidateId": candidateID, "clientId": clientID}
	del, err := r.likes.DeleteOne(ctx, key)
	if err != nil {
		return 0, false, err
	}

	var c models.Candidate
	if del.DeletedCount > 0 {
		err = r.candidates.FindOneAndUpdate(ctx, bson.M{"_id": candidateID}, floorDecrement("likes"), afterUpdate()).Decode(&c)
		return c.Likes, false, notFound(err)
	}

	_, err = r.likes.InsertOne(ctx, bson.M{"candidateId": candidateID, "clientId": clientID, "createdAt": r.now()})
	if mongo.IsDuplicateKeyError(err) {
		got, gerr := r.GetCandidate(ctx, candidateID)
		if gerr != nil {
			return 0, false, gerr
		}
		return got.Likes, true, nil
	}
	if err != nil {
		return 0, false, err
	}
	err = r.candidates.FindOneAndUpdate(ctx, bson.M{"_id": candidateID}, bson.M{"$inc": bson.M{"likes": 1}}, afterUpdate()).Decode(&c)
	return c.Likes, true, notFound(err)
}

// ==================== Tally Methods ====================

func (r *MongoRepository) IncrementVotes(ctx context.Context, candidateID string) (int, error) {
	var c models.Candidate
	err := r.candidates.FindOneAndUpdate(ctx, bson.M{"_id": candidateID},
		bson.M{"$inc": bson.M{"votes": 1}, "$set": bson.M{"updatedAt": r.now()}}, afterUpdate()).Decode(&c)
	if err != nil {
		return 0, notFound(err)
	}
	return c.Votes, nil
}

func (r *MongoRepository) DecrementVotes(ctx context.Context, candidateID string) (int, error) {
	var c models.Candidate
	err := r.candidates.FindOneAndUpdate(ctx, bson.M{"_id": candidateID}, floorDecrement("votes"), afterUpdate()).Decode(&c)
	if err != nil {
		return 0, notFound(err)
	}
	return c.Votes, nil
}

// reconcileAttempts bounds the compare-and-set retries of a reconciliation
const reconcileAttempts = 5

// ReconcileVoteCount writes the ledger count only if the counter still holds
// the value read before counting. A concurrent increment makes the guarded
// update miss, and the read, count and write are retried.
func (r *MongoRepository) ReconcileVoteCount(ctx context.Context, candidateID string) (int, bool, error) {
	for attempt := 0; attempt < reconcileAttempts; attempt++ {
		var c models.Candidate
		if err := r.candidates.FindOne(ctx, bson.M{"_id": candidateID}).Decode(&c); err != nil {
			return 0, false, notFound(err)
		}
		n, err := r.votes.CountDocuments(ctx, bson.M{"candidateId": candidateID})
		if err != nil {
			return 0, false, err
		}
		if int(n) == c.Votes {
			return c.Votes, false, nil
		}

		res, err := r.candidates.UpdateOne(ctx,
			bson.M{"_id": candidateID, "votes": c.Votes},
			bson.M{"$set": bson.M{"votes": int(n), "updatedAt": r.now()}})
		if err != nil {
			return 0, false, err
		}
		if res.MatchedCount == 1 {
			return int(n), true, nil
		}
	}
	return 0, false, ErrCounterContended
}

// UpdateVotePercentages sends one unordered bulk write
func (r *MongoRepository) UpdateVotePercentages(ctx context.Context, percentages map[string]string) error {
	if len(percentages) == 0 {
		return nil
	}
	writes := make([]mongo.WriteModel, 0, len(percentages))
	for id, pct := range percentages {
		writes = append(writes, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": id}).
			SetUpdate(bson.M{"$set": bson.M{"votePercentage": pct}}))
	}
	_, err := r.candidates.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
	return err
}

func (r *MongoRepository) IncrementChoice(ctx context.Context, pollID, choiceID string) (int, error) {
	var p models.Poll
	err := r.polls.FindOneAndUpdate(ctx,
		bson.M{"_id": pollID, "choices.id": choiceID},
		bson.M{"$inc": bson.M{"choices.$.votesCount": 1}}, afterUpdate()).Decode(&p)
	if err != nil {
		return 0, notFound(err)
	}
	c, ok := p.Choice(choiceID)
	if !ok {
		return 0, ErrNotFound
	}
	return c.VotesCount, nil
}

// ReconcileChoiceCount is ReconcileVoteCount for one poll choice, guarded on
// the choice counter inside the poll document
func (r *MongoRepository) ReconcileChoiceCount(ctx context.Context, pollID, choiceID string) (int, bool, error) {
	for attempt := 0; attempt < reconcileAttempts; attempt++ {
		var p models.Poll
		if err := r.polls.FindOne(ctx, bson.M{"_id": pollID}).Decode(&p); err != nil {
			return 0, false, notFound(err)
		}
		ch, ok := p.Choice(choiceID)
		if !ok {
			return 0, false, ErrNotFound
		}
		n, err := r.pollVotes.CountDocuments(ctx, bson.M{"pollId": pollID, "choiceId": choiceID})
		if err != nil {
			return 0, false, err
		}
		if int(n) == ch.VotesCount {
			return ch.VotesCount, false, nil
		}

		res, err := r.polls.UpdateOne(ctx,
			bson.M{"_id": pollID, "choices": bson.M{"$elemMatch": bson.M{"id": choiceID, "votesCount": ch.VotesCount}}},
			bson.M{"$set": bson.M{"choices.$.votesCount": int(n)}})
		if err != nil {
			return 0, false, err
		}
		if res.MatchedCount == 1 {
			return int(n), true, nil
		}
	}
	return 0, false, ErrCounterContended
}

func (r *MongoRepository) SetChoiceCount(ctx context.Context, pollID, choiceID string, votes int) error {
	res, err := r.polls.UpdateOne(ctx,
		bson.M{"_id": pollID, "choices.id": choiceID},
		bson.M{"$set": bson.M{"choices.$.votesCount": votes}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ==================== Vote Ledger Methods ====================

func (r *MongoRepository) RecordVote(ctx context.Context, v *models.Vote) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.VoteTimestamp.IsZero() {
		v.VoteTimestamp = r.now()
	}
	_, err := r.votes.InsertOne(ctx, v)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateVote
	}
	return err
}

func (r *MongoRepository) exists(ctx context.Context, coll *mongo.Collection, filter bson.M) (bool, error) {
	n, err := coll.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	return n > 0, err
}

func (r *MongoRepository) HasVoted(ctx context.Context, candidateID, voterID string) (bool, error) {
	return r.exists(ctx, r.votes, bson.M{"candidateId": candidateID, "voterId": voterID})
}

func (r *MongoRepository) RemoveVote(ctx context.Context, candidateID, voterID string) (bool, error) {
	res, err := r.votes.DeleteOne(ctx, bson.M{"candidateId": candidateID, "voterId": voterID})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func (r *MongoRepository) CountVotes(ctx context.Context, candidateID string) (int, error) {
	n, err := r.votes.CountDocuments(ctx, bson.M{"candidateId": candidateID})
	return int(n), err
}

func (r *MongoRepository) VoteStats(ctx context.Context, candidateID string) (models.VoteStats, error) {
	total, err := r.votes.CountDocuments(ctx, bson.M{"candidateId": candidateID})
	if err != nil {
		return models.VoteStats{}, err
	}
	verified, err := r.votes.CountDocuments(ctx, bson.M{"candidateId": candidateID, "isVerified": true})
	if err != nil {
		return models.VoteStats{}, err
	}
	return models.VoteStats{
		TotalVotes:      int(total),
		VerifiedVotes:   int(verified),
		UnverifiedVotes: int(total - verified),
	}, nil
}

func (r *MongoRepository) ListVotes(ctx context.Context, candidateID string, q models.VoterQuery) ([]models.Vote, int, error) {
	filter := bson.M{"candidateId": candidateID}
	if q.Verified != nil {
		filter["isVerified"] = *q.Verified
	}

	total, err := r.votes.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	skip := int64((q.Page - 1) * q.Limit)
	if skip < 0 {
		skip = 0
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "voteTimestamp", Value: -1}}).
		SetSkip(skip).
		SetLimit(int64(q.Limit))
	cur, err := r.votes.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	var votes []models.Vote
	if err := cur.All(ctx, &votes); err != nil {
		return nil, 0, err
	}
	return votes, int(total), nil
}

func (r *MongoRepository) SetVoteVerified(ctx context.Context, candidateID, voteID string, verified bool) error {
	res, err := r.votes.UpdateOne(ctx,
		bson.M{"_id": voteID, "candidateId": candidateID},
		bson.M{"$set": bson.M{"isVerified": verified}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ==================== Poll Methods ====================

func (r *MongoRepository) CreatePoll(ctx context.Context, p *models.Poll) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	for i := range p.Choices {
		if p.Choices[i].ID == "" {
			p.Choices[i].ID = uuid.NewString()
		}
	}
	p.CreatedAt = r.now()
	_, err := r.polls.InsertOne(ctx, p)
	return err
}

func (r *MongoRepository) GetPoll(ctx context.Context, id string) (*models.Poll, error) {
	var p models.Poll
	if err := r.polls.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

func (r *MongoRepository) ListPolls(ctx context.Context, activeOnly bool) ([]models.Poll, error) {
	filter := bson.M{}
	if activeOnly {
		filter["isActive"] = true
	}
	cur, err := r.polls.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	var polls []models.Poll
	if err := cur.All(ctx, &polls); err != nil {
		return nil, err
	}
	return polls, nil
}

func (r *MongoRepository) SetPollActive(ctx context.Context, id string, active bool) error {
	res, err := r.polls.UpdateByID(ctx, id, bson.M{"$set": bson.M{"isActive": active}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ==================== Poll Ledger Methods ====================

func (r *MongoRepository) RecordPollVote(ctx context.Context, v *models.PollVote) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.VoteTimestamp.IsZero() {
		v.VoteTimestamp = r.now()
	}
	_, err := r.pollVotes.InsertOne(ctx, pollVoteDoc{PollVote: *v, Anonymous: v.VoterID == ""})
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateVote
	}
	return err
}

func (r *MongoRepository) HasPollVote(ctx context.Context, pollID string, voter models.VoterIdentity) (bool, error) {
	filter := bson.M{"pollId": pollID, "anonymous": false, "voterId": voter.Token()}
	if voter.IsAnonymous() {
		filter = bson.M{"pollId": pollID, "anonymous": true, "ipAddress": voter.Origin()}
	}
	return r.exists(ctx, r.pollVotes, filter)
}

func (r *MongoRepository) CountPollVotes(ctx context.Context, pollID string) (map[string]int, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "pollId", Value: pollID}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$choiceId"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
	cur, err := r.pollVotes.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		ChoiceID string `bson:"_id"`
		Count    int    `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.ChoiceID] = row.Count
	}
	return counts, nil
}
