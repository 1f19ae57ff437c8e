package repository

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/okian/xpoints/internal/domain/leaderboard"
	"github.com/okian/xpoints/internal/domain/model"
)

// Shot document keys inside gameData entries.
const (
	fieldX          = "x"
	fieldY          = "y"
	fieldOutcome    = "Outcome"
	fieldAction     = "action"
	fieldType       = "type"
	fieldPlayerID   = "playerId"
	fieldPlayerName = "playerName"
	fieldTeam       = "team"
	fieldPosition   = "position"
	fieldPressure   = "pressure"
	fieldFoot       = "foot"
	fieldMinute     = "minute"
	fieldScoreDiff  = "scoreDiff"
)

type gameDocument struct {
	ID       string   `bson:"_id"`
	GameID   string   `bson:"gameId"`
	UserID   string   `bson:"userId"`
	Dataset  string   `bson:"datasetName"`
	GameData []bson.M `bson:"gameData"`
}

type leaderboardDocument struct {
	ID        string              `bson:"_id"`
	UserID    string              `bson:"userId"`
	Dataset   string              `bson:"datasetName"`
	Entries   []leaderboard.Entry `bson:"entries"`
	UpdatedAt time.Time           `bson:"updatedAt"`
}

// MongoStore keeps one document per game in a games collection and the last
// leaderboard per dataset in a leaderboards collection.
type MongoStore struct {
	client  *mongo.Client
	games   *mongo.Collection
	boards  *mongo.Collection
	timeout time.Duration
}

// NewMongoStore connects to uri and prepares the collections.
func NewMongoStore(ctx context.Context, uri string, opts ...MongoOption) (*MongoStore, error) {
	cfg := defaultMongoConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(err, "cannot connect to mongo")
	}
	db := client.Database(cfg.database)
	s := &MongoStore{
		client:  client,
		games:   db.Collection(cfg.games),
		boards:  db.Collection(cfg.leaderboards),
		timeout: cfg.timeout,
	}
	ictx, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err = s.games.Indexes().CreateOne(ictx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "datasetName", Value: 1}, {Key: "gameId", Value: 1}},
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, errors.Wrap(err, "cannot create games index")
	}
	return s, nil
}

func (s *MongoStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// gameKey is the document id of a game. Game ids are only unique within a
// dataset.
func gameKey(userID, dataset, gameID string) string {
	return docKey(userID, dataset) + "/" + gameID
}

func (s *MongoStore) Shots(ctx context.Context, userID, dataset string) ([]model.Shot, error) {
	defer observe("shots", time.Now())
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	cur, err := s.games.Find(ctx,
		bson.M{"userId": userID, "datasetName": dataset},
		options.Find().SetSort(bson.D{{Key: "gameId", Value: 1}}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "cannot query games")
	}
	var docs []gameDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "cannot decode games")
	}
	var out []model.Shot
	for _, d := range docs {
		for i, raw := range d.GameData {
			out = append(out, decodeShot(d.GameID, i, raw))
		}
	}
	sortShots(out)
	return out, nil
}

func (s *MongoStore) CommitGame(ctx context.Context, userID, dataset, gameID string, anns []model.Annotation) error {
	defer observe("commit_game", time.Now())
	set := bson.M{}
	last := -1
	for _, a := range anns {
		if a.GameID != gameID || a.Index < 0 {
			return fmt.Errorf("%s[%d]: %w", gameID, a.Index, ErrShotIndex)
		}
		last = max(last, a.Index)
		for k, v := range a.Fields() {
			set[fmt.Sprintf("gameData.%d.%s", a.Index, k)] = v
		}
	}
	if len(set) == 0 {
		return nil
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	id := gameKey(userID, dataset, gameID)
	// the highest index must already exist so $set never pads the array
	filter := bson.M{"_id": id, fmt.Sprintf("gameData.%d", last): bson.M{"$exists": true}}
	res, err := s.games.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return errors.Wrapf(err, "cannot update game %s", gameID)
	}
	if res.MatchedCount > 0 {
		return nil
	}
	n, err := s.games.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return errors.Wrapf(err, "cannot check game %s", gameID)
	}
	if n > 0 {
		return fmt.Errorf("%s[%d]: %w", gameID, last, ErrShotIndex)
	}
	return errors.Wrap(ErrGameNotFound, gameID)
}

func (s *MongoStore) PutGame(ctx context.Context, g Game) error {
	defer observe("put_game", time.Now())
	if g.ID == "" || g.UserID == "" || g.Dataset == "" {
		return ErrInvalidGame
	}
	doc := gameDocument{
		ID:       gameKey(g.UserID, g.Dataset, g.ID),
		GameID:   g.ID,
		UserID:   g.UserID,
		Dataset:  g.Dataset,
		GameData: make([]bson.M, len(g.Shots)),
	}
	for i, sh := range g.Shots {
		doc.GameData[i] = encodeShot(sh)
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err := s.games.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return errors.Wrapf(err, "cannot store game %s", g.ID)
}

func (s *MongoStore) PutLeaderboard(ctx context.Context, userID, dataset string, t *leaderboard.Table) error {
	if t == nil {
		return nil
	}
	doc := leaderboardDocument{
		ID:        docKey(userID, dataset),
		UserID:    userID,
		Dataset:   dataset,
		Entries:   t.All,
		UpdatedAt: time.Now().UTC(),
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err := s.boards.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return errors.Wrap(err, "cannot store leaderboard")
}

func (s *MongoStore) Leaderboard(ctx context.Context, userID, dataset string) (*leaderboard.Table, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	var doc leaderboardDocument
	err := s.boards.FindOne(ctx, bson.M{"_id": docKey(userID, dataset)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "cannot load leaderboard")
	}
	return &leaderboard.Table{All: doc.Entries}, nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return errors.Wrap(s.client.Ping(ctx, nil), "mongo ping")
}

// Close disconnects the client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

var _ Store = (*MongoStore)(nil)

// decodeShot reads a gameData entry. Coordinates recorded as text are
// parsed; anything unparseable leaves CoordsOK false.
func decodeShot(gameID string, index int, m bson.M) model.Shot {
	s := model.Shot{
		GameID:      gameID,
		Index:       index,
		OutcomeText: text(m[fieldOutcome]),
		ShotType:    text(m[fieldType]),
		PlayerID:    text(m[fieldPlayerID]),
		PlayerName:  text(m[fieldPlayerName]),
		Team:        text(m[fieldTeam]),
		Position:    text(m[fieldPosition]),
		Pressure:    text(m[fieldPressure]),
		Foot:        text(m[fieldFoot]),
	}
	if s.OutcomeText == "" {
		s.OutcomeText = text(m[fieldAction])
	}
	if s.PlayerID == "" {
		s.PlayerID = s.PlayerName
	}
	x, okX := number(m[fieldX])
	y, okY := number(m[fieldY])
	s.X, s.Y, s.CoordsOK = x, y, okX && okY
	if minute, ok := number(m[fieldMinute]); ok {
		s.Minute = &minute
	}
	s.ScoreDiff, _ = number(m[fieldScoreDiff])
	return s
}

func encodeShot(s model.Shot) bson.M {
	m := bson.M{
		fieldAction:     s.OutcomeText,
		fieldPlayerID:   s.PlayerID,
		fieldPlayerName: s.PlayerName,
		fieldTeam:       s.Team,
		fieldPosition:   s.Position,
		fieldPressure:   s.Pressure,
		fieldFoot:       s.Foot,
		fieldScoreDiff:  s.ScoreDiff,
	}
	if s.ShotType != "" {
		m[fieldType] = s.ShotType
	}
	if s.CoordsOK {
		m[fieldX], m[fieldY] = s.X, s.Y
	} else {
		m[fieldX], m[fieldY] = "", ""
	}
	if s.Minute != nil {
		m[fieldMinute] = *s.Minute
	}
	return m
}

func text(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

func number(v any) (float64, bool) {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case float32:
		f = float64(t)
	case int32:
		f = float64(t)
	case int64:
		f = float64(t)
	case int:
		f = float64(t)
	case string:
		p, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		f = p
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
