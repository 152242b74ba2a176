package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	roomsCollection = "draft_rooms"
	picksCollection = "draft_picks"
)

// MongoRepository stores rooms and picks as documents.
type MongoRepository struct {
	client *mongo.Client
	rooms  *mongo.Collection
	picks  *mongo.Collection
}

// NewMongoRepository connects, pings and ensures the unique pick index.
func NewMongoRepository(ctx context.Context, uri, database string) (*MongoRepository, error) {
	if uri == "" {
		return nil, errors.New("mongo uri is required")
	}
	if database == "" {
		database = "puckdraft"
	}

	clientOptions := options.Client().
		ApplyURI(uri).
		SetTimeout(30 * time.Second).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	db := client.Database(database)
	repo := &MongoRepository{
		client: client,
		rooms:  db.Collection(roomsCollection),
		picks:  db.Collection(picksCollection),
	}

	_, err = repo.picks.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "room_id", Value: 1}, {Key: "pick_index", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("create pick index: %w", err)
	}
	_, err = repo.rooms.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "room_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("create room index: %w", err)
	}

	log.Info().Str("database", database).Msg("mongo draft repository ready")
	return repo, nil
}

func (m *MongoRepository) SaveRoom(ctx context.Context, room RoomRecord) error {
	_, err := m.rooms.ReplaceOne(ctx,
		bson.M{"room_id": room.RoomID},
		room,
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save room %s: %w", room.RoomID, err)
	}
	return nil
}

func (m *MongoRepository) SavePick(ctx context.Context, pick PickRecord) error {
	_, err := m.picks.ReplaceOne(ctx,
		bson.M{"room_id": pick.RoomID, "pick_index": pick.PickIndex},
		pick,
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save pick %s:%d: %w", pick.RoomID, pick.PickIndex, err)
	}
	return nil
}

func (m *MongoRepository) GetRoom(ctx context.Context, roomID string) (RoomRecord, error) {
	var room RoomRecord
	err := m.rooms.FindOne(ctx, bson.M{"room_id": roomID}).Decode(&room)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return RoomRecord{}, fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
	}
	if err != nil {
		return RoomRecord{}, fmt.Errorf("get room %s: %w", roomID, err)
	}
	return room, nil
}

func (m *MongoRepository) ListRooms(ctx context.Context) ([]RoomRecord, error) {
	cur, err := m.rooms.Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "room_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	var out []RoomRecord
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode rooms: %w", err)
	}
	return out, nil
}

func (m *MongoRepository) ListPicks(ctx context.Context, roomID string) ([]PickRecord, error) {
	cur, err := m.picks.Find(ctx, bson.M{"room_id": roomID},
		options.Find().SetSort(bson.D{{Key: "pick_index", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("list picks: %w", err)
	}
	out := make([]PickRecord, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode picks: %w", err)
	}
	return out, nil
}

func (m *MongoRepository) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

func (m *MongoRepository) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
