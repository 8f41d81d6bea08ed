package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/upb/eloboost/models"
	"github.com/upb/eloboost/repositories"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// userDocument is the stored shape of models.User
type userDocument struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Username     string             `bson:"username"`
	Email        string             `bson:"email"`
	Avatar       string             `bson:"avatar"`
	IsOwner      bool               `bson:"is_owner"`
	IsBooster    bool               `bson:"is_booster"`
	AuthProvider string             `bson:"auth_provider"`
	DiscordID    string             `bson:"discord_id,omitempty"`
	DiscordName  string             `bson:"discord_name,omitempty"`
	GoogleID     string             `bson:"google_id,omitempty"`
	GoogleName   string             `bson:"google_name,omitempty"`
	CreatedAt    time.Time          `bson:"created_at"`
	LastLogin    time.Time          `bson:"last_login"`
	IPAddress    string             `bson:"ip_address,omitempty"`
	IPInfo       *models.IPInfo     `bson:"ip_info,omitempty"`
}

func (d *userDocument) toModel() *models.User {
	return &models.User{
		ID:           d.ID.Hex(),
		Username:     d.Username,
		Email:        d.Email,
		Avatar:       d.Avatar,
		IsOwner:      d.IsOwner,
		IsBooster:    d.IsBooster,
		AuthProvider: models.AuthProvider(d.AuthProvider),
		DiscordID:    d.DiscordID,
		DiscordName:  d.DiscordName,
		GoogleID:     d.GoogleID,
		GoogleName:   d.GoogleName,
		CreatedAt:    d.CreatedAt,
		LastLogin:    d.LastLogin,
		IPAddress:    d.IPAddress,
		IPInfo:       d.IPInfo,
	}
}

// providerFields maps a provider to its id and display name fields
var providerFields = map[models.AuthProvider][2]string{
	models.ProviderDiscord: {"discord_id", "discord_name"},
	models.ProviderGoogle:  {"google_id", "google_name"},
}

// UserRepository implements repositories.UserRepository on a collection
type UserRepository struct {
	coll   *mongo.Collection
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(coll *mongo.Collection, logger *zap.Logger) repositories.UserRepository {
	return &UserRepository{
		coll:   coll,
		logger: logger,
	}
}

// loginUpdate builds the upsert document. Fields a login never changes go
// under $setOnInsert so they are written once.
func loginUpdate(rec models.LoginRecord, nameField string) bson.D {
	set := bson.D{
		{Key: nameField, Value: rec.DisplayName},
		{Key: "last_login", Value: rec.At},
		{Key: "auth_provider", Value: string(rec.Provider)},
		{Key: "ip_address", Value: rec.IPAddress},
		{Key: "ip_info", Value: rec.IPInfo},
	}
	onInsert := bson.D{
		{Key: "username", Value: rec.DisplayName},
		{Key: "email", Value: rec.Email},
		{Key: "is_owner", Value: false},
		{Key: "is_booster", Value: false},
		{Key: "created_at", Value: rec.At},
	}
	if rec.Avatar != "" {
		set = append(set, bson.E{Key: "avatar", Value: rec.Avatar})
	} else {
		onInsert = append(onInsert, bson.E{Key: "avatar", Value: ""})
	}

	return bson.D{
		{Key: "$set", Value: set},
		{Key: "$setOnInsert", Value: onInsert},
	}
}

// UpsertLogin creates or updates the user for a provider login
func (r *UserRepository) UpsertLogin(ctx context.Context, rec models.LoginRecord) (*models.User, bool, error) {
	fields, ok := providerFields[rec.Provider]
	if !ok {
		return nil, false, fmt.Errorf("unsupported auth provider: %q", rec.Provider)
	}

	filter := bson.D{{Key: fields[0], Value: rec.ProviderID}}
	update := loginUpdate(rec, fields[1])
	opts := options.Update().SetUpsert(true)

	res, err := r.coll.UpdateOne(ctx, filter, update, opts)
	if mongo.IsDuplicateKeyError(err) {
		// A concurrent first login won the insert; this one becomes an update.
		res, err = r.coll.UpdateOne(ctx, filter, update, opts)
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to upsert user: %w", err)
	}

	var doc userDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, false, fmt.Errorf("failed to load user after upsert: %w", err)
	}

	created := res.UpsertedCount > 0
	r.logger.Debug("user login stored",
		zap.String("id", doc.ID.Hex()),
		zap.String("provider", string(rec.Provider)),
		zap.Bool("created", created))
	return doc.toModel(), created, nil
}

// GetByID retrieves a user by its ObjectID hex
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, repositories.ErrNotFound
	}

	var doc userDocument
	err = r.coll.FindOne(ctx, bson.D{{Key: "_id", Value: oid}}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return doc.toModel(), nil
}

// List retrieves users ordered by most recent login
func (r *UserRepository) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "last_login", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(int64(offset))

	cur, err := r.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer cur.Close(ctx)

	var docs []userDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}

	users := make([]*models.User, 0, len(docs))
	for i := range docs {
		users = append(users, docs[i].toModel())
	}
	return users, nil
}

// Ping checks connectivity with the deployment
func (r *UserRepository) Ping(ctx context.Context) error {
	if err := r.coll.Database().Client().Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("mongodb ping failed: %w", err)
	}
	return nil
}
