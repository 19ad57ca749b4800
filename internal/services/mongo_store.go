package services

import (
	"context"
	"crypto/tls"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/prolynk/backend/internal/models"
)

// MongoStore keeps profiles (keyed by username), users (keyed by subject)
// and links in one database. Profile saves run in a transaction, so the
// deployment must be a replica set or Atlas cluster.
type MongoStore struct {
	client   *mongo.Client
	db       *mongo.Database
	profiles *mongo.Collection
	users    *mongo.Collection
	links    *mongo.Collection
	flags    *mongo.Collection
}

var _ Store = (*MongoStore)(nil)

func NewMongoStore(ctx context.Context, mongoURI, dbName string) (*MongoStore, error) {
	opts := options.Client().ApplyURI(mongoURI)
	if strings.HasPrefix(mongoURI, "mongodb+srv://") {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	db := client.Database(dbName)
	s := &MongoStore{
		client:   client,
		db:       db,
		profiles: db.Collection("profiles"),
		users:    db.Collection("users"),
		links:    db.Collection("links"),
		flags:    db.Collection("user_flags"),
	}

	// Best-effort indexes.
	_, _ = s.profiles.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}},
	})
	_, _ = s.links.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "link_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	_, _ = s.flags.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})

	return s, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) GetProfile(ctx context.Context, username string) (*models.Profile, error) {
	var p models.Profile
	err := s.profiles.FindOne(ctx, bson.M{"_id": username}).Decode(&p)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *MongoStore) SaveProfile(ctx context.Context, p *models.Profile, expectedVersion int64, acctSync models.AccountSync) error {
	session, err := s.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		if expectedVersion == 0 {
			if _, err := s.profiles.InsertOne(sc, p); err != nil {
				if mongo.IsDuplicateKeyError(err) {
					return nil, ErrVersionConflict
				}
				return nil, err
			}
		} else {
			filter := bson.M{"_id": p.Username, "user_id": p.UserID, "version": expectedVersion}
			res, err := s.profiles.ReplaceOne(sc, filter, p)
			if err != nil {
				return nil, err
			}
			if res.MatchedCount == 0 {
				return nil, ErrVersionConflict
			}
		}

		_, err := s.users.UpdateOne(sc, bson.M{"_id": acctSync.UserID}, accountSyncUpdate(acctSync), options.Update().SetUpsert(true))
		return nil, err
	})
	return err
}

// accountSyncUpdate mirrors models.AccountSync.Apply as an upsert document.
func accountSyncUpdate(acctSync models.AccountSync) bson.M {
	set := bson.M{
		"username":         acctSync.Username,
		"profile_complete": true,
		"updated_at":       acctSync.At,
	}
	if acctSync.FullName != "" {
		set["full_name"] = acctSync.FullName
	}
	if acctSync.DateOfBirth != "" {
		set["date_of_birth"] = acctSync.DateOfBirth
	}
	return bson.M{
		"$set": set,
		"$setOnInsert": bson.M{
			"email":      acctSync.Email,
			"created_at": acctSync.At,
		},
	}
}

func (s *MongoStore) GetAccount(ctx context.Context, userID string) (*models.UserAccount, error) {
	var acct models.UserAccount
	err := s.users.FindOne(ctx, bson.M{"_id": userID}).Decode(&acct)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

func (s *MongoStore) CreateAccount(ctx context.Context, acct *models.UserAccount) error {
	_, err := s.users.InsertOne(ctx, acct)
	if mongo.IsDuplicateKeyError(err) {
		return ErrAccountExists
	}
	return err
}

func (s *MongoStore) GetLink(ctx context.Context, userID, linkID string) (*models.Link, error) {
	var l models.Link
	err := s.links.FindOne(ctx, bson.M{"user_id": userID, "link_id": linkID}).Decode(&l)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrLinkNotFound
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *MongoStore) PutLink(ctx context.Context, link *models.Link) error {
	filter := bson.M{"user_id": link.UserID, "link_id": link.LinkID}
	_, err := s.links.ReplaceOne(ctx, filter, link, options.Replace().SetUpsert(true))
	return err
}

func (s *MongoStore) ListLinks(ctx context.Context, userID string) ([]*models.Link, error) {
	opts := options.Find().SetSort(bson.D{{Key: "order", Value: 1}, {Key: "created_at", Value: 1}})
	cur, err := s.links.Find(ctx, bson.M{"user_id": userID, "is_deleted": bson.M{"$ne": true}}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := make([]*models.Link, 0)
	for cur.Next(ctx) {
		var l models.Link
		if err := cur.Decode(&l); err != nil {
			return nil, err
		}
		out = append(out, &l)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) SoftDeleteLink(ctx context.Context, userID, linkID string, at time.Time) (*models.Link, error) {
	var l models.Link
	err := s.links.FindOneAndUpdate(ctx,
		bson.M{"user_id": userID, "link_id": linkID},
		bson.M{"$set": bson.M{"is_deleted": true, "updated_at": at}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&l)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrLinkNotFound
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// AddStrike increments the user's strike counter and returns the new record.
func (s *MongoStore) AddStrike(ctx context.Context, userID string, at time.Time) (*models.UserFlag, error) {
	update := bson.M{
		"$inc":         bson.M{"strikes": 1},
		"$set":         bson.M{"last_strike_at": at, "updated_at": at},
		"$setOnInsert": bson.M{"user_id": userID},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var out models.UserFlag
	if err := s.flags.FindOneAndUpdate(ctx, bson.M{"user_id": userID}, update, opts).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}
