// Package app opens the backing services selected by config. Both binaries
// share it.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/prolynk/backend/internal/config"
	"github.com/prolynk/backend/internal/middleware"
	"github.com/prolynk/backend/internal/services"
	"github.com/prolynk/backend/internal/storage"
)

// ObjectStore is a services.ObjectStore that holds a connection.
type ObjectStore interface {
	services.ObjectStore
	Close() error
}

type s3Closer struct{ *storage.S3ObjectStore }

func (s3Closer) Close() error { return nil }

func OpenStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (services.Store, error) {
	switch cfg.StoreDriver {
	case config.StoreMongo:
		logger.Info().Str("db", cfg.MongoDB).Msg("connecting to MongoDB")
		return services.NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDB)
	case config.StoreDynamo:
		logger.Info().Str("region", cfg.AWSRegion).Str("profiles", cfg.ProfilesTable).Msg("using DynamoDB")
		return services.NewDynamoStore(ctx, services.DynamoConfig{
			Region:   cfg.AWSRegion,
			Endpoint: cfg.DynamoEndpoint,
			Tables: services.DynamoTables{
				Users:    cfg.UsersTable,
				Profiles: cfg.ProfilesTable,
				Links:    cfg.LinksTable,
			},
		})
	case config.StoreMemory:
		if cfg.DataDir == "" {
			logger.Warn().Msg("in-memory store without DATA_DIR; data is lost on restart")
		}
		return services.NewMemoryStore(cfg.DataDir)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func OpenObjectStore(ctx context.Context, cfg *config.Config) (ObjectStore, error) {
	switch cfg.ObjectStore {
	case config.ObjectStoreGCS:
		return storage.NewGCSObjectStore(ctx, storage.GCSConfig{
			Bucket:   cfg.Bucket,
			AccessID: cfg.GCSAccessID,
		})
	case config.ObjectStoreS3:
		s, err := storage.NewS3ObjectStore(ctx, storage.S3Config{
			Region:          cfg.AWSRegion,
			Bucket:          cfg.Bucket,
			Endpoint:        cfg.S3Endpoint,
			UsePathStyle:    cfg.S3UsePathStyle,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
		if err != nil {
			return nil, err
		}
		return s3Closer{s}, nil
	default:
		return nil, fmt.Errorf("unknown object store %q", cfg.ObjectStore)
	}
}

func NewVerifier(ctx context.Context, cfg *config.Config) (middleware.TokenVerifier, error) {
	if cfg.AuthMode == config.AuthModeJWT {
		return middleware.NewJWTVerifier(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience), nil
	}
	client, err := middleware.NewFirebaseAuthClient(ctx, middleware.FirebaseAuthConfig{
		ProjectID:       cfg.FirebaseProjectID,
		CredentialsJSON: cfg.FirebaseCredentialsJSON,
	})
	if err != nil {
		return nil, err
	}
	return middleware.NewFirebaseVerifier(client), nil
}
