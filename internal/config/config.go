package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	AuthModeFirebase = "firebase"
	AuthModeJWT      = "jwt"

	StoreMemory = "memory"
	StoreMongo  = "mongo"
	StoreDynamo = "dynamodb"

	ObjectStoreS3  = "s3"
	ObjectStoreGCS = "gcs"
)

type Config struct {
	ServerAddress string `env:"SERVER_ADDRESS" envDefault:":8080"`
	Environment   string `env:"APP_ENV" envDefault:"development"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`

	// Exact origins reflected in Access-Control-Allow-Origin. In development any
	// http://localhost origin is accepted as well.
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:8080,http://localhost:3000"`

	AuthMode                string `env:"AUTH_MODE" envDefault:"firebase"`
	FirebaseProjectID       string `env:"FIREBASE_PROJECT_ID"`
	FirebaseCredentialsJSON string `env:"FIREBASE_CREDENTIALS_JSON"`
	JWTSecret               string `env:"JWT_SECRET"`
	JWTIssuer               string `env:"JWT_ISSUER"`
	JWTAudience             string `env:"JWT_AUDIENCE"`

	StoreDriver string `env:"STORE_DRIVER" envDefault:"memory"`
	DataDir     string `env:"DATA_DIR"`

	MongoURI string `env:"MONGO_URI"`
	MongoDB  string `env:"MONGO_DB" envDefault:"prolynk"`

	AWSRegion      string `env:"AWS_REGION" envDefault:"us-east-1"`
	DynamoEndpoint string `env:"DYNAMODB_ENDPOINT"`
	UsersTable     string `env:"USERS_TABLE" envDefault:"prolynk-users"`
	ProfilesTable  string `env:"PROFILES_TABLE" envDefault:"prolynk-profiles"`
	LinksTable     string `env:"LINKS_TABLE" envDefault:"prolynk-links"`

	ObjectStore    string `env:"OBJECT_STORE" envDefault:"s3"`
	Bucket         string `env:"S3_BUCKET" envDefault:"prolynk-uploads"`
	S3Endpoint     string `env:"S3_ENDPOINT"`
	S3UsePathStyle bool   `env:"S3_USE_PATH_STYLE" envDefault:"false"`
	// Static keys for S3-compatible endpoints such as MinIO. Empty means the
	// default AWS credential chain.
	S3AccessKeyID     string `env:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"S3_SECRET_ACCESS_KEY"`
	GCSAccessID       string `env:"GCS_SIGNER_EMAIL"`

	UploadURLTTL time.Duration `env:"UPLOAD_URL_TTL" envDefault:"5m"`
	ResumeURLTTL time.Duration `env:"RESUME_URL_TTL" envDefault:"15m"`

	// Formatted as understood by limiter.NewRateFromFormatted, e.g. "100-M".
	RateLimit string `env:"RATE_LIMIT" envDefault:"300-M"`
	RedisURL  string `env:"REDIS_URL"`

	ModerationEnabled bool `env:"MODERATION_ENABLED" envDefault:"false"`
	WorkerAddress     string `env:"WORKER_ADDRESS" envDefault:":8081"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, EnvDevelopment)
}

func (c *Config) validate() error {
	switch c.AuthMode {
	case AuthModeFirebase:
	case AuthModeJWT:
		if c.JWTSecret == "" {
			return errors.New("JWT_SECRET is required when AUTH_MODE=jwt")
		}
	default:
		return fmt.Errorf("unknown AUTH_MODE %q", c.AuthMode)
	}

	switch c.StoreDriver {
	case StoreMemory:
	case StoreMongo:
		if c.MongoURI == "" {
			return errors.New("MONGO_URI is required when STORE_DRIVER=mongo")
		}
	case StoreDynamo:
		if c.UsersTable == "" || c.ProfilesTable == "" || c.LinksTable == "" {
			return errors.New("USERS_TABLE, PROFILES_TABLE and LINKS_TABLE are required when STORE_DRIVER=dynamodb")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	switch c.ObjectStore {
	case ObjectStoreS3, ObjectStoreGCS:
		if c.Bucket == "" {
			return errors.New("S3_BUCKET is required")
		}
	default:
		return fmt.Errorf("unknown OBJECT_STORE %q", c.ObjectStore)
	}

	if c.UploadURLTTL <= 0 || c.ResumeURLTTL <= 0 {
		return errors.New("UPLOAD_URL_TTL and RESUME_URL_TTL must be positive")
	}
	return nil
}
