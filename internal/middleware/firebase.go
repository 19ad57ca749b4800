package middleware

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"github.com/prolynk/backend/internal/models"
)

type FirebaseAuthConfig struct {
	ProjectID string
	// CredentialsJSON is a service account key. Empty means Application
	// Default Credentials.
	CredentialsJSON string
}

func NewFirebaseAuthClient(ctx context.Context, cfg FirebaseAuthConfig) (*auth.Client, error) {
	var opts []option.ClientOption
	if cfg.CredentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	}

	var fbCfg *firebase.Config
	if cfg.ProjectID != "" {
		fbCfg = &firebase.Config{ProjectID: cfg.ProjectID}
	}

	app, err := firebase.NewApp(ctx, fbCfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase auth: %w", err)
	}
	return client, nil
}

// FirebaseVerifier checks Firebase ID tokens.
type FirebaseVerifier struct {
	client *auth.Client
}

func NewFirebaseVerifier(client *auth.Client) *FirebaseVerifier {
	return &FirebaseVerifier{client: client}
}

func (v *FirebaseVerifier) Verify(ctx context.Context, raw string) (models.Identity, error) {
	tok, err := v.client.VerifyIDToken(ctx, raw)
	if err != nil {
		return models.Identity{}, err
	}
	return identityFromFirebase(tok), nil
}

func identityFromFirebase(tok *auth.Token) models.Identity {
	claim := func(name string) string {
		s, _ := tok.Claims[name].(string)
		return s
	}
	provider := tok.Firebase.SignInProvider
	return models.Identity{
		Subject:    tok.UID,
		Email:      claim("email"),
		Name:       claim("name"),
		GivenName:  claim("given_name"),
		FamilyName: claim("family_name"),
		Picture:    claim("picture"),
		Federated:  provider != "" && provider != "password" && provider != "custom",
	}
}
