package security

import (
	"context"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"consultation-queue-backend/internal/domain"
	"consultation-queue-backend/internal/logger"
)

var ErrUnverifiedIdentity = errors.New("identity token could not be verified")

// IdentityVerifier turns an authentication-service ID token into a caller identity.
type IdentityVerifier interface {
	Verify(ctx context.Context, idToken string) (*domain.Identity, error)
}

type idTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

type firebaseVerifier struct {
	client idTokenVerifier
}

// NewFirebaseVerifier verifies Firebase ID tokens for the given project.
func NewFirebaseVerifier(ctx context.Context, projectID, credentialsFile string) (IdentityVerifier, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase auth: %w", err)
	}
	return &firebaseVerifier{client: client}, nil
}

func (v *firebaseVerifier) Verify(ctx context.Context, idToken string) (*domain.Identity, error) {
	logger.ExternalServiceCall("firebase", "VerifyIDToken")
	tok, err := v.client.VerifyIDToken(ctx, idToken)
	logger.ExternalServiceResult("firebase", "VerifyIDToken", err)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnverifiedIdentity, err)
	}
	return identityFromToken(tok), nil
}

func identityFromToken(tok *auth.Token) *domain.Identity {
	id := &domain.Identity{UID: tok.UID}
	if email, ok := tok.Claims["email"].(string); ok {
		id.Email = email
	}
	if name, ok := tok.Claims["name"].(string); ok {
		id.DisplayName = name
	}
	return id
}

type anonymousVerifier struct{}

// NewAnonymousVerifier accepts every caller; used when identity verification is disabled.
func NewAnonymousVerifier() IdentityVerifier {
	return anonymousVerifier{}
}

func (anonymousVerifier) Verify(ctx context.Context, idToken string) (*domain.Identity, error) {
	return &domain.Identity{UID: "anonymous"}, nil
}
