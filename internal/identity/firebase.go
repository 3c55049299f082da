package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"tutor-service/pkg/response"
)

// Claims is what the service trusts from a verified identity token.
type Claims struct {
	UID           string
	Email         string
	EmailVerified bool
}

type Verifier interface {
	Verify(ctx context.Context, token string) (*Claims, error)
}

type tokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

type FirebaseVerifier struct {
	client  tokenVerifier
	timeout time.Duration
}

func NewFirebaseVerifier(ctx context.Context, projectID, credentialsFile string, timeout time.Duration) (*FirebaseVerifier, error) {
	const op = "identity.NewFirebaseVerifier"

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &FirebaseVerifier{client: client, timeout: timeout}, nil
}

func (v *FirebaseVerifier) Verify(ctx context.Context, token string) (*Claims, error) {
	const op = "identity.FirebaseVerifier.Verify"

	if token == "" {
		return nil, fmt.Errorf("%s: empty token: %w", op, response.ErrUnauthorized)
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	tok, err := v.client.VerifyIDToken(ctx, token)
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
			return nil, fmt.Errorf("%s: %w: %w", op, response.ErrServer, err)
		case auth.IsIDTokenExpired(err), auth.IsIDTokenInvalid(err):
			return nil, fmt.Errorf("%s: %w: %w", op, response.ErrUnauthorized, err)
		default:
			// Key fetch and transport failures end up here.
			return nil, fmt.Errorf("%s: %w: %w", op, response.ErrServer, err)
		}
	}

	claims := &Claims{UID: tok.UID}
	if email, ok := tok.Claims["email"].(string); ok {
		claims.Email = email
	}
	if verified, ok := tok.Claims["email_verified"].(bool); ok {
		claims.EmailVerified = verified
	}

	return claims, nil
}
