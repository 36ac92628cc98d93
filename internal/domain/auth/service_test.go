package auth

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "github.com/yanqian/interview-evaluator/pkg/errors"
)

func TestService_IssueAndValidate(t *testing.T) {
	svc := NewService(Config{Secret: "test-secret", TokenTTL: time.Hour}, newTestLogger())

	token, err := svc.Issue(context.Background(), Actor{UserID: 12, Role: RoleManager})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, Actor{UserID: 12, Role: RoleManager}, claims.Actor)
	require.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt, time.Minute)
}

func TestService_RejectsForeignSecret(t *testing.T) {
	issuer := NewService(Config{Secret: "one", TokenTTL: time.Hour}, newTestLogger())
	validator := NewService(Config{Secret: "two", TokenTTL: time.Hour}, newTestLogger())

	token, err := issuer.Issue(context.Background(), Actor{UserID: 1, Role: RoleCandidate})
	require.NoError(t, err)

	_, err = validator.ValidateToken(context.Background(), token)
	require.True(t, apperrors.IsCode(err, apperrors.CodeUnauthorized))
}

func TestService_IssueRejectsUnknownRole(t *testing.T) {
	svc := NewService(Config{Secret: "s"}, newTestLogger())

	_, err := svc.Issue(context.Background(), Actor{UserID: 1, Role: "owner"})
	require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))
}

func TestActorIs(t *testing.T) {
	actor := Actor{UserID: 3, Role: RoleAdmin}
	require.True(t, actor.Is(RoleManager, RoleAdmin))
	require.False(t, actor.Is(RoleCandidate))
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
