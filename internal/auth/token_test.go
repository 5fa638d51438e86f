package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dkeye/Parley/internal/core"
	"github.com/dkeye/Parley/internal/domain"
)

func TestValidator_RoundTrip(t *testing.T) {
	req := require.New(t)
	v := NewValidator("test-secret")

	token, err := v.Sign("alice", time.Minute)
	req.NoError(err)

	user, err := v.Validate(context.Background(), token)
	req.NoError(err)
	req.Equal(domain.UserID("alice"), user)
}

func TestValidator_RejectsWrongSecret(t *testing.T) {
	req := require.New(t)
	token, err := NewValidator("secret-a").Sign("alice", time.Minute)
	req.NoError(err)

	_, err = NewValidator("secret-b").Validate(context.Background(), token)
	req.ErrorIs(err, core.ErrInvalidCredential)
}

func TestValidator_RejectsExpired(t *testing.T) {
	req := require.New(t)
	v := NewValidator("test-secret")
	token, err := v.Sign("alice", -time.Minute)
	req.NoError(err)

	_, err = v.Validate(context.Background(), token)
	req.ErrorIs(err, core.ErrInvalidCredential)
}

func TestValidator_RejectsGarbage(t *testing.T) {
	_, err := NewValidator("test-secret").Validate(context.Background(), "not-a-jwt")
	require.ErrorIs(t, err, core.ErrInvalidCredential)
}
