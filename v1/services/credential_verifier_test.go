package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/sawanruparel/web-presence/access-api/v1/auth"
	"github.com/sawanruparel/web-presence/access-api/v1/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type staticAllowlist struct {
	emails map[string]struct{}
	err    error
	calls  int
}

func (s *staticAllowlist) GetEmailAllowlist(ctx context.Context, ruleID uuid.UUID) (map[string]struct{}, error) {
	s.calls++
	return s.emails, s.err
}

func TestCredentialVerifier_Password(t *testing.T) {
	hash, err := auth.HashPassword("s3cret", bcrypt.MinCost)
	require.NoError(t, err)
	rule := &models.AccessRule{ID: uuid.New(), AccessMode: models.AccessModePassword, PasswordHash: &hash}
	verifier := NewCredentialVerifier(&staticAllowlist{})

	tests := []struct {
		name     string
		cred     models.Credential
		accepted bool
		reason   models.DenialReason
		credType models.CredentialType
	}{
		{"correct", models.PasswordCredential{Value: "s3cret"}, true, "", models.CredentialTypePassword},
		{"wrong", models.PasswordCredential{Value: "S3cret"}, false, models.DenialCredentialRejected, models.CredentialTypePassword},
		{"empty", models.PasswordCredential{}, false, models.DenialInvalidCredentialFormat, models.CredentialTypePassword},
		{"email variant", models.EmailCredential{Value: "a@example.com"}, false, models.DenialInvalidCredentialFormat, models.CredentialTypeEmail},
		{"none", models.NoCredential{}, false, models.DenialInvalidCredentialFormat, models.CredentialTypeNone},
		{"nil", nil, false, models.DenialInvalidCredentialFormat, models.CredentialTypeNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict, err := verifier.Verify(context.Background(), rule, tt.cred)
			require.NoError(t, err)
			assert.Equal(t, tt.accepted, verdict.Accepted)
			assert.Equal(t, tt.reason, verdict.Reason)
			assert.Equal(t, tt.credType, verdict.CredentialType)
			assert.Empty(t, verdict.Email)
		})
	}
}

func TestCredentialVerifier_PasswordRuleWithoutHash(t *testing.T) {
	rule := &models.AccessRule{AccessMode: models.AccessModePassword}

	verdict, err := NewCredentialVerifier(&staticAllowlist{}).Verify(context.Background(), rule, models.PasswordCredential{Value: "x"})
	require.NoError(t, err)
	assert.False(t, verdict.Accepted)
	assert.Equal(t, models.DenialCredentialRejected, verdict.Reason)
}

func TestCredentialVerifier_EmailList(t *testing.T) {
	source := &staticAllowlist{emails: map[string]struct{}{"admin@example.com": {}}}
	rule := &models.AccessRule{ID: uuid.New(), AccessMode: models.AccessModeEmailList}
	verifier := NewCredentialVerifier(source)

	tests := []struct {
		name     string
		cred     models.Credential
		accepted bool
		reason   models.DenialReason
		email    string
	}{
		{"exact", models.EmailCredential{Value: "admin@example.com"}, true, "", "admin@example.com"},
		{"case and whitespace", models.EmailCredential{Value: "  ADMIN@example.COM\t"}, true, "", "admin@example.com"},
		{"not listed", models.EmailCredential{Value: "other@example.com"}, false, models.DenialCredentialRejected, "other@example.com"},
		{"malformed", models.EmailCredential{Value: "admin.example.com"}, false, models.DenialInvalidCredentialFormat, ""},
		{"empty local part", models.EmailCredential{Value: "@example.com"}, false, models.DenialInvalidCredentialFormat, ""},
		{"inner whitespace", models.EmailCredential{Value: "ad min@example.com"}, false, models.DenialInvalidCredentialFormat, ""},
		{"password variant", models.PasswordCredential{Value: "admin@example.com"}, false, models.DenialInvalidCredentialFormat, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict, err := verifier.Verify(context.Background(), rule, tt.cred)
			require.NoError(t, err)
			assert.Equal(t, tt.accepted, verdict.Accepted)
			assert.Equal(t, tt.reason, verdict.Reason)
			assert.Equal(t, tt.email, verdict.Email)
		})
	}
}

func TestCredentialVerifier_MalformedEmailSkipsStore(t *testing.T) {
	source := &staticAllowlist{err: errors.New("should not be called")}
	rule := &models.AccessRule{AccessMode: models.AccessModeEmailList}

	verdict, err := NewCredentialVerifier(source).Verify(context.Background(), rule, models.EmailCredential{Value: "nope"})
	require.NoError(t, err)
	assert.Equal(t, models.DenialInvalidCredentialFormat, verdict.Reason)
	assert.Zero(t, source.calls)
}

func TestCredentialVerifier_AllowlistError(t *testing.T) {
	storeErr := errors.New("connection refused")
	rule := &models.AccessRule{AccessMode: models.AccessModeEmailList}

	_, err := NewCredentialVerifier(&staticAllowlist{err: storeErr}).Verify(context.Background(), rule, models.EmailCredential{Value: "a@example.com"})
	assert.ErrorIs(t, err, storeErr)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestCredentialVerifier_Open(t *testing.T) {
	rule := &models.AccessRule{AccessMode: models.AccessModeOpen}
	verifier := NewCredentialVerifier(&staticAllowlist{})

	for _, cred := range []models.Credential{nil, models.NoCredential{}, models.PasswordCredential{Value: "x"}, models.EmailCredential{Value: "a@example.com"}} {
		verdict, err := verifier.Verify(context.Background(), rule, cred)
		require.NoError(t, err)
		assert.True(t, verdict.Accepted)
		assert.Equal(t, models.CredentialTypeNone, verdict.CredentialType)
	}
}

func TestCredentialVerifier_UnknownMode(t *testing.T) {
	rule := &models.AccessRule{AccessMode: models.AccessMode("public")}

	_, err := NewCredentialVerifier(&staticAllowlist{}).Verify(context.Background(), rule, models.NoCredential{})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrStoreUnavailable)
}
