package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sawanruparel/web-presence/access-api/internal/config"
	"github.com/sawanruparel/web-presence/access-api/v1/auth"
	"github.com/sawanruparel/web-presence/access-api/v1/database"
	"github.com/sawanruparel/web-presence/access-api/v1/models"
	"github.com/sawanruparel/web-presence/access-api/v1/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newRuleService(t *testing.T) (*RuleService, *database.GormRuleRepository) {
	db := testutil.SetupSQLiteTestDB(t)
	repo := database.NewGormRuleRepository(db, time.Second)
	return NewRuleService(repo, config.NewContentTypes(config.DefaultContentTypes), bcrypt.MinCost), repo
}

func modePtr(m models.AccessMode) *models.AccessMode { return &m }

func TestRuleService_CreateRuleValidation(t *testing.T) {
	svc, _ := newRuleService(t)

	tests := []struct {
		name    string
		req     models.CreateAccessRuleRequest
		message string
	}{
		{"missing slug", models.CreateAccessRuleRequest{Type: "notes", AccessMode: models.AccessModeOpen}, "missing required fields"},
		{"missing mode", models.CreateAccessRuleRequest{Type: "notes", Slug: "a"}, "missing required fields"},
		{"unknown type", models.CreateAccessRuleRequest{Type: "videos", Slug: "a", AccessMode: models.AccessModeOpen}, "unknown content type"},
		{"bad mode", models.CreateAccessRuleRequest{Type: "notes", Slug: "a", AccessMode: "public"}, "invalid access mode"},
		{"password without password", models.CreateAccessRuleRequest{Type: "notes", Slug: "a", AccessMode: models.AccessModePassword}, "password is required for password mode"},
		{"email-list without emails", models.CreateAccessRuleRequest{Type: "notes", Slug: "a", AccessMode: models.AccessModeEmailList}, "email list must not be empty"},
		{"email-list with blank emails", models.CreateAccessRuleRequest{Type: "notes", Slug: "a", AccessMode: models.AccessModeEmailList, AllowedEmails: []string{"   "}}, "invalid email"},
		{"email-list with malformed email", models.CreateAccessRuleRequest{Type: "notes", Slug: "a", AccessMode: models.AccessModeEmailList, AllowedEmails: []string{"not-an-email"}}, "invalid email"},
		{"open with password", models.CreateAccessRuleRequest{Type: "notes", Slug: "a", AccessMode: models.AccessModeOpen, Password: strPtr("x")}, "open rules take no password"},
		{"password with emails", models.CreateAccessRuleRequest{Type: "notes", Slug: "a", AccessMode: models.AccessModePassword, Password: strPtr("x"), AllowedEmails: []string{"a@example.com"}}, "password rules take no email list"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateRule(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, IsValidationError(err))
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestRuleService_CreateAndGet(t *testing.T) {
	svc, repo := newRuleService(t)
	ctx := context.Background()

	created, err := svc.CreateRule(ctx, models.CreateAccessRuleRequest{
		Type:          "publications",
		Slug:          "decisionrecord-io",
		AccessMode:    models.AccessModeEmailList,
		Description:   "invite only",
		AllowedEmails: []string{"Admin@Example.com", "admin@example.com ", "b@example.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"admin@example.com", "b@example.com"}, created.AllowedEmails)
	assert.False(t, created.HasPassword)

	got, err := svc.GetRule(ctx, "publications", "decisionrecord-io")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "invite only", got.Description)
	assert.ElementsMatch(t, []string{"admin@example.com", "b@example.com"}, got.AllowedEmails)

	pw, err := svc.CreateRule(ctx, models.CreateAccessRuleRequest{
		Type: "ideas", Slug: "sample-protected-idea", AccessMode: models.AccessModePassword, Password: strPtr("pw"),
	})
	require.NoError(t, err)
	assert.True(t, pw.HasPassword)

	stored, err := repo.GetRule(ctx, "ideas", "sample-protected-idea")
	require.NoError(t, err)
	require.NotNil(t, stored.PasswordHash)
	assert.NotEqual(t, "pw", *stored.PasswordHash)
	assert.True(t, auth.CheckPassword(*stored.PasswordHash, "pw"))

	_, err = svc.CreateRule(ctx, models.CreateAccessRuleRequest{Type: "ideas", Slug: "sample-protected-idea", AccessMode: models.AccessModeOpen})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = svc.GetRule(ctx, "ideas", "missing")
	assert.ErrorIs(t, err, ErrPolicyNotFound)
	assert.True(t, IsNotFound(err))
}

func TestRuleService_ListRules(t *testing.T) {
	svc, _ := newRuleService(t)
	ctx := context.Background()

	for _, req := range []models.CreateAccessRuleRequest{
		{Type: "notes", Slug: "a", AccessMode: models.AccessModeOpen},
		{Type: "notes", Slug: "b", AccessMode: models.AccessModePassword, Password: strPtr("pw")},
		{Type: "ideas", Slug: "c", AccessMode: models.AccessModeOpen},
	} {
		_, err := svc.CreateRule(ctx, req)
		require.NoError(t, err)
	}

	all, err := svc.ListRules(ctx, "", "")
	require.NoError(t, err)
	assert.Equal(t, 3, all.Count)

	notes, err := svc.ListRules(ctx, "notes", "")
	require.NoError(t, err)
	assert.Equal(t, 2, notes.Count)

	open, err := svc.ListRules(ctx, "notes", "open")
	require.NoError(t, err)
	require.Equal(t, 1, open.Count)
	assert.Equal(t, "a", open.Rules[0].Slug)

	_, err = svc.ListRules(ctx, "", "public")
	assert.True(t, IsValidationError(err))
}

func TestRuleService_UpdateRuleTransitions(t *testing.T) {
	svc, repo := newRuleService(t)
	ctx := context.Background()

	_, err := svc.CreateRule(ctx, models.CreateAccessRuleRequest{Type: "notes", Slug: "n", AccessMode: models.AccessModeOpen})
	require.NoError(t, err)

	t.Run("open to password requires a password", func(t *testing.T) {
		_, err := svc.UpdateRule(ctx, "notes", "n", models.UpdateAccessRuleRequest{AccessMode: modePtr(models.AccessModePassword)})
		assert.True(t, IsValidationError(err))
	})

	t.Run("open to password", func(t *testing.T) {
		resp, err := svc.UpdateRule(ctx, "notes", "n", models.UpdateAccessRuleRequest{
			AccessMode: modePtr(models.AccessModePassword),
			Password:   strPtr("first"),
		})
		require.NoError(t, err)
		assert.Equal(t, models.AccessModePassword, resp.AccessMode)
		assert.True(t, resp.HasPassword)
	})

	t.Run("rotate password", func(t *testing.T) {
		_, err := svc.UpdateRule(ctx, "notes", "n", models.UpdateAccessRuleRequest{Password: strPtr("second")})
		require.NoError(t, err)
		rule, err := repo.GetRule(ctx, "notes", "n")
		require.NoError(t, err)
		assert.True(t, auth.CheckPassword(*rule.PasswordHash, "second"))
		assert.False(t, auth.CheckPassword(*rule.PasswordHash, "first"))
	})

	t.Run("password to email-list clears the hash", func(t *testing.T) {
		emails := []string{"x@example.com"}
		resp, err := svc.UpdateRule(ctx, "notes", "n", models.UpdateAccessRuleRequest{
			AccessMode:    modePtr(models.AccessModeEmailList),
			AllowedEmails: &emails,
		})
		require.NoError(t, err)
		assert.False(t, resp.HasPassword)
		assert.Equal(t, []string{"x@example.com"}, resp.AllowedEmails)
	})

	t.Run("empty allowlist is rejected", func(t *testing.T) {
		_, err := svc.UpdateRule(ctx, "notes", "n", models.UpdateAccessRuleRequest{AllowedEmails: &[]string{}})
		assert.True(t, IsValidationError(err))
	})

	t.Run("email-list to open clears the allowlist", func(t *testing.T) {
		resp, err := svc.UpdateRule(ctx, "notes", "n", models.UpdateAccessRuleRequest{
			AccessMode:  modePtr(models.AccessModeOpen),
			Description: strPtr("public now"),
		})
		require.NoError(t, err)
		assert.Equal(t, models.AccessModeOpen, resp.AccessMode)
		assert.Empty(t, resp.AllowedEmails)
		assert.Equal(t, "public now", resp.Description)
	})

	t.Run("missing rule", func(t *testing.T) {
		_, err := svc.UpdateRule(ctx, "notes", "missing", models.UpdateAccessRuleRequest{Description: strPtr("x")})
		assert.ErrorIs(t, err, ErrPolicyNotFound)
	})
}

func TestRuleService_DeleteRule(t *testing.T) {
	svc, _ := newRuleService(t)
	ctx := context.Background()

	_, err := svc.CreateRule(ctx, models.CreateAccessRuleRequest{Type: "notes", Slug: "n", AccessMode: models.AccessModeOpen})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteRule(ctx, "notes", "n"))
	assert.ErrorIs(t, svc.DeleteRule(ctx, "notes", "n"), ErrPolicyNotFound)
	_, err = svc.GetRule(ctx, "notes", "n")
	assert.ErrorIs(t, err, ErrPolicyNotFound)
}

func TestRuleService_AllowlistEmails(t *testing.T) {
	svc, _ := newRuleService(t)
	ctx := context.Background()

	_, err := svc.CreateRule(ctx, models.CreateAccessRuleRequest{
		Type: "publications", Slug: "p", AccessMode: models.AccessModeEmailList, AllowedEmails: []string{"a@example.com"},
	})
	require.NoError(t, err)
	_, err = svc.CreateRule(ctx, models.CreateAccessRuleRequest{Type: "notes", Slug: "open", AccessMode: models.AccessModeOpen})
	require.NoError(t, err)

	resp, err := svc.AddEmail(ctx, "publications", "p", " B@Example.com ")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a@example.com", "b@example.com"}, resp.AllowedEmails)

	resp, err = svc.AddEmail(ctx, "publications", "p", "b@example.com")
	require.NoError(t, err, "adding an existing address is a no-op")
	assert.Len(t, resp.AllowedEmails, 2)

	_, err = svc.AddEmail(ctx, "publications", "p", "bogus")
	assert.True(t, IsValidationError(err))
	_, err = svc.AddEmail(ctx, "notes", "open", "a@example.com")
	assert.True(t, IsValidationError(err))
	_, err = svc.AddEmail(ctx, "notes", "missing", "a@example.com")
	assert.ErrorIs(t, err, ErrPolicyNotFound)

	resp, err = svc.RemoveEmail(ctx, "publications", "p", "A@EXAMPLE.COM")
	require.NoError(t, err)
	assert.Equal(t, []string{"b@example.com"}, resp.AllowedEmails)

	_, err = svc.RemoveEmail(ctx, "publications", "p", "a@example.com")
	assert.ErrorIs(t, err, ErrEmailNotFound)

	_, err = svc.RemoveEmail(ctx, "publications", "p", "b@example.com")
	assert.True(t, IsValidationError(err), "the last address cannot be removed")
}

func TestRuleService_StoreUnavailable(t *testing.T) {
	storeErr := errors.New("dial tcp: connection refused")
	svc := NewRuleService(&testutil.FailingRuleRepository{Err: storeErr}, config.NewContentTypes(config.DefaultContentTypes), bcrypt.MinCost)

	_, err := svc.GetRule(context.Background(), "notes", "a")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, err, storeErr)
	assert.False(t, IsNotFound(err))
}
