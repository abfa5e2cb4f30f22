package services

import (
	"context"
	"testing"
	"time"

	"staybackend/internal/domain"
	"staybackend/internal/domain/models"
	"staybackend/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterLoginAndParseToken(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	svc := AuthService{
		Profiles: testutil.NewStore(),
		Secret:   []byte("test-secret-test-secret-test-secret"),
		TTL:      time.Hour,
		Now:      func() time.Time { return now },
	}

	reg, err := svc.Register(ctx, RegisterInput{FullName: "Hana  Host", Email: "Hana@Example.com", Password: "correct-horse", Role: domain.RoleHost})
	require.NoError(t, err)
	assert.Equal(t, "hana@example.com", reg.User.Email)
	assert.Equal(t, "Hana Host", reg.User.FullName)

	_, err = svc.Register(ctx, RegisterInput{FullName: "Hana Again", Email: "hana@example.com", Password: "correct-horse"})
	assert.True(t, domain.IsConflict(err))

	_, err = svc.Register(ctx, RegisterInput{FullName: "Eve", Email: "eve@example.com", Password: "correct-horse", Role: domain.RoleAdmin})
	assert.True(t, domain.IsValidation(err), "admins cannot self-register")

	_, err = svc.Login(ctx, LoginInput{Email: "hana@example.com", Password: "wrong-password"})
	assert.True(t, domain.IsAuthentication(err))

	login, err := svc.Login(ctx, LoginInput{Email: "HANA@example.com", Password: "correct-horse"})
	require.NoError(t, err)

	actor, err := svc.ParseToken(login.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, actor.UserID)
	assert.Equal(t, domain.RoleHost, actor.Role)

	later := svc
	later.Now = func() time.Time { return now.Add(2 * time.Hour) }
	_, err = later.ParseToken(login.Token)
	require.True(t, domain.IsAuthentication(err))
	assert.Contains(t, err.Error(), "expired")

	other := svc
	other.Secret = []byte("another-secret-another-secret-xx")
	_, err = other.ParseToken(login.Token)
	assert.True(t, domain.IsAuthentication(err))

	_, err = svc.ParseToken("")
	assert.True(t, domain.IsAuthentication(err))
}

func TestCurrentRoleReadsStoredProfile(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewStore()
	store.Profiles[9] = models.Profile{ID: 9, Email: "h@example.com", Role: domain.RoleHost}
	store.Profiles[10] = models.Profile{ID: 10, Email: "blank@example.com"}
	svc := AuthService{Profiles: store, Secret: []byte("test-secret-test-secret-test-secret"), TTL: time.Hour}

	role, err := svc.CurrentRole(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleHost, role)

	role, err = svc.CurrentRole(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, role)

	_, err = svc.CurrentRole(ctx, 404)
	assert.True(t, domain.IsAuthentication(err))
}
