package directory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"lapelle-backend/lib/keychain"
	"lapelle-backend/lib/testutil"
	"lapelle-backend/services/directory/db"
)

func setup(t testing.TB) (Service, func()) {
	res, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "services/directory",
		DbSchema: db.Schema,
	})
	s := NewService(res.DB, keychain.NewCodec([]byte("test-secret")))
	return s, cleanup
}

func TestMemberships(t *testing.T) {
	service, cleanup := setup(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	require.NoError(t, service.UpsertMembership(ctx, "alice", "ESILV-A1", true))
	require.NoError(t, service.UpsertMembership(ctx, "bob", "ESILV-A1", false))
	require.NoError(t, service.UpsertMembership(ctx, "alice", "ESILV-A1-TD02", false))

	// membership exists but the group is not verified yet
	memberships, err := service.UserGroups(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, memberships, 2)
	require.False(t, memberships[0].GroupVerified)

	require.NoError(t, service.UpsertGroup(ctx, "ESILV-A1", true))

	memberships, err = service.UserGroups(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, "ESILV-A1", memberships[0].Group)
	require.True(t, memberships[0].Verified)
	require.True(t, memberships[0].GroupVerified)
	require.Equal(t, "ESILV-A1-TD02", memberships[1].Group)
	require.False(t, memberships[1].GroupVerified)
}

func TestUpsertDoesNotDowngradeVerification(t *testing.T) {
	service, cleanup := setup(t)
	defer cleanup()

	ctx := context.Background()

	require.NoError(t, service.UpsertGroup(ctx, "ESILV-A1", true))
	require.NoError(t, service.UpsertMembership(ctx, "alice", "ESILV-A1", true))

	// a later unverified sighting must not clear the verified flags
	require.NoError(t, service.UpsertGroup(ctx, "ESILV-A1", false))
	require.NoError(t, service.UpsertMembership(ctx, "alice", "ESILV-A1", false))

	memberships, err := service.UserGroups(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, memberships, 1)
	require.True(t, memberships[0].Verified)
	require.True(t, memberships[0].GroupVerified)
}

func TestGroupMembers(t *testing.T) {
	service, cleanup := setup(t)
	defer cleanup()

	ctx := context.Background()

	require.NoError(t, service.UpsertGroup(ctx, "ESILV-A1", true))
	require.NoError(t, service.UpsertMembership(ctx, "alice", "ESILV-A1", true))
	require.NoError(t, service.UpsertMembership(ctx, "bob", "ESILV-A1", true))
	require.NoError(t, service.UpsertMembership(ctx, "carol", "ESILV-A1", false))

	require.NoError(t, service.SetCredentials(ctx, "alice", keychain.Credentials{
		Email:    "alice@edu.devinci.fr",
		Password: "secret",
	}))

	groups, err := service.GroupMembers(ctx, []string{"ESILV-A1", "UNKNOWN"})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Equal(t, "ESILV-A1", groups[0].Group)

	// carol's membership is unverified, so only alice and bob qualify
	require.Len(t, groups[0].Members, 2)
	require.Equal(t, "alice", groups[0].Members[0].UserID)
	require.True(t, groups[0].Members[0].Credentialed)
	require.Equal(t, "bob", groups[0].Members[1].UserID)
	require.False(t, groups[0].Members[1].Credentialed)
}

func TestCredentialRoundtrip(t *testing.T) {
	service, cleanup := setup(t)
	defer cleanup()

	ctx := context.Background()

	// unknown user resolves to zero credentials, not an error
	creds, err := service.Resolve(ctx, "nobody")
	require.NoError(t, err)
	require.True(t, creds.IsZero())

	want := keychain.Credentials{
		Email:    "alice@edu.devinci.fr",
		Password: "secret",
	}
	require.NoError(t, service.SetCredentials(ctx, "alice", want))

	creds, err = service.Resolve(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, want, creds)
}

func TestResolveUserWithoutCredentials(t *testing.T) {
	service, cleanup := setup(t)
	defer cleanup()

	ctx := context.Background()

	require.NoError(t, service.UpsertMembership(ctx, "bob", "ESILV-A1", true))

	creds, err := service.Resolve(ctx, "bob")
	require.NoError(t, err)
	require.True(t, creds.IsZero())
}
