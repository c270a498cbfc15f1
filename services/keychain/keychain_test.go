package keychain

import (
	"context"
	"testing"

	"bookmark-extract/lib/telemetry"

	"github.com/stretchr/testify/require"
)

func TestKeychain(t *testing.T) {
	defer telemetry.SetupForTesting(t, "keychain")()

	kc, err := Open(":memory:")
	require.NoError(t, err)
	defer kc.Close()

	ctx := context.Background()

	_, err = kc.Get(ctx, "alice")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, kc.Set(ctx, Credential{Username: "alice", Password: "hunter2"}))

	cred, err := kc.Get(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, "hunter2", cred.Password)

	// updating overwrites
	require.NoError(t, kc.Set(ctx, Credential{Username: "alice", Password: "correct horse"}))
	cred, err = kc.Get(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, "correct horse", cred.Password)

	require.NoError(t, kc.Delete(ctx, "alice"))
	_, err = kc.Get(ctx, "alice")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLatest(t *testing.T) {
	kc, err := Open(":memory:")
	require.NoError(t, err)
	defer kc.Close()

	ctx := context.Background()

	_, err = kc.Latest(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, kc.Set(ctx, Credential{Username: "alice", Password: "a"}))
	require.NoError(t, kc.Set(ctx, Credential{Username: "bob", Password: "b"}))

	// both rows share a second-resolution timestamp, so accept either,
	// but it must be a stored credential
	cred, err := kc.Latest(ctx)
	require.NoError(t, err)
	require.Contains(t, []string{"alice", "bob"}, cred.Username)
}
