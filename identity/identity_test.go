package identity_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/compareai/compare-client/identity"
)

func TestValidateUsername(t *testing.T) {
	require.NoError(t, identity.ValidateUsername("alice"))
	require.NoError(t, identity.ValidateUsername("  alice  ")) // trimmed before checking

	require.Error(t, identity.ValidateUsername(""))
	require.Error(t, identity.ValidateUsername("   "))
	require.Error(t, identity.ValidateUsername("ab"))
	require.Error(t, identity.ValidateUsername(strings.Repeat("a", identity.MaxUsernameLength+1)))
	require.Error(t, identity.ValidateUsername("no spaces"))
}

func TestValidateUsernameCountsCharactersNotBytes(t *testing.T) {
	// "éé" is 4 bytes but only 2 characters: below the minimum.
	require.Error(t, identity.ValidateUsername("éé"))

	// At the maximum in characters, even though twice that in bytes.
	require.NoError(t, identity.ValidateUsername(strings.Repeat("é", identity.MaxUsernameLength)))
	require.NoError(t, identity.ValidateUsername("héllo"))
}

func TestValidatePassword(t *testing.T) {
	require.NoError(t, identity.ValidatePassword("secret1"))

	require.Error(t, identity.ValidatePassword(""))
	require.Error(t, identity.ValidatePassword("short"))
	require.Error(t, identity.ValidatePassword(strings.Repeat("p", identity.MaxPasswordLength+1)))

	// Bounds are in characters, not bytes.
	require.Error(t, identity.ValidatePassword("ééé"))
	require.NoError(t, identity.ValidatePassword(strings.Repeat("é", identity.MaxPasswordLength)))
}

func TestCredentialsValidate(t *testing.T) {
	require.NoError(t, identity.Credentials{Username: "alice", Password: "secret1"}.Validate())
	require.Error(t, identity.Credentials{Username: "", Password: "secret1"}.Validate())
	require.Error(t, identity.Credentials{Username: "alice", Password: ""}.Validate())
}
