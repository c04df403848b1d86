package contacts_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tartampluch/go-birthday-reminders/internal/config"
	"github.com/tartampluch/go-birthday-reminders/internal/contacts"
	"github.com/zalando/go-keyring"
)

func TestKeyringCredentials(t *testing.T) {
	keyring.MockInit()

	creds := contacts.NewKeyringCredentials()
	assert.Equal(t, config.KeyringService, creds.Service)

	pass, err := creds.Password("me")
	require.NoError(t, err)
	assert.Empty(t, pass, "Missing entries read as an empty password")

	require.NoError(t, creds.SetPassword("me", "s3cret"))
	pass, err = creds.Password("me")
	require.NoError(t, err)
	assert.Equal(t, "s3cret", pass)
}

func TestKeyringCredentials_Failure(t *testing.T) {
	keyring.MockInitWithError(assert.AnError)

	creds := contacts.NewKeyringCredentials()
	_, err := creds.Password("me")
	require.Error(t, err)
	assert.Contains(t, err.Error(), config.ErrCredentialsRead)

	err = creds.SetPassword("me", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), config.ErrCredentialsStore)
}
