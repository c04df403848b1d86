package contacts

import (
	"errors"
	"fmt"

	"github.com/tartampluch/go-birthday-reminders/internal/config"
	"github.com/zalando/go-keyring"
)

// Credentials resolves the password of a contact source account.
type Credentials interface {
	Password(user string) (string, error)
}

// KeyringCredentials stores passwords in the OS keyring under Service.
type KeyringCredentials struct {
	Service string
}

// NewKeyringCredentials uses the application's keyring service name.
func NewKeyringCredentials() KeyringCredentials {
	return KeyringCredentials{Service: config.KeyringService}
}

// Password returns the stored password for user. A missing entry is an empty password.
func (k KeyringCredentials) Password(user string) (string, error) {
	p, err := keyring.Get(k.Service, user)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", config.ErrCredentialsRead, err)
	}
	return p, nil
}

// SetPassword stores pass for user, replacing any previous value.
func (k KeyringCredentials) SetPassword(user, pass string) error {
	if err := keyring.Set(k.Service, user, pass); err != nil {
		return fmt.Errorf("%s: %w", config.ErrCredentialsStore, err)
	}
	return nil
}
