package secrets

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	// “Service” groups the engine's secrets in the OS keychain.
	KeyringService = "scrapdeouf"
)

// GetProxyPassword looks up the password for a proxy endpoint whose
// config entry omits it, keeping credentials out of config.yml.
func GetProxyPassword(keyringAccount string) (string, error) {
	if strings.TrimSpace(keyringAccount) != "" {
		pw, err := keyring.Get(KeyringService, keyringAccount)
		if err == nil && strings.TrimSpace(pw) != "" {
			return pw, nil
		}
	}
	return "", errors.New("proxy password not found (set it in keychain or inline in config)")
}

func SetProxyPassword(keyringAccount string, password string) error {
	if strings.TrimSpace(keyringAccount) == "" {
		return errors.New("keyring account name is empty")
	}
	if strings.TrimSpace(password) == "" {
		return errors.New("password is empty")
	}
	return keyring.Set(KeyringService, keyringAccount, password)
}

func DeleteProxyPassword(keyringAccount string) error {
	if strings.TrimSpace(keyringAccount) == "" {
		return errors.New("keyring account name is empty")
	}
	return keyring.Delete(KeyringService, keyringAccount)
}

func ProxyKeyringAccount(username, host string, port int) string {
	return fmt.Sprintf("scrapdeouf:proxy:%s@%s:%d", username, host, port)
}
