package account

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ClientIDPath returns the device identifier file path for an account.
func ClientIDPath(name string) string {
	return filepath.Join(Dir(name), "client_id")
}

// ClientID returns the stable device identifier for an account, generating
// and persisting one on first use. The backend uses it to distinguish this
// client's push connections from the same user's other devices.
func ClientID(name string) (string, error) {
	path := ClientIDPath(name)
	if data, err := os.ReadFile(path); err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id, nil
		}
	}

	if err := EnsureDir(name); err != nil {
		return "", err
	}
	id := uuid.NewString()
	if err := os.WriteFile(path, []byte(id+"\n"), 0600); err != nil {
		return "", err
	}
	return id, nil
}
