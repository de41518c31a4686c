package account

import (
	"fmt"
	"regexp"

	"github.com/glowstudio-app/glowchat/internal/config"
)

const DefaultAccountName = "main"

var nameRegexp = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

// ValidateName checks that name conforms to account naming rules.
func ValidateName(name string) error {
	if !nameRegexp.MatchString(name) {
		return fmt.Errorf("invalid account name %q: must match ^[a-z0-9_-]{1,64}$", name)
	}
	return nil
}

// Resolve determines the active account name using precedence:
// 1. flagOverride (--account flag)
// 2. config.toml default_account
// 3. "main"
func Resolve(flagOverride string) string {
	if flagOverride != "" {
		return flagOverride
	}
	cfg, err := config.Load(ConfigPath())
	if err == nil && cfg.DefaultAccount != "" {
		return cfg.DefaultAccount
	}
	return DefaultAccountName
}
