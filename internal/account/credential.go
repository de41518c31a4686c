package account

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role is the backend-assigned user role.
type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleCustomer Role = "CUSTOMER"
)

// Profile is the authenticated user as returned by the backend at login.
type Profile struct {
	ID          int64  `json:"id"`
	Email       string `json:"email"`
	FullName    string `json:"fullName"`
	PhoneNumber string `json:"phoneNumber"`
	Role        Role   `json:"role"`
}

// Credential is the cached bearer token plus the profile it belongs to.
type Credential struct {
	Token   string  `json:"token"`
	Profile Profile `json:"user"`
}

// ErrNoCredential is returned when no cached credential exists for an account.
var ErrNoCredential = errors.New("no cached credential; run `glowctl login` first")

// LoadCredential reads the cached credential for an account.
func LoadCredential(name string) (*Credential, error) {
	data, err := os.ReadFile(TokenPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoCredential
		}
		return nil, fmt.Errorf("read credential: %w", err)
	}
	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return nil, fmt.Errorf("decode credential: %w", err)
	}
	if cred.Token == "" {
		return nil, ErrNoCredential
	}
	return &cred, nil
}

// SaveCredential writes the credential to the account dir with 0600 permissions.
func SaveCredential(name string, cred *Credential) error {
	path := TokenPath(name)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := json.Marshal(cred)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// ClearCredential removes the cached credential, if any.
func ClearCredential(name string) error {
	err := os.Remove(TokenPath(name))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Expired reports whether the token's exp claim has passed. Tokens without a
// parseable exp claim are treated as expired so the caller re-authenticates.
// The signature is not verified; the server is the authority, this is only
// an early-exit before a doomed request.
func (c *Credential) Expired(now time.Time) bool {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(c.Token, claims); err != nil {
		return true
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return true
	}
	return now.After(exp.Time)
}

// Subject returns the token's sub claim, or empty string.
func (c *Credential) Subject() string {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(c.Token, claims); err != nil {
		return ""
	}
	sub, _ := claims.GetSubject()
	return sub
}
