package security

import (
	"crypto/subtle"
	"strings"
)

// Credentials maps basic-auth usernames to passwords. A password may be stored
// in the clear or as an Argon2id hash produced by HashPassword.
type Credentials map[string]string

// Verify reports whether user and password match an entry. An empty set of
// credentials accepts everything.
func (c Credentials) Verify(user, password string) bool {
	if len(c) == 0 {
		return true
	}
	stored, ok := c[user]
	if !ok {
		// burn comparable time for unknown users
		subtle.ConstantTimeCompare([]byte(password), []byte(password))
		return false
	}
	if IsHash(stored) {
		ok, err := VerifyPassword(stored, password)
		return err == nil && ok
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(password)) == 1
}

// Enabled reports whether any credentials are configured.
func (c Credentials) Enabled() bool { return len(c) > 0 }

// IsHash reports whether s looks like an encoded Argon2id hash.
func IsHash(s string) bool {
	return strings.HasPrefix(s, "$argon2id$")
}

// ParseCredentials parses "user:pass" entries, as given on the command line or
// in the environment. Entries without a colon are ignored.
func ParseCredentials(entries []string) Credentials {
	creds := Credentials{}
	for _, e := range entries {
		e = strings.TrimSpace(e)
		user, pass, ok := strings.Cut(e, ":")
		if !ok || user == "" {
			continue
		}
		creds[user] = pass
	}
	return creds
}
