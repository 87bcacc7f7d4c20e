package svnlib

import (
	"fmt"
	"strings"
)

const redacted = "<redacted>"

// Auth carries credentials for the backend. The scm package passes it through untouched.
type Auth struct {
	Username       string
	Password       string
	PrivateKeyPath string
	Passphrase     string
}

// Args returns the svn command-line flags for the credentials. The password
// itself is read from standard input, see Stdin.
func (a Auth) Args() []string {
	var args []string

	if a.Username != "" {
		args = append(args, "--username", a.Username)
	}

	if a.Password != "" {
		args = append(args, "--password-from-stdin")
	}

	return args
}

// Stdin returns what must be written to the svn process input.
func (a Auth) Stdin() string {
	return a.Password
}

// Env returns extra environment variables for the svn process.
// A private key is handed to the ssh tunnel through SVN_SSH.
func (a Auth) Env() []string {
	if a.PrivateKeyPath == "" {
		return nil
	}

	tunnel := fmt.Sprintf("ssh -i %q", a.PrivateKeyPath)
	if a.Username != "" {
		tunnel += " -l " + a.Username
	}

	return []string{"SVN_SSH=" + tunnel}
}

// Secrets returns the values that must never appear in logs or errors.
func (a Auth) Secrets() []string {
	var secrets []string

	for _, s := range []string{a.Password, a.Passphrase} {
		if s != "" {
			secrets = append(secrets, s)
		}
	}

	return secrets
}

// Redact replaces every secret in s.
func (a Auth) Redact(s string) string {
	for _, secret := range a.Secrets() {
		s = strings.ReplaceAll(s, secret, redacted)
	}

	return s
}

// String never prints the password or passphrase.
func (a Auth) String() string {
	password := ""
	if a.Password != "" {
		password = redacted
	}

	return fmt.Sprintf("Auth{user=%q password=%q key=%q}", a.Username, password, a.PrivateKeyPath)
}
