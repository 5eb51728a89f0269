package admin

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Auth guards the admin terminals with one shared password. The file
// holds the hex-encoded SHA-256 digest, so the stdin terminal, the
// socket console and the file terminal all check the same secret.
type Auth struct {
	file string
}

// NewAuth returns an Auth backed by the given digest file.
func NewAuth(file string) *Auth {
	return &Auth{file: file}
}

// Available reports whether an admin password has been set.
func (a *Auth) Available() bool {
	_, err := os.Stat(a.file)
	return err == nil
}

// Set hashes the password and writes the digest file.
func (a *Auth) Set(password string) error {
	sum := sha256.Sum256([]byte(password))
	digest := hex.EncodeToString(sum[:])
	if err := os.WriteFile(a.file, []byte(digest), 0o600); err != nil {
		return fmt.Errorf("writing admin password file: %w", err)
	}
	return nil
}

// Match checks the password against the stored digest.
func (a *Auth) Match(password string) (bool, error) {
	saved, err := os.ReadFile(a.file)
	if err != nil {
		return false, fmt.Errorf("reading admin password file: %w", err)
	}
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:]) == strings.TrimSpace(string(saved)), nil
}

// ValidatePassword runs the strength checks a new admin password must
// pass, reporting each passed test through out. The returned error
// names the first failed check.
func ValidatePassword(password string, out func(string)) error {
	if utf8.RuneCountInString(password) < 8 {
		return errors.New("the password is shorter than eight characters")
	}
	out("Test #1. Password length is greater than or equal to eight")

	if !strings.ContainsFunc(password, unicode.IsUpper) {
		return errors.New("the password does not contain an uppercase character")
	}
	out("Test #2. The password contains at least one uppercase character")

	if !strings.ContainsFunc(password, unicode.IsDigit) {
		return errors.New("the password does not contain a digit")
	}
	out("Test #3. The password contains at least one digit.")

	return nil
}

// Login prompts for the password once. A wrong password returns
// (false, nil) so the caller can prompt again.
func (a *Auth) Login(out func(string), in func(string) (string, error)) (bool, error) {
	password, err := in("Enter your password: ")
	if err != nil {
		return false, err
	}
	if password == "" {
		return false, nil
	}

	ok, err := a.Match(password)
	if err != nil {
		return false, err
	}
	if ok {
		out("You have successfully logged in as admin.")
	}
	return ok, nil
}

// Register walks the first-run dialog: pick a password that passes the
// strength checks, confirm it, store the digest.
func (a *Auth) Register(out func(string), in func(string) (string, error)) error {
	for {
		password, err := in("Enter your password to log in to the admin panel later: ")
		if err != nil {
			return err
		}
		if err := ValidatePassword(password, out); err != nil {
			out(fmt.Sprintf("Test failed: %v", err))
			continue
		}

		confirm, err := in("Enter your password again to confirm it: ")
		if err != nil {
			return err
		}
		if confirm != password {
			out("Your entered passwords do not match!")
			continue
		}

		if err := a.Set(password); err != nil {
			return err
		}
		out("The password has been successfully confirmed and set")
		return nil
	}
}

// EnsureAccess gates a terminal behind the password: the very first
// run registers one, later runs prompt until the entered password
// matches. in errors abort the dialog.
func (a *Auth) EnsureAccess(out func(string), in func(string) (string, error)) error {
	if !a.Available() {
		return a.Register(out, in)
	}
	for {
		ok, err := a.Login(out, in)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
}
