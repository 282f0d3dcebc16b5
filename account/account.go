// Package account loads the accounts file: a JSON5 array of credentials
// with optional per-account browser overrides.
package account

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"regexp"

	"github.com/titanous/json5"
)

// ErrTemplateWritten is returned when the accounts file was missing and a
// template was written in its place. The caller should stop and let the
// user fill it in.
var ErrTemplateWritten = errors.New("account: accounts file not found, template written")

// ErrNoAccounts is returned when the file holds no valid account.
var ErrNoAccounts = errors.New("account: no valid accounts")

// Account is one rewards account.
type Account struct {
	Username string `json:"username"`
	Password string `json:"password"`
	// Proxy, Lang and Geo override the global settings for this account.
	Proxy string `json:"proxy,omitempty"`
	Lang  string `json:"lang,omitempty"`
	Geo   string `json:"geo,omitempty"`
}

// String never includes the password.
func (a Account) String() string { return a.Username }

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+$`)

// ValidEmail reports whether s looks like an email address.
func ValidEmail(s string) bool { return emailPattern.MatchString(s) }

// Options tunes Load.
type Options struct {
	// Shuffle randomises account order. Nil uses a time-seeded source;
	// set NoShuffle to keep file order.
	Rand      *rand.Rand
	NoShuffle bool
	Logger    *slog.Logger
}

// Load reads path. A missing file is replaced by a template and
// ErrTemplateWritten is returned. Accounts with an invalid username are
// skipped with a warning.
func Load(path string, opts Options) ([]Account, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		if err := WriteTemplate(path); err != nil {
			return nil, err
		}
		logger.Warn("account: accounts file not found, template written; edit it with your credentials", "path", path)
		return nil, ErrTemplateWritten
	}
	if err != nil {
		return nil, fmt.Errorf("account: read %s: %w", path, err)
	}

	var raw []Account
	if err := json5.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("account: parse %s: %w", path, err)
	}

	accounts := make([]Account, 0, len(raw))
	for _, a := range raw {
		if !ValidEmail(a.Username) {
			logger.Warn("account: invalid email, skipping", "username", a.Username)
			continue
		}
		accounts = append(accounts, a)
	}
	if len(accounts) == 0 {
		return nil, ErrNoAccounts
	}

	if !opts.NoShuffle {
		rnd := opts.Rand
		if rnd == nil {
			rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		}
		rnd.Shuffle(len(accounts), func(i, j int) { accounts[i], accounts[j] = accounts[j], accounts[i] })
	}
	return accounts, nil
}

// WriteTemplate writes a one-entry accounts file to path.
func WriteTemplate(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("account: create dir: %w", err)
		}
	}
	tmpl, err := json.MarshalIndent([]Account{{Username: "Your Email", Password: "Your Password"}}, "", "    ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append(tmpl, '\n'), 0o600); err != nil {
		return fmt.Errorf("account: write template: %w", err)
	}
	return nil
}
