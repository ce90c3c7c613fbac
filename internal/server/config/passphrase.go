package config

import (
	"fmt"
	"os"

	"golang.org/x/term"
)

// ResolvePassphrase returns the key-sealing passphrase, prompting on the
// terminal when it was not provided via environment or .env file. The
// passphrase itself is never echoed or logged.
func ResolvePassphrase(cfg *Config) (string, error) {
	if cfg.Passphrase != "" {
		return cfg.Passphrase, nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("key passphrase is required (set KEY_PASSPHRASE or run interactively)")
	}

	fmt.Fprint(os.Stderr, "Key passphrase: ")
	pass, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read passphrase: %w", err)
	}
	if len(pass) == 0 {
		return "", fmt.Errorf("empty passphrase")
	}
	return string(pass), nil
}
