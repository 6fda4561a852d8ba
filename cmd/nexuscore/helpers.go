package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/nexuscore/agentcore/internal/config"
	"github.com/nexuscore/agentcore/internal/vault"
)

// loadConfig reads and validates the YAML config at configPath, mapping any
// failure to the configuration-error exit code (spec.md §6.4).
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, configErr(err)
	}
	return cfg, nil
}

// unlockVault prompts for the vault password on the controlling terminal
// (never echoed) and unlocks it, mapping authentication failure to the
// vault exit code.
func unlockVault(cfg *config.Config) (*vault.Vault, error) {
	v := vault.New(cfg.Vault.BlobPath, cfg.Vault.SaltPath)
	password, err := readPassword("vault password: ")
	if err != nil {
		return nil, startupErr(fmt.Errorf("read password: %w", err))
	}
	if err := v.Unlock(password); err != nil {
		return nil, vaultAuthErr(err)
	}
	return v, nil
}

// readPassword reads a line from stdin without echoing it, when stdin is an
// interactive terminal; otherwise it falls back to a plain buffered read so
// the command still works when piped in scripts and tests.
func readPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func readLine(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
