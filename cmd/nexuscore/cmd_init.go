package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nexuscore/agentcore/internal/config"
	"github.com/nexuscore/agentcore/internal/storage"
	"github.com/nexuscore/agentcore/internal/vault"
	"github.com/nexuscore/agentcore/pkg/models"
)

// buildInitCmd creates the "init" command: first-boot setup that writes a
// default config file, creates the data directory, seals a fresh vault, and
// writes the single identity row (spec.md §3, §6.4).
func buildInitCmd() *cobra.Command {
	var creator string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a fresh data directory, vault, config, and identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, creator)
		},
	}
	cmd.Flags().StringVar(&creator, "creator", "", "Name/handle of the agent's creator (immutable thereafter)")
	return cmd
}

func runInit(cmd *cobra.Command, creator string) error {
	out := cmd.OutOrStdout()

	if _, err := os.Stat(configPath); err == nil {
		return configErr(fmt.Errorf("config already exists at %s", configPath))
	}

	cfg := config.Default()
	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		return startupErr(fmt.Errorf("create data dir: %w", err))
	}
	if err := config.Save(cfg, configPath); err != nil {
		return startupErr(fmt.Errorf("write config: %w", err))
	}
	fmt.Fprintf(out, "wrote config to %s\n", configPath)

	password, err := readPassword("set a new vault password: ")
	if err != nil {
		return startupErr(fmt.Errorf("read password: %w", err))
	}
	v := vault.New(cfg.Vault.BlobPath, cfg.Vault.SaltPath)
	if err := v.Init(password); err != nil {
		return startupErr(fmt.Errorf("init vault: %w", err))
	}
	fmt.Fprintf(out, "sealed a new vault at %s\n", cfg.Vault.BlobPath)

	if creator == "" {
		creator, err = readLine("creator name: ")
		if err != nil {
			return startupErr(fmt.Errorf("read creator: %w", err))
		}
	}

	stores, err := storage.OpenSQLite(cfg.Storage.DataDir + "/" + cfg.Storage.StoreFile)
	if err != nil {
		return startupErr(fmt.Errorf("open storage: %w", err))
	}
	defer stores.Close()

	if err := stores.Identity.Init(cmd.Context(), &models.Identity{Creator: creator}); err != nil {
		return startupErr(fmt.Errorf("init identity: %w", err))
	}
	fmt.Fprintf(out, "initialized identity (creator=%s)\n", creator)
	return nil
}
