package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// buildVaultCmd creates the "vault" command group (spec.md §6.4: "vault
// set|get|list|delete|rotate").
func buildVaultCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vault",
		Short: "Manage the credential vault",
	}
	cmd.AddCommand(
		buildVaultSetCmd(),
		buildVaultGetCmd(),
		buildVaultListCmd(),
		buildVaultDeleteCmd(),
		buildVaultRotateCmd(),
	)
	return cmd
}

func buildVaultSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key>",
		Short: "Store a secret under a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			v, err := unlockVault(cfg)
			if err != nil {
				return err
			}
			defer v.Close()
			value, err := readPassword(fmt.Sprintf("value for %q: ", args[0]))
			if err != nil {
				return startupErr(err)
			}
			if err := v.Set(args[0], value); err != nil {
				return startupErr(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored %q\n", args[0])
			return nil
		},
	}
}

func buildVaultGetCmd() *cobra.Command {
	var reveal bool
	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Retrieve a secret's value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			v, err := unlockVault(cfg)
			if err != nil {
				return err
			}
			defer v.Close()
			value, err := v.Get(args[0])
			if err != nil {
				return startupErr(err)
			}
			if reveal {
				fmt.Fprintln(cmd.OutOrStdout(), value)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), strings.Repeat("*", len(value)))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&reveal, "reveal", false, "Print the plaintext value instead of masking it")
	return cmd
}

func buildVaultListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored secret keys (never values)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			v, err := unlockVault(cfg)
			if err != nil {
				return err
			}
			defer v.Close()
			keys, err := v.List()
			if err != nil {
				return startupErr(err)
			}
			for _, k := range keys {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		},
	}
}

func buildVaultDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "Remove a secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			v, err := unlockVault(cfg)
			if err != nil {
				return err
			}
			defer v.Close()
			if err := v.Delete(args[0]); err != nil {
				return startupErr(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %q\n", args[0])
			return nil
		},
	}
}

func buildVaultRotateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rotate",
		Short: "Re-encrypt the vault under a new password",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			v, err := unlockVault(cfg)
			if err != nil {
				return err
			}
			defer v.Close()
			newPassword, err := readPassword("new vault password: ")
			if err != nil {
				return startupErr(err)
			}
			if err := v.Rotate(newPassword); err != nil {
				return startupErr(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "vault rotated")
			return nil
		},
	}
}
