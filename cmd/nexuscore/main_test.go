package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildRootCmdIncludesSubcommands(t *testing.T) {
	cmd := buildRootCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}

	required := []string{"init", "chat", "gateway", "vault", "schedule", "rollback", "identity"}
	for _, name := range required {
		require.True(t, names[name], "expected subcommand %q to be registered", name)
	}
}

func TestDefaultConfigPath(t *testing.T) {
	t.Setenv("NEXUSCORE_CONFIG", "")
	require.Equal(t, "./nexuscore.yaml", defaultConfigPath())

	t.Setenv("NEXUSCORE_CONFIG", "/etc/nexuscore/config.yaml")
	require.Equal(t, "/etc/nexuscore/config.yaml", defaultConfigPath())
}
