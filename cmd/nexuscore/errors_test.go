package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExitCodeFor(t *testing.T) {
	require.Equal(t, exitOK, exitCodeFor(nil))

	base := errors.New("boom")
	require.Equal(t, exitConfigError, exitCodeFor(configErr(base)))
	require.Equal(t, exitVaultAuthError, exitCodeFor(vaultAuthErr(base)))
	require.Equal(t, exitStartupFailure, exitCodeFor(startupErr(base)))
	require.Equal(t, exitFatalShutdown, exitCodeFor(fatalShutdownErr(base)))

	require.Equal(t, 1, exitCodeFor(base))
}

func TestCategorizedErrorUnwraps(t *testing.T) {
	base := errors.New("vault locked")
	wrapped := vaultAuthErr(base)

	require.True(t, errors.Is(wrapped, base))
	require.Equal(t, base.Error(), wrapped.Error())
}
