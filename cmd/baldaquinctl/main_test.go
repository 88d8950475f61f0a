package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunCompletesOneCycle(t *testing.T) {
	root := t.TempDir()
	err := run([]string{"--root", root, "--packets", "10", "--stats-interval", "5ms"})
	require.NoError(t, err)
}

func TestRunRejectsUnknownFlag(t *testing.T) {
	err := run([]string{"-not-a-flag"})
	require.Error(t, err)
}
