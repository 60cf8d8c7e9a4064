package main

import (
	"errors"
	"os"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/require"
)

const helperEnv = "PARLEY_MAIN_HELPER"

func TestMainExitCodes(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		exitCode int
		contains string
	}{
		{name: "help", args: []string{"--help"}, contains: "Usage:"},
		{name: "version", args: []string{"--version"}, contains: "parley dev"},
		{name: "unknown command", args: []string{"not-a-command"}, exitCode: 2, contains: "unknown command"},
		{name: "bad call flag", args: []string{"call", "--mode", "panel"}, exitCode: 2, contains: "--mode"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			output, err := runHelper(t, tc.args...)
			require.Contains(t, string(output), tc.contains)

			if tc.exitCode == 0 {
				require.NoError(t, err, string(output))
				return
			}
			var exitErr *exec.ExitError
			require.True(t, errors.As(err, &exitErr), "%v", err)
			require.Equal(t, tc.exitCode, exitErr.ExitCode())
		})
	}
}

func TestMainHelperProcess(t *testing.T) {
	if os.Getenv(helperEnv) != "1" {
		return
	}
	for i, arg := range os.Args {
		if arg == "--" {
			os.Exit(run(os.Args[i+1:]))
		}
	}
	os.Exit(run(nil))
}

func runHelper(t *testing.T, args ...string) ([]byte, error) {
	t.Helper()

	cmd := exec.Command(os.Args[0], append([]string{"-test.run=^TestMainHelperProcess$", "--"}, args...)...)
	cmd.Env = append(os.Environ(), helperEnv+"=1")
	return cmd.CombinedOutput()
}
