package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/aretw0/kvsession"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// newRootCmd builds the command tree.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "kvsession",
		Short:         "kvsession stores web-session data in memcached, Redis, memory or files",
		Long:          `kvsession manages sessions with a sliding idle timeout on top of a key-value backend.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringP("config", "c", "", "Settings file (YAML or JSON, default ./kvsession.yaml)")
	rootCmd.PersistentFlags().String("backend", "", "Override the backend (memcached, redis, memory, file)")
	rootCmd.PersistentFlags().Bool("ask-password", false, "Prompt for the memcached password")

	rootCmd.AddCommand(
		newServeCmd(),
		newMCPCmd(),
		newSessionCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, styleError("Error: "+err.Error()))
		os.Exit(1)
	}
}

// loadSettings applies the settings file, environment and command-line overrides.
func loadSettings(cmd *cobra.Command) (kvsession.Settings, error) {
	path, _ := cmd.Flags().GetString("config")
	settings, err := kvsession.LoadSettings(path)
	if err != nil {
		return settings, err
	}

	if backend, _ := cmd.Flags().GetString("backend"); backend != "" {
		settings.Backend = backend
	}
	if ask, _ := cmd.Flags().GetBool("ask-password"); ask {
		pw, err := readPassword(cmd, "Memcached password: ")
		if err != nil {
			return settings, err
		}
		settings.Memcached.Password = pw
	}
	return settings, settings.Validate()
}

// getService builds a Service from the command's settings.
func getService(cmd *cobra.Command) (*kvsession.Service, error) {
	settings, err := loadSettings(cmd)
	if err != nil {
		return nil, err
	}
	return kvsession.New(settings)
}

// readPassword reads a secret without echo when stdin is a terminal.
func readPassword(cmd *cobra.Command, prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(cmd.ErrOrStderr(), prompt)
		pw, err := term.ReadPassword(fd)
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(pw), nil
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
