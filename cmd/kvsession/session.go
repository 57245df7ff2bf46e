package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/kvsession/pkg/domain"
	"github.com/spf13/cobra"
)

// ErrSessionNotFound is returned by session get when the ID is unknown or expired.
var ErrSessionNotFound = errors.New("session not found")

func newSessionCmd() *cobra.Command {
	sessionCmd := &cobra.Command{
		Use:   "session",
		Short: "Manage stored sessions",
		Long:  `Create, inspect, update and remove sessions in the configured backend.`,
	}
	sessionCmd.AddCommand(
		newSessionCreateCmd(),
		newSessionGetCmd(),
		newSessionSetCmd(),
		newSessionRmCmd(),
	)
	return sessionCmd
}

func newSessionCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create [name=value]...",
		Short: "Create a session, optionally with attributes",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := getService(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			data := svc.Storage().Create()
			for _, arg := range args {
				name, value, err := parseAssignment(arg)
				if err != nil {
					return err
				}
				data.Put(name, value)
			}
			if err := svc.Storage().Save(cmd.Context(), data); err != nil {
				return err
			}

			quiet, _ := cmd.Flags().GetBool("quiet")
			if quiet {
				fmt.Fprintln(cmd.OutOrStdout(), data.ID())
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), styleOK("Created session ")+data.ID())
			return nil
		},
	}
	cmd.Flags().BoolP("quiet", "q", false, "Print only the session ID")
	return cmd
}

func newSessionGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <session-id>",
		Short: "Print a session as JSON (renews its idle timeout)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := getService(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			data, found, err := svc.Storage().Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("%w: %s", ErrSessionNotFound, args[0])
			}
			return printSession(cmd.OutOrStdout(), data)
		},
	}
}

func newSessionSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <session-id> name=value...",
		Short: "Set attributes on an existing session (empty value removes)",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := getService(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			data, err := svc.Manager().Update(cmd.Context(), args[0], func(d *domain.SessionData) error {
				for _, arg := range args[1:] {
					name, value, err := parseAssignment(arg)
					if err != nil {
						return err
					}
					d.Put(name, value)
				}
				return nil
			})
			if err != nil {
				return err
			}
			return printSession(cmd.OutOrStdout(), data)
		},
	}
}

func newSessionRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <session-id>...",
		Short: "Remove one or more sessions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := getService(cmd)
			if err != nil {
				return err
			}
			defer svc.Close()

			var errs []error
			for _, id := range args {
				if err := svc.Storage().Delete(cmd.Context(), id); err != nil {
					errs = append(errs, fmt.Errorf("removing '%s': %w", id, err))
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed session '%s'\n", id)
			}
			return errors.Join(errs...)
		},
	}
}

// parseAssignment splits name=value. The value is decoded as JSON when possible,
// otherwise kept as a string; an empty value yields nil.
func parseAssignment(arg string) (string, any, error) {
	name, raw, ok := strings.Cut(arg, "=")
	if !ok || name == "" {
		return "", nil, fmt.Errorf("invalid attribute %q: want name=value", arg)
	}
	if raw == "" {
		return name, nil, nil
	}
	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return name, raw, nil
	}
	return name, value, nil
}

func printSession(w io.Writer, data *domain.SessionData) error {
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	fmt.Fprintln(w, styleHeader("Session "+data.ID()))
	fmt.Fprintln(w, string(out))
	return nil
}
