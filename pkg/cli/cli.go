// Package cli is the pulsebar command tree. `run` starts a bar and
// serves the control socket; everything else is a one-shot client of
// that socket so scripts and keybindings can drive a running bar.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"gitlab.com/tinyland/lab/pulsebar/pkg/ipc"
	"gitlab.com/tinyland/lab/pulsebar/pkg/theme"
)

// Version is stamped by the build.
var Version = "dev"

var (
	cfgPath  string
	sockPath string
)

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "pulsebar",
		Short:        "module-driven status bar for Wayland desktops",
		Long: "pulsebar renders configurable status modules either as an interactive\n" +
			"terminal bar or as an i3bar/swaybar JSON stream, and exposes a control\n" +
			"socket for scripting.",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (default: XDG search path)")
	root.PersistentFlags().StringVar(&sockPath, "socket", ipc.DefaultSocketPath(), "control socket path")

	root.AddCommand(
		newRunCmd(),
		newPingCmd(),
		newVarCmd(),
		newBarCmd(),
		newPopupCmd(),
		newThemesCmd(),
		newVersionCmd(),
	)
	return root
}

// Execute runs the CLI; any error exits nonzero.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// request sends one command to the running bar and prints the reply's
// data field. An error response becomes a command error, so the
// process exits nonzero.
func request(cmd *cobra.Command, name string, args map[string]string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()
	resp, err := ipc.NewClient(sockPath).Do(ctx, ipc.Request{Cmd: name, Args: args})
	if err != nil {
		return fmt.Errorf("no bar reachable at %s: %w", sockPath, err)
	}
	if !resp.OK {
		return errors.New(resp.Error)
	}
	return printData(cmd.OutOrStdout(), resp.Data)
}

// printData writes a response payload: nothing for null, bare strings
// as-is, everything else as indented JSON.
func printData(w io.Writer, data any) error {
	switch v := data.(type) {
	case nil:
		return nil
	case string:
		_, err := fmt.Fprintln(w, v)
		return err
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
}

func newPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "check that a bar is running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return request(cmd, "ping", nil)
		},
	}
}

func newVarCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "var",
		Short: "read and write bar variables",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "get NAME",
			Short: "print a variable's value",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return request(cmd, "var.get", map[string]string{"name": args[0]})
			},
		},
		&cobra.Command{
			Use:   "set NAME VALUE",
			Short: "set a variable; labels referencing it update live",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return request(cmd, "var.set", map[string]string{"name": args[0], "value": args[1]})
			},
		},
		&cobra.Command{
			Use:   "unset NAME",
			Short: "remove a variable",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return request(cmd, "var.unset", map[string]string{"name": args[0]})
			},
		},
		&cobra.Command{
			Use:   "list [PREFIX]",
			Short: "list variables, optionally under a namespace prefix",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				prefix := ""
				if len(args) == 1 {
					prefix = args[0]
				}
				return request(cmd, "var.list", map[string]string{"prefix": prefix})
			},
		},
	)
	return cmd
}

func newBarCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bar",
		Short: "control bar visibility and lifecycle",
	}
	for _, sub := range []struct {
		use, short, ipc string
	}{
		{"show", "make the bar visible", "bar.show"},
		{"hide", "hide the bar; modules keep running", "bar.hide"},
		{"toggle", "flip bar visibility", "bar.toggle"},
		{"status", "print the full bar state as JSON", "bar.status"},
		{"reload", "re-read the config file and rebuild the bar", "bar.reload"},
	} {
		name := sub.ipc
		cmd.AddCommand(&cobra.Command{
			Use:   sub.use,
			Short: sub.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return request(cmd, name, nil)
			},
		})
	}
	return cmd
}

func newPopupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "popup",
		Short: "open and close module popups",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "open MODULE",
			Short: "open a module's popup",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return request(cmd, "popup.open", map[string]string{"module": args[0]})
			},
		},
		&cobra.Command{
			Use:   "close",
			Short: "close the open popup",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return request(cmd, "popup.close", nil)
			},
		},
		&cobra.Command{
			Use:   "toggle MODULE",
			Short: "toggle a module's popup",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return request(cmd, "popup.toggle", map[string]string{"module": args[0]})
			},
		},
	)
	return cmd
}

func newThemesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "themes",
		Short: "list the available theme names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range theme.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print the pulsebar version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "pulsebar %s\n", Version)
		},
	}
}
