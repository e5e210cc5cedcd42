// pulsebar is a module-driven status bar for Wayland desktops.
//
// It runs configurable status modules (clock, workspaces, volume,
// battery, tray, scripts and more) and renders them either as an
// interactive terminal bar or as an i3bar/swaybar JSON stream that
// swaybar-compatible bars consume. A per-user control socket lets
// scripts flip visibility, set variables and drive popups; see
// `pulsebar --help` for the command set.
package main

import "gitlab.com/tinyland/lab/pulsebar/pkg/cli"

func main() {
	cli.Execute()
}
