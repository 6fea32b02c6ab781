// Package main implements coordctl, the coordination broker's
// command-line client: publish/check/ack/presence/notifications/
// register/deregister/heartbeat talk to the same broker state the
// tool host does; launch/teardown drive session lifecycle; gate
// exposes the two local interceptors; dashboard opens the TUI viewer.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/jb-8200/asdlc-coord/internal/style"
)

var rootCmd = &cobra.Command{
	Use:           "coordctl",
	Short:         "Coordination broker command-line client",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		style.PrintError("%v", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(
		publishCmd,
		checkCmd,
		ackCmd,
		presenceCmd,
		notificationsCmd,
		registerCmd,
		deregisterCmd,
		heartbeatCmd,
		launchCmd,
		teardownCmd,
		gateCmd,
		dashboardCmd,
	)
}
