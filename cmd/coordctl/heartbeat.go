package main

import (
	"github.com/spf13/cobra"

	"github.com/jb-8200/asdlc-coord/internal/style"
)

var heartbeatCmd = &cobra.Command{
	Use:   "heartbeat",
	Short: "Refresh this instance's heartbeat",
	RunE:  runHeartbeat,
}

func runHeartbeat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	client, self, _, closer, err := newClient(ctx)
	if err != nil {
		return err
	}
	defer closer()

	if err := client.Heartbeat(ctx, self); err != nil {
		return err
	}
	style.PrintSuccess("heartbeat %s", self)
	return nil
}
