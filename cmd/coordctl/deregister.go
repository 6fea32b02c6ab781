package main

import (
	"github.com/spf13/cobra"

	"github.com/jb-8200/asdlc-coord/internal/style"
)

var deregisterCmd = &cobra.Command{
	Use:   "deregister",
	Short: "Deregister this instance's presence",
	RunE:  runDeregister,
}

func runDeregister(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	client, self, _, closer, err := newClient(ctx)
	if err != nil {
		return err
	}
	defer closer()

	if err := client.Unregister(ctx, self); err != nil {
		return err
	}
	style.PrintSuccess("deregistered %s", self)
	return nil
}
