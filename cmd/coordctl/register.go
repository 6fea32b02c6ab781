package main

import (
	"github.com/spf13/cobra"

	"github.com/jb-8200/asdlc-coord/internal/style"
)

var registerSessionID string

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register this instance as present",
	RunE:  runRegister,
}

func init() {
	registerCmd.Flags().StringVar(&registerSessionID, "session-id", "", "optional session identifier")
}

func runRegister(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	client, self, _, closer, err := newClient(ctx)
	if err != nil {
		return err
	}
	defer closer()

	if err := client.Register(ctx, self, registerSessionID); err != nil {
		return err
	}
	style.PrintSuccess("registered %s", self)
	return nil
}
