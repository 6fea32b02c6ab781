package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jb-8200/asdlc-coord/internal/style"
)

var ackComment string

var ackCmd = &cobra.Command{
	Use:   "ack <message-id>",
	Short: "Acknowledge a coordination message",
	Args:  cobra.ExactArgs(1),
	RunE:  runAck,
}

func init() {
	ackCmd.Flags().StringVar(&ackComment, "comment", "", "optional acknowledgment comment")
}

func runAck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	client, self, _, closer, err := newClient(ctx)
	if err != nil {
		return err
	}
	defer closer()

	id := args[0]
	ok, err := client.Acknowledge(ctx, id, self, ackComment)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("message not found: %s", id)
	}
	style.PrintSuccess("acknowledged %s", id)
	return nil
}
