package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jb-8200/asdlc-coord/internal/message"
)

var (
	publishType        string
	publishSubject     string
	publishDescription string
	publishTo          string
	publishRequiresAck bool
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish a coordination message",
	RunE:  runPublish,
}

func init() {
	publishCmd.Flags().StringVar(&publishType, "type", "", "message type (required)")
	publishCmd.Flags().StringVar(&publishSubject, "subject", "", "short subject line")
	publishCmd.Flags().StringVar(&publishDescription, "description", "", "message body")
	publishCmd.Flags().StringVar(&publishTo, "to", "orchestrator", "recipient instance, or \"all\"")
	publishCmd.Flags().BoolVar(&publishRequiresAck, "requires-ack", true, "require recipient acknowledgment")
	publishCmd.MarkFlagRequired("type")
}

func runPublish(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	client, self, _, closer, err := newClient(ctx)
	if err != nil {
		return err
	}
	defer closer()

	typ, err := message.Parse(publishType)
	if err != nil {
		fmt.Fprintf(os.Stderr, "valid types: %v\n", message.ValidTypeStrings())
		return err
	}

	env, err := client.Publish(ctx, typ, publishSubject, publishDescription, self, publishTo, publishRequiresAck)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(env)
}
