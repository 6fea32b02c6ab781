package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jb-8200/asdlc-coord/internal/message"
	"github.com/jb-8200/asdlc-coord/internal/style"
)

var (
	checkTo          string
	checkFrom        string
	checkType        string
	checkPendingOnly bool
	checkSince       string
	checkLimit       int
	checkTable       bool
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Query coordination messages",
	RunE:  runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkTo, "to", "", "filter by recipient instance")
	checkCmd.Flags().StringVar(&checkFrom, "from", "", "filter by sender instance")
	checkCmd.Flags().StringVar(&checkType, "type", "", "filter by message type")
	checkCmd.Flags().BoolVar(&checkPendingOnly, "pending-only", false, "only unacknowledged messages")
	checkCmd.Flags().StringVar(&checkSince, "since", "", "only messages at or after this timestamp")
	checkCmd.Flags().IntVar(&checkLimit, "limit", 100, "maximum number of messages")
	checkCmd.Flags().BoolVar(&checkTable, "table", false, "render as a table instead of JSON")
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	client, _, _, closer, err := newClient(ctx)
	if err != nil {
		return err
	}
	defer closer()

	q := message.Query{
		ToInstance:   checkTo,
		FromInstance: checkFrom,
		PendingOnly:  checkPendingOnly,
		Limit:        checkLimit,
	}
	if checkType != "" {
		typ, err := message.Parse(checkType)
		if err != nil {
			return err
		}
		q.MsgType = typ
	}
	if checkSince != "" {
		since, err := message.ParseTime(checkSince)
		if err != nil {
			return err
		}
		q.Since = &since
	}

	envs, err := client.Query(ctx, q)
	if err != nil {
		return err
	}

	if checkTable {
		table := style.NewTimelineTable()
		for _, env := range envs {
			table.AddTimelineRow(env)
		}
		fmt.Print(table.Render())
		return nil
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(envs)
}
