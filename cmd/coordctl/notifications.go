package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var notificationsLimit int

var notificationsCmd = &cobra.Command{
	Use:   "notifications",
	Short: "Drain this instance's offline notification queue",
	RunE:  runNotifications,
}

func init() {
	notificationsCmd.Flags().IntVar(&notificationsLimit, "limit", 100, "maximum notifications to drain")
}

func runNotifications(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	client, self, cfg, closer, err := newClient(ctx)
	if err != nil {
		return err
	}
	defer closer()

	limit := cfg.ClampNotificationLimit(notificationsLimit)

	notifications, err := client.PopNotifications(ctx, self, limit)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(notifications)
}
