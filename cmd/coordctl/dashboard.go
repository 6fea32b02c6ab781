package main

import (
	"github.com/spf13/cobra"

	"github.com/jb-8200/asdlc-coord/internal/dashboard"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Open the presence and timeline dashboard",
	RunE:  runDashboard,
}

func runDashboard(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	client, _, cfg, closer, err := newClient(ctx)
	if err != nil {
		return err
	}
	defer closer()

	return dashboard.Run(client, cfg.PresenceTimeout())
}
