package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/jb-8200/asdlc-coord/internal/style"
)

var presenceJSON bool

var presenceCmd = &cobra.Command{
	Use:   "presence",
	Short: "Show presence for all known instances",
	RunE:  runPresence,
}

func init() {
	presenceCmd.Flags().BoolVar(&presenceJSON, "json", false, "emit raw JSON instead of a table")
}

func runPresence(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	client, _, cfg, closer, err := newClient(ctx)
	if err != nil {
		return err
	}
	defer closer()

	presence, err := client.GetPresence(ctx, cfg.PresenceTimeout())
	if err != nil {
		return err
	}

	if presenceJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(presence)
	}

	names := make([]string, 0, len(presence))
	for name := range presence {
		names = append(names, name)
	}
	sort.Strings(names)

	table := style.NewPresenceTable()
	for _, name := range names {
		table.AddPresenceRow(name, presence[name])
	}
	fmt.Print(table.Render())
	return nil
}
