package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/jb-8200/asdlc-coord/internal/broker"
	"github.com/jb-8200/asdlc-coord/internal/config"
	"github.com/jb-8200/asdlc-coord/internal/kvstore"
	"github.com/jb-8200/asdlc-coord/internal/session"
	"github.com/jb-8200/asdlc-coord/internal/style"
)

var (
	teardownRole         string
	teardownWorktreePath string
)

var teardownCmd = &cobra.Command{
	Use:   "teardown",
	Short: "Remove a worktree and deregister its instance",
	RunE:  runTeardown,
}

func init() {
	teardownCmd.Flags().StringVar(&teardownRole, "role", "", "instance role to tear down (required)")
	teardownCmd.Flags().StringVar(&teardownWorktreePath, "worktree-path", "", "worktree path to remove (required)")
	teardownCmd.MarkFlagRequired("role")
	teardownCmd.MarkFlagRequired("worktree-path")
}

func runTeardown(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	repoRoot, err := os.Getwd()
	if err != nil {
		return err
	}

	cfg := config.FromEnv("coord.toml")
	adapter := kvstore.NewRedis(cfg.RedisAddr(), cfg.RedisDB)
	defer adapter.Close()
	client := broker.New(adapter, cfg, teardownRole, session.NewLogger(teardownRole))

	warnings := session.Teardown(ctx, client, session.TeardownOptions{
		RepoRoot:     repoRoot,
		Role:         teardownRole,
		WorktreePath: teardownWorktreePath,
	})
	for _, w := range warnings {
		style.PrintWarning("%s", w)
	}

	style.PrintSuccess("torn down %s", teardownRole)
	return nil
}
