package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jb-8200/asdlc-coord/internal/broker"
	"github.com/jb-8200/asdlc-coord/internal/config"
	"github.com/jb-8200/asdlc-coord/internal/kvstore"
	"github.com/jb-8200/asdlc-coord/internal/session"
	"github.com/jb-8200/asdlc-coord/internal/style"
)

var (
	launchRole           string
	launchBranchPrefix   string
	launchForbiddenPaths []string
	launchCanMerge       bool
	launchSessionID      string
)

var launchCmd = &cobra.Command{
	Use:   "launch",
	Short: "Create or re-attach a worktree and prepare the session environment",
	RunE:  runLaunch,
}

func init() {
	launchCmd.Flags().StringVar(&launchRole, "role", "", "instance role, e.g. backend (required)")
	launchCmd.Flags().StringVar(&launchBranchPrefix, "branch-prefix", "", "required branch prefix, e.g. backend/")
	launchCmd.Flags().StringSliceVar(&launchForbiddenPaths, "forbidden-path", nil, "path this instance may not modify (repeatable)")
	launchCmd.Flags().BoolVar(&launchCanMerge, "can-merge", false, "permit merging/pushing to main or master")
	launchCmd.Flags().StringVar(&launchSessionID, "session-id", "", "optional session identifier for the startup hook")
	launchCmd.MarkFlagRequired("role")
}

func runLaunch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	repoRoot, err := os.Getwd()
	if err != nil {
		return err
	}

	result, err := session.Launch(ctx, session.LaunchOptions{
		RepoRoot:       repoRoot,
		Role:           launchRole,
		BranchPrefix:   launchBranchPrefix,
		ForbiddenPaths: launchForbiddenPaths,
		CanMerge:       launchCanMerge,
	})
	if err != nil {
		return err
	}

	cfg := config.FromEnv("coord.toml")
	adapter := kvstore.NewRedis(cfg.RedisAddr(), cfg.RedisDB)
	defer adapter.Close()
	client := broker.New(adapter, cfg, result.InstanceID, session.NewLogger(result.InstanceID))

	hookCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	warnings := session.StartupHook(hookCtx, client, result.InstanceID, launchSessionID)
	for _, w := range warnings {
		style.PrintWarning("%s", w)
	}

	style.PrintSuccess("worktree ready at %s on branch %s", result.WorktreePath, result.Branch)
	fmt.Printf("export CLAUDE_INSTANCE_ID=%s\n", result.InstanceID)
	fmt.Printf("cd %s && coord-host\n", result.WorktreePath)
	return nil
}
