// Package session implements the session launcher and teardown
// lifecycle: creating or re-attaching a branch-named worktree,
// configuring its author identity, writing the instance-identity
// descriptor, and the startup/teardown hooks that drive presence
// registration and the SESSION_START/SESSION_END messages around it.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog"

	"github.com/jb-8200/asdlc-coord/internal/broker"
	"github.com/jb-8200/asdlc-coord/internal/message"
)

// Descriptor mirrors internal/gate.Descriptor; session owns writing
// it, gate owns reading it. Duplicated rather than imported to keep
// the two packages independently usable.
type Descriptor struct {
	InstanceID     string   `json:"instance_id"`
	BranchPrefix   string   `json:"branch_prefix"`
	ForbiddenPaths []string `json:"forbidden_paths"`
	CanMerge       bool     `json:"can_merge"`
}

const descriptorRelPath = ".claude/instance-identity.json"
const lockFileName = ".claude/worktree.lock"

// LaunchOptions configures a single launch.
type LaunchOptions struct {
	RepoRoot       string
	Role           string
	BranchPrefix   string
	ForbiddenPaths []string
	CanMerge       bool
}

// LaunchResult tells the caller what to export into its shell; coordctl
// cannot mutate its parent process's environment, so the instructions
// are printed rather than applied.
type LaunchResult struct {
	WorktreePath string
	Branch       string
	InstanceID   string
}

// Launch creates or re-attaches a branch-named worktree for role,
// configures its author, writes the identity descriptor, and reports
// what the caller must export. Steps run in a fixed order; the first
// failure aborts and is returned to the caller.
func Launch(ctx context.Context, opts LaunchOptions) (LaunchResult, error) {
	branch := opts.BranchPrefix + opts.Role
	worktreePath := filepath.Join(filepath.Dir(opts.RepoRoot), filepath.Base(opts.RepoRoot)+"-"+opts.Role)

	lock := flock.New(filepath.Join(opts.RepoRoot, lockFileName))
	locked, err := lock.TryLockContext(ctx, 200*time.Millisecond)
	if err != nil || !locked {
		return LaunchResult{}, fmt.Errorf("acquiring worktree lock: %w", err)
	}
	defer lock.Unlock()

	// Step 1: create or re-attach the worktree.
	if !worktreeExists(worktreePath) {
		if err := createWorktree(ctx, opts.RepoRoot, worktreePath, branch); err != nil {
			return LaunchResult{}, fmt.Errorf("creating worktree: %w", err)
		}
	}

	// Step 2: configure the worktree's author identity.
	authorEmail := fmt.Sprintf("claude-%s@asdlc.local", opts.Role)
	if err := runGit(ctx, worktreePath, "config", "user.email", authorEmail); err != nil {
		return LaunchResult{}, fmt.Errorf("configuring author email: %w", err)
	}

	// Step 3: write the identity descriptor.
	desc := Descriptor{
		InstanceID:     opts.Role,
		BranchPrefix:   opts.BranchPrefix,
		ForbiddenPaths: opts.ForbiddenPaths,
		CanMerge:       opts.CanMerge,
	}
	if err := writeDescriptor(worktreePath, desc); err != nil {
		return LaunchResult{}, fmt.Errorf("writing identity descriptor: %w", err)
	}

	return LaunchResult{WorktreePath: worktreePath, Branch: branch, InstanceID: opts.Role}, nil
}

// StartupHook runs at each new interactive session: validate identity
// (already done by the caller via internal/identity), best-effort
// register presence and drain notifications, and best-effort publish
// SESSION_START. No failure here is fatal; all are returned as
// warnings for the caller to log.
func StartupHook(ctx context.Context, client *broker.Client, role, sessionID string) []string {
	var warnings []string

	if err := client.Register(ctx, role, sessionID); err != nil {
		warnings = append(warnings, fmt.Sprintf("register_presence failed: %v", err))
	}
	if _, err := client.PopNotifications(ctx, role, 100); err != nil {
		warnings = append(warnings, fmt.Sprintf("get_notifications failed: %v", err))
	}
	if _, err := client.Publish(ctx, message.TypeStatusUpdate, "session started",
		role+" session started", role, "all", false); err != nil {
		warnings = append(warnings, fmt.Sprintf("SESSION_START publish failed: %v", err))
	}

	return warnings
}

// TeardownOptions configures a single teardown.
type TeardownOptions struct {
	RepoRoot     string
	Role         string
	WorktreePath string
}

// Teardown best-effort publishes SESSION_END, deregisters presence,
// then removes the worktree. Every step runs regardless of earlier
// failures; the worktree is removed even if the datastore is
// unreachable. Warnings for non-fatal steps are returned to the
// caller to log.
func Teardown(ctx context.Context, client *broker.Client, opts TeardownOptions) []string {
	var warnings []string

	if _, err := client.Publish(ctx, message.TypeStatusUpdate, "session ended",
		opts.Role+" session ended", opts.Role, "all", false); err != nil {
		warnings = append(warnings, fmt.Sprintf("SESSION_END publish failed: %v", err))
	}

	if err := client.Unregister(ctx, opts.Role); err != nil {
		warnings = append(warnings, fmt.Sprintf("deregister_presence failed: %v", err))
	}

	if err := removeWorktree(ctx, opts.RepoRoot, opts.WorktreePath); err != nil {
		warnings = append(warnings, fmt.Sprintf("worktree removal failed: %v", err))
	}

	return warnings
}

func worktreeExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func createWorktree(ctx context.Context, repoRoot, worktreePath, branch string) error {
	if branchExists(ctx, repoRoot, branch) {
		return runGit(ctx, repoRoot, "worktree", "add", worktreePath, branch)
	}
	return runGit(ctx, repoRoot, "worktree", "add", "-b", branch, worktreePath)
}

func branchExists(ctx context.Context, repoRoot, branch string) bool {
	err := runGit(ctx, repoRoot, "rev-parse", "--verify", "--quiet", "refs/heads/"+branch)
	return err == nil
}

func removeWorktree(ctx context.Context, repoRoot, worktreePath string) error {
	if !worktreeExists(worktreePath) {
		return nil
	}
	if err := runGit(ctx, repoRoot, "worktree", "remove", "--force", worktreePath); err != nil {
		return os.RemoveAll(worktreePath)
	}
	return nil
}

func writeDescriptor(worktreePath string, desc Descriptor) error {
	dir := filepath.Join(worktreePath, filepath.Dir(descriptorRelPath))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(desc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(worktreePath, descriptorRelPath), data, 0o644)
}

func runGit(ctx context.Context, dir string, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", append([]string{"-C", dir}, args...)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, stderr.String())
	}
	return nil
}

// NewLogger returns a zerolog logger tagged with the session's role,
// matching the prefix-per-component convention used elsewhere in the
// module.
func NewLogger(role string) zerolog.Logger {
	return zerolog.New(os.Stderr).With().Timestamp().Str("instance", role).Logger()
}
