package gate

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func writeDescriptor(t *testing.T, root string, d Descriptor) {
	t.Helper()
	if err := os.MkdirAll(filepath.Join(root, ".claude"), 0o755); err != nil {
		t.Fatal(err)
	}
	data, err := json.Marshal(d)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, descriptorRelPath), data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestEvaluatePromptBlocksWithoutDescriptor(t *testing.T) {
	dir := t.TempDir()
	got := EvaluatePrompt(dir, func(string) (string, error) { return "", nil })
	if got.Decision != "block" {
		t.Fatalf("Decision = %q, want block", got.Decision)
	}
}

func TestEvaluatePromptAllowsMatchingBranch(t *testing.T) {
	dir := t.TempDir()
	writeDescriptor(t, dir, Descriptor{InstanceID: "backend", BranchPrefix: "backend/"})

	got := EvaluatePrompt(dir, func(string) (string, error) { return "backend/feature-x", nil })
	if got.Decision != "allow" {
		t.Fatalf("Decision = %q, want allow", got.Decision)
	}
}

func TestEvaluatePromptBlocksMismatchedBranch(t *testing.T) {
	dir := t.TempDir()
	writeDescriptor(t, dir, Descriptor{InstanceID: "backend", BranchPrefix: "backend/"})

	got := EvaluatePrompt(dir, func(string) (string, error) { return "frontend/feature-x", nil })
	if got.Decision != "block" {
		t.Fatalf("Decision = %q, want block", got.Decision)
	}
}

func TestEvaluatePromptAllowsDetachedHead(t *testing.T) {
	dir := t.TempDir()
	writeDescriptor(t, dir, Descriptor{InstanceID: "backend", BranchPrefix: "backend/"})

	got := EvaluatePrompt(dir, func(string) (string, error) { return "", nil })
	if got.Decision != "allow" {
		t.Fatalf("Decision = %q, want allow for detached HEAD", got.Decision)
	}
}

func TestEvaluatePromptAllowsEmptyBranchPrefix(t *testing.T) {
	dir := t.TempDir()
	writeDescriptor(t, dir, Descriptor{InstanceID: "backend"})

	got := EvaluatePrompt(dir, func(string) (string, error) { return "anything", nil })
	if got.Decision != "allow" {
		t.Fatalf("Decision = %q, want allow when branch_prefix is empty", got.Decision)
	}
}

func TestFindProjectRoot(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, ".claude"), 0o755); err != nil {
		t.Fatal(err)
	}
	sub := filepath.Join(dir, "a", "b")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	root, ok := FindProjectRoot(sub)
	if !ok || root != dir {
		t.Fatalf("FindProjectRoot = (%q, %v), want (%q, true)", root, ok, dir)
	}
}
