package gate

import (
	"bytes"
	"encoding/json"
	"os/exec"
	"strings"
)

// PromptDecision is the JSON object the prompt gate prints on stdout.
// It always exits 0; the decision is carried in this payload.
type PromptDecision struct {
	Decision string `json:"decision"`
	Reason   string `json:"reason,omitempty"`
}

const remediationNoDescriptor = "no .claude/instance-identity.json found; run the session launcher to create one"

// EvaluatePrompt implements the prompt gate: locate the project root,
// require the identity descriptor, and if branch_prefix is set,
// require the current branch (when not detached) to start with it.
func EvaluatePrompt(cwd string, currentBranch func(root string) (string, error)) PromptDecision {
	root, ok := FindProjectRoot(cwd)
	if !ok {
		return PromptDecision{Decision: "block", Reason: remediationNoDescriptor}
	}

	desc, err := LoadDescriptor(root)
	if err != nil {
		return PromptDecision{Decision: "block", Reason: remediationNoDescriptor}
	}

	if desc.BranchPrefix == "" {
		return PromptDecision{Decision: "allow"}
	}

	branch, err := currentBranch(root)
	if err != nil || branch == "" {
		// Detached HEAD, or the branch could not be determined: accept.
		return PromptDecision{Decision: "allow"}
	}
	if !strings.HasPrefix(branch, desc.BranchPrefix) {
		return PromptDecision{
			Decision: "block",
			Reason:   "current branch " + branch + " does not start with required prefix " + desc.BranchPrefix,
		}
	}
	return PromptDecision{Decision: "allow"}
}

// GitCurrentBranch shells out to git to determine the current branch.
// It returns "" with no error for a detached HEAD.
func GitCurrentBranch(root string) (string, error) {
	cmd := exec.Command("git", "-C", root, "symbolic-ref", "--short", "-q", "HEAD")
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		// symbolic-ref fails (exit 1) on detached HEAD; treat as empty.
		return "", nil
	}
	return strings.TrimSpace(out.String()), nil
}

// MarshalDecision renders a PromptDecision as a single JSON line.
func MarshalDecision(d PromptDecision) ([]byte, error) {
	return json.Marshal(d)
}
