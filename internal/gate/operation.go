package gate

import (
	"path/filepath"
	"regexp"
	"strings"
)

// OperationRequest is the input the operation gate reads on stdin.
type OperationRequest struct {
	ToolName  string                 `json:"tool_name"`
	ToolInput map[string]interface{} `json:"tool_input"`
}

// OperationDecision is the result of evaluating an operation request.
// Allow=true, exit 0; Allow=false, Reason goes to stderr, exit 2.
type OperationDecision struct {
	Allow  bool
	Reason string
}

var fileModifyingTools = map[string]bool{
	"Write": true, "Edit": true, "MultiEdit": true, "NotebookEdit": true,
}

var vcsVerbPattern = regexp.MustCompile(`\b(commit|push|merge)\b`)
var mergeTargetPattern = regexp.MustCompile(`\b(main|master)\b`)

// EvaluateOperation implements the operation gate. root is the project
// root if a descriptor was found; descOK is false when no identity file
// exists, in which case the caller is the human operator and the
// operation is always allowed.
func EvaluateOperation(root string, descOK bool, desc Descriptor, req OperationRequest) OperationDecision {
	if !descOK {
		return OperationDecision{Allow: true}
	}

	if fileModifyingTools[req.ToolName] {
		return evaluateFileTool(root, desc, req)
	}

	if req.ToolName == "Bash" {
		return evaluateShellTool(desc, req)
	}

	return OperationDecision{Allow: true}
}

func evaluateFileTool(root string, desc Descriptor, req OperationRequest) OperationDecision {
	target, _ := req.ToolInput["file_path"].(string)
	if target == "" {
		target, _ = req.ToolInput["path"].(string)
	}
	if target == "" {
		return OperationDecision{Allow: true}
	}

	rel := target
	if filepath.IsAbs(target) {
		if r, err := filepath.Rel(root, target); err == nil {
			rel = r
		}
	}
	rel = filepath.ToSlash(rel)

	if MatchAnyForbiddenPath(desc.ForbiddenPaths, rel) {
		return OperationDecision{Allow: false, Reason: "path " + rel + " is forbidden for instance " + desc.InstanceID}
	}
	return OperationDecision{Allow: true}
}

func evaluateShellTool(desc Descriptor, req OperationRequest) OperationDecision {
	command, _ := req.ToolInput["command"].(string)
	if command == "" {
		return OperationDecision{Allow: true}
	}

	verb := vcsVerbPattern.FindString(command)
	if verb == "" {
		return OperationDecision{Allow: true}
	}

	switch verb {
	case "commit", "push":
		if desc.BranchPrefix != "" && !commandTargetsAllowedBranch(command, desc.BranchPrefix) {
			return OperationDecision{Allow: false, Reason: verb + " does not target a branch with prefix " + desc.BranchPrefix}
		}
	case "merge":
		if mergeTargetPattern.MatchString(command) && !desc.CanMerge {
			return OperationDecision{Allow: false, Reason: "instance " + desc.InstanceID + " is not permitted to merge into main/master"}
		}
	}
	if verb == "push" && mergeTargetPattern.MatchString(command) && !desc.CanMerge {
		return OperationDecision{Allow: false, Reason: "instance " + desc.InstanceID + " is not permitted to push to main/master"}
	}
	return OperationDecision{Allow: true}
}

// commandTargetsAllowedBranch is a best-effort check: if the command
// names a branch explicitly (e.g. "git push origin backend/foo") that
// branch must carry the prefix; commands with no explicit branch
// (plain "git commit -m ...", "git push") are allowed, since they
// operate on the current branch, which the prompt gate already
// enforces.
func commandTargetsAllowedBranch(command, prefix string) bool {
	fields := strings.Fields(command)
	for _, f := range fields {
		if strings.HasPrefix(f, prefix) {
			return true
		}
	}
	for _, f := range fields {
		if strings.Contains(f, "/") && !strings.HasPrefix(f, "-") {
			return false
		}
	}
	return true
}
