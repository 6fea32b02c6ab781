package gate

import "github.com/jb-8200/asdlc-coord/internal/bashtool"

// EvaluateBashToolResult implements the operation gate's post-hook half:
// a lint/test helper invoked by the Bash tool reports back in the
// {success, results, errors} contract, and any blocking finding turns
// into a block decision even though the shell command itself already
// ran.
func EvaluateBashToolResult(result bashtool.Result) OperationDecision {
	if !result.Success {
		return OperationDecision{Allow: false, Reason: "lint/test helper reported failure"}
	}
	if result.HasBlockingFindings() {
		return OperationDecision{Allow: false, Reason: "lint/test helper reported blocking findings"}
	}
	return OperationDecision{Allow: true}
}
