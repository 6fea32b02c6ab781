package gate

import (
	"testing"

	"github.com/jb-8200/asdlc-coord/internal/bashtool"
)

func TestEvaluateBashToolResultAllowsCleanSuccess(t *testing.T) {
	d := EvaluateBashToolResult(bashtool.Result{Success: true})
	if !d.Allow {
		t.Fatal("want allow for a clean success result")
	}
}

func TestEvaluateBashToolResultBlocksOnFailure(t *testing.T) {
	d := EvaluateBashToolResult(bashtool.Result{Success: false})
	if d.Allow {
		t.Fatal("want block when the helper reports success=false")
	}
}

func TestEvaluateBashToolResultBlocksOnErrorFinding(t *testing.T) {
	d := EvaluateBashToolResult(bashtool.Result{
		Success: true,
		Results: []bashtool.Finding{{File: "a.go", Line: 1, Severity: bashtool.SeverityError, Message: "boom", Rule: "vet"}},
	})
	if d.Allow {
		t.Fatal("want block when a finding has error severity")
	}
}

func TestEvaluateBashToolResultAllowsWarningOnlyFindings(t *testing.T) {
	d := EvaluateBashToolResult(bashtool.Result{
		Success: true,
		Results: []bashtool.Finding{{File: "a.go", Line: 1, Severity: bashtool.SeverityWarning, Message: "nit", Rule: "lint"}},
	})
	if !d.Allow {
		t.Fatal("want allow when findings are warning-only")
	}
}
