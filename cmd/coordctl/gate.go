package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jb-8200/asdlc-coord/internal/bashtool"
	"github.com/jb-8200/asdlc-coord/internal/gate"
)

var gateCmd = &cobra.Command{
	Use:   "gate",
	Short: "Local interceptors for prompts and tool operations",
}

var gatePromptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "Evaluate whether the current prompt may proceed",
	RunE:  runGatePrompt,
}

var gateOperationCmd = &cobra.Command{
	Use:   "operation",
	Short: "Evaluate whether a pending tool operation may proceed",
	RunE:  runGateOperation,
}

var gateBashResultCmd = &cobra.Command{
	Use:   "bash-result",
	Short: "Evaluate a lint/test helper's {success, results, errors} report",
	RunE:  runGateBashResult,
}

func init() {
	gateCmd.AddCommand(gatePromptCmd, gateOperationCmd, gateBashResultCmd)
}

func runGatePrompt(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	decision := gate.EvaluatePrompt(cwd, gate.GitCurrentBranch)
	out, err := gate.MarshalDecision(decision)
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func runGateOperation(cmd *cobra.Command, args []string) error {
	body, err := io.ReadAll(os.Stdin)
	if err != nil {
		return fmt.Errorf("reading operation request: %w", err)
	}
	var req gate.OperationRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return fmt.Errorf("parsing operation request: %w", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	root, ok := gate.FindProjectRoot(cwd)
	var desc gate.Descriptor
	descOK := false
	if ok {
		if d, err := gate.LoadDescriptor(root); err == nil {
			desc = d
			descOK = true
		}
	}

	decision := gate.EvaluateOperation(root, descOK, desc, req)
	if !decision.Allow {
		fmt.Fprintln(os.Stderr, decision.Reason)
		os.Exit(2)
	}
	return nil
}

func runGateBashResult(cmd *cobra.Command, args []string) error {
	body, err := io.ReadAll(os.Stdin)
	if err != nil {
		return fmt.Errorf("reading bash tool result: %w", err)
	}
	var result bashtool.Result
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("parsing bash tool result: %w", err)
	}

	decision := gate.EvaluateBashToolResult(result)
	if !decision.Allow {
		fmt.Fprintln(os.Stderr, decision.Reason)
		os.Exit(2)
	}
	return nil
}
