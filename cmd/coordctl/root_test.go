package main

import "testing"

func TestRootCommandRegistersAllSubcommands(t *testing.T) {
	want := []string{
		"publish", "check", "ack", "presence", "notifications",
		"register", "deregister", "heartbeat", "launch", "teardown",
		"gate", "dashboard",
	}
	got := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		got[c.Name()] = true
	}
	for _, name := range want {
		if !got[name] {
			t.Errorf("rootCmd missing subcommand %q", name)
		}
	}
}

func TestGateCommandHasPromptAndOperationSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range gateCmd.Commands() {
		names[c.Name()] = true
	}
	if !names["prompt"] || !names["operation"] || !names["bash-result"] {
		t.Fatalf("gateCmd subcommands = %v, want prompt, operation and bash-result", names)
	}
}
