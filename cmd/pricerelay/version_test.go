package main

import (
	"bytes"
	"strings"
	"testing"

	"mercator-hq/pricerelay/pkg/server"
)

func TestVersionCommand(t *testing.T) {
	origVersion, origCommit := Version, GitCommit
	defer func() { Version, GitCommit = origVersion, origCommit }()

	Version = "0.1.0-test"
	GitCommit = "abc123"

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"version"})
	defer rootCmd.SetOut(nil)

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("version: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"Pricerelay 0.1.0-test", "Git Commit: abc123", "Go Version: go"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPublishBuildInfo(t *testing.T) {
	origServer, origVersion := server.Version, Version
	defer func() { server.Version, Version = origServer, origVersion }()

	Version = "9.9.9"

	publishBuildInfo()
	if server.Version != "9.9.9" {
		t.Errorf("server.Version = %q", server.Version)
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := []string{"run", "watch", "feed", "sessions", "validate", "version", "completion"}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("command %q not registered", name)
		}
	}
}
