package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mercator-hq/pricerelay/pkg/cli"
)

func TestValidateCommand(t *testing.T) {
	tests := []struct {
		name     string
		yaml     string
		wantErr  bool
		wantText string
	}{
		{
			name:     "valid",
			yaml:     "relay:\n  listen_address: \"127.0.0.1:9000\"\n",
			wantText: "is valid",
		},
		{
			name:     "bad upstream",
			yaml:     "upstream:\n  base_url: \"ftp://feed\"\n",
			wantErr:  true,
			wantText: "upstream.base_url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "relay.yaml")
			if err := os.WriteFile(path, []byte(tt.yaml), 0o600); err != nil {
				t.Fatal(err)
			}

			out, err := execute(t, "validate", path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && cli.ExitCode(err) != cli.ExitConfig {
				t.Errorf("exit code = %d", cli.ExitCode(err))
			}
			if !strings.Contains(out, tt.wantText) {
				t.Errorf("output = %q, want %q", out, tt.wantText)
			}
		})
	}
}

func TestValidateCommand_MissingFile(t *testing.T) {
	_, err := execute(t, "validate", filepath.Join(t.TempDir(), "absent.yaml"))
	if cli.ExitCode(err) != cli.ExitConfig {
		t.Errorf("error = %v", err)
	}
}
