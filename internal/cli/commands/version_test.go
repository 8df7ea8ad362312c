package commands

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewVersionCommand(t *testing.T) {
	tests := []struct {
		name    string
		version string
		wantOut []string
		wantErr bool
	}{
		{
			name:    "release version",
			version: "0.3.0",
			wantOut: []string{"shipver v0.3.0", "commit abc1234, built 2026-03-01"},
		},
		{
			name:    "custom version",
			version: "1.2.3",
			wantOut: []string{"shipver v1.2.3"},
		},
		{
			name:    "module version with v prefix",
			version: "v0.3.0",
			wantOut: []string{"shipver v0.3.0\n"},
		},
		{
			name:    "dev version",
			version: "dev",
			wantOut: []string{"shipver vdev"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := NewVersionCommand(tt.version, "abc1234", "2026-03-01")
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetErr(buf)

			err := cmd.Execute()
			if (err != nil) != tt.wantErr {
				t.Errorf("Execute() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			output := buf.String()
			if strings.Contains(output, "vv") {
				t.Errorf("version is printed with a doubled prefix: %s", output)
			}
			for _, want := range tt.wantOut {
				if !strings.Contains(output, want) {
					t.Errorf("output should contain %q, got: %s", want, output)
				}
			}
		})
	}
}

func TestVersionCommandMetadata(t *testing.T) {
	cmd := NewVersionCommand("test", "none", "unknown")

	if cmd.Use != "version" {
		t.Errorf("Use = %q, want %q", cmd.Use, "version")
	}

	if cmd.Short == "" {
		t.Error("Short should not be empty")
	}

	if cmd.Long == "" {
		t.Error("Long should not be empty")
	}
}
