package security

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidatePathWithinDirectory(t *testing.T) {
	tmpDir := t.TempDir()

	project := filepath.Join(tmpDir, "project")
	outside := filepath.Join(tmpDir, "outside")
	for _, d := range []string{project, outside} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatalf("mkdir %s: %v", d, err)
		}
	}
	link := filepath.Join(project, "Inputs")
	if err := os.Symlink(outside, link); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	tests := []struct {
		name      string
		filePath  string
		wantError bool
	}{
		{"file in project", filepath.Join(project, "dem.asc"), false},
		{"new nested file", filepath.Join(project, "Scratch", "zone_0", "ndvi@1.asc"), false},
		{"dot-dot escape", filepath.Join(project, "..", "dem.asc"), true},
		{"relative escape", "../../../etc/passwd", true},
		{"absolute outside", "/etc/passwd", true},
		{"through symlink", filepath.Join(link, "dem.asc"), true},
		{"symlink itself", link, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePathWithinDirectory(tt.filePath, project)
			if (err != nil) != tt.wantError {
				t.Errorf("ValidatePathWithinDirectory() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}

func TestValidatePathWithinDirectory_MissingSafeDir(t *testing.T) {
	err := ValidatePathWithinDirectory("a.asc", filepath.Join(t.TempDir(), "missing"))
	if err == nil {
		t.Fatal("expected error for missing safe directory")
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"Tahoe 2024":    "Tahoe_2024",
		"zone_3":        "zone_3",
		"../../etc":     "etc",
		"a//b::c":       "a_b_c",
		"":              "unknown",
		"...":           "unknown",
		"fuel-13.v1":    "fuel-13.v1",
		"  leading sp ": "leading_sp",
	}
	for in, want := range tests {
		if got := SanitizeFilename(in); got != want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
