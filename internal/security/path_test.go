package security

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestWithinDir(t *testing.T) {
	tmp := t.TempDir()
	safe := filepath.Join(tmp, "sounds")
	other := filepath.Join(tmp, "other")
	for _, d := range []string{safe, other} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Symlink(other, filepath.Join(safe, "link")); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	tests := []struct {
		name    string
		file    string
		want    string
		wantErr bool
	}{
		{name: "plain name", file: "alarm.mp3", want: filepath.Join(safe, "alarm.mp3")},
		{name: "nested", file: "tilt/alarm.mp3", want: filepath.Join(safe, "tilt", "alarm.mp3")},
		{name: "absolute inside", file: filepath.Join(safe, "a.mp3"), want: filepath.Join(safe, "a.mp3")},
		{name: "dot dot", file: "../other/a.mp3", wantErr: true},
		{name: "deep traversal", file: "../../../../etc/passwd", wantErr: true},
		{name: "absolute outside", file: filepath.Join(other, "a.mp3"), wantErr: true},
		{name: "through symlink", file: "link/a.mp3", wantErr: true},
		{name: "through symlink to new dir", file: "link/new/a.mp3", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := WithinDir(safe, tt.file)
			if tt.wantErr {
				if !errors.Is(err, ErrOutsideDir) {
					t.Fatalf("WithinDir(%q) error = %v, want ErrOutsideDir", tt.file, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("WithinDir(%q): %v", tt.file, err)
			}
			if got != tt.want {
				t.Errorf("WithinDir(%q) = %q, want %q", tt.file, got, tt.want)
			}
		})
	}
}

func TestWithinDir_MissingDir(t *testing.T) {
	if _, err := WithinDir(filepath.Join(t.TempDir(), "gone"), "a.mp3"); err == nil {
		t.Fatal("expected an error for a missing directory")
	}
}
