package platform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveDataDir(t *testing.T) {
	tempRoot := os.TempDir()
	devBase := filepath.Join(tempRoot, "contractflow-dev")

	tests := []struct {
		name      string
		userPath  string
		forceTemp bool
		want      string
	}{
		{"normal mode empty", "", false, "."},
		{"normal mode path", "/srv/contracts", false, "/srv/contracts"},
		{"dev mode empty", "", true, filepath.Join(devBase, "default")},
		{"dev mode current dir", ".", true, filepath.Join(devBase, "default")},
		{"dev mode relative", "studio", true, filepath.Join(devBase, "studio")},
		{"dev mode traversal", "../bad/path", true, filepath.Join(devBase, "path")},
		{"dev mode temp passthrough", filepath.Join(tempRoot, "mine"), true, filepath.Join(tempRoot, "mine")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveDataDir(tt.userPath, tt.forceTemp))
		})
	}
}

func TestIsDevRun(t *testing.T) {
	assert.True(t, IsDevRun(), "go test binaries count as dev runs")
}
