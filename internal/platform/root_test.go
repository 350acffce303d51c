package platform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindRoot(t *testing.T) {
	baseDir := t.TempDir()
	repoDir := filepath.Join(baseDir, "studio")
	nestedDir := filepath.Join(repoDir, "clients", "acme")
	configDir := filepath.Join(baseDir, "configured")
	emptyDir := filepath.Join(baseDir, "empty")

	require.NoError(t, os.MkdirAll(nestedDir, 0755))
	require.NoError(t, os.MkdirAll(emptyDir, 0755))
	require.NoError(t, os.MkdirAll(configDir, 0755))
	require.NoError(t, os.Mkdir(filepath.Join(repoDir, DataDirName), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, ConfigFile), []byte("user: owner\n"), 0644))

	tests := []struct {
		name      string
		startPath string
		wantRoot  string
		wantErr   bool
	}{
		{name: "start at root", startPath: repoDir, wantRoot: repoDir},
		{name: "start nested", startPath: nestedDir, wantRoot: repoDir},
		{name: "config file marks root", startPath: configDir, wantRoot: configDir},
		{name: "no root found", startPath: emptyDir, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FindRoot(tt.startPath)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrRootNotFound)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, filepath.Clean(tt.wantRoot), filepath.Clean(got))
		})
	}
}
