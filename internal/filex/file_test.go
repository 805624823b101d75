package filex

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnsureParentDir_CreatesNestedDirectories(t *testing.T) {
	tmp := t.TempDir()

	got, err := EnsureParentDir(filepath.Join(tmp, "data", "local", "orcafacil.db"))
	require.NoError(t, err)

	want := filepath.Join(tmp, "data", "local")
	require.Equal(t, want, got)

	fi, err := os.Stat(want)
	require.NoError(t, err)
	require.True(t, fi.IsDir(), "should create a directory")

	if runtime.GOOS != "windows" {
		require.Equal(t, os.FileMode(0o700), fi.Mode().Perm()&0o700)
	}
}

func TestEnsureParentDir_RelativeToWorkingDir(t *testing.T) {
	tmp := t.TempDir()
	t.Chdir(tmp)

	got, err := EnsureParentDir(filepath.Join("db", "orcafacil.db"))
	require.NoError(t, err)

	// tmp may sit behind a symlink (macOS /var), so compare resolved paths
	wantDir, err := filepath.EvalSymlinks(filepath.Join(tmp, "db"))
	require.NoError(t, err)
	gotDir, err := filepath.EvalSymlinks(got)
	require.NoError(t, err)
	require.Equal(t, wantDir, gotDir)
}

func TestEnsureParentDir_Idempotent(t *testing.T) {
	file := filepath.Join(t.TempDir(), "db", "orcafacil.db")

	first, err := EnsureParentDir(file)
	require.NoError(t, err)
	second, err := EnsureParentDir(file)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestEnsureParentDir_FailsIfFileBlocksDirectory(t *testing.T) {
	tmp := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmp, "db"), []byte("x"), 0o660))

	_, err := EnsureParentDir(filepath.Join(tmp, "db", "orcafacil.db"))
	require.Error(t, err, "should fail when a file exists where the directory goes")
}
