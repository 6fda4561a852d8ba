package builtin

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteThenReadFile(t *testing.T) {
	dir := t.TempDir()
	write := WriteFile(dir)
	read := ReadFile(dir)

	params, _ := json.Marshal(map[string]any{"path": "notes/todo.txt", "content": "buy milk"})
	res, err := write.Execute(context.Background(), params)
	require.NoError(t, err)
	require.False(t, res.IsError)

	params, _ = json.Marshal(map[string]any{"path": "notes/todo.txt"})
	res, err = read.Execute(context.Background(), params)
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Equal(t, "buy milk", res.Content)
}

func TestWriteFile_IsFlaggedAsProtectedFileWriter(t *testing.T) {
	write := WriteFile(t.TempDir())
	require.True(t, write.IsFileWriteTool)
	require.True(t, write.IsProtectedFileWriter, "write_file must be flagged so the policy kernel's protected-root guard (Rule 1) applies to it")
}

func TestWriteFile_RejectsEscapingPath(t *testing.T) {
	dir := t.TempDir()
	write := WriteFile(dir)

	params, _ := json.Marshal(map[string]any{"path": "../../etc/passwd", "content": "pwned"})
	res, err := write.Execute(context.Background(), params)
	require.NoError(t, err)
	require.True(t, res.IsError)

	_, statErr := os.Stat(filepath.Join(filepath.Dir(filepath.Dir(dir)), "etc", "passwd"))
	require.Error(t, statErr)
}
