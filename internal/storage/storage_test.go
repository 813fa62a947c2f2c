package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/docindex/docindex/internal/config"
	"github.com/stretchr/testify/require"
)

func TestUploadKey(t *testing.T) {
	k1 := UploadKey("report.pdf")
	k2 := UploadKey("report.pdf")
	require.NotEqual(t, k1, k2)
	require.True(t, strings.HasPrefix(k1, "uploads/"))
	require.True(t, strings.HasSuffix(k1, "/report.pdf"))

	require.True(t, strings.HasSuffix(UploadKey("../../etc/passwd"), "/passwd"))
	require.True(t, strings.HasSuffix(UploadKey(`C:\docs\notes.docx`), "/notes.docx"))
}

func TestLocalStorePutDelete(t *testing.T) {
	root := t.TempDir()
	s, err := NewLocalStore(root)
	require.NoError(t, err)
	ctx := context.Background()

	key := UploadKey("a.txt")
	p, err := s.Put(ctx, key, strings.NewReader("hello"), 5, "text/plain")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(p, root))
	b, err := os.ReadFile(p)
	require.NoError(t, err)
	require.Equal(t, "hello", string(b))

	require.NoError(t, s.Delete(ctx, key))
	_, err = os.Stat(p)
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Dir(p))
	require.True(t, os.IsNotExist(err))

	// deleting twice is fine
	require.NoError(t, s.Delete(ctx, key))
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	_, err = s.Put(context.Background(), "../outside.txt", strings.NewReader("x"), 1, "")
	require.ErrorIs(t, err, ErrInvalidKey)
}

func TestNewMinIOStorageRequiresEndpoint(t *testing.T) {
	spool, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	_, err = NewMinIOStorage(context.Background(), config.MinIOConfig{}, spool)
	require.Error(t, err)
}
