package plaintext

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yexubai/BookBrain/internal/core/domain"
)

func TestExtract(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meditations.txt")
	require.NoError(t, os.WriteFile(path, []byte("  Begin each day by telling yourself...\n"), 0o644))

	got, err := New().Extract(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "meditations", got.Title)
	assert.Equal(t, "Begin each day by telling yourself...", got.Text)
	assert.Empty(t, got.Author)
}

func TestExtractMissingFile(t *testing.T) {
	_, err := New().Extract(context.Background(), filepath.Join(t.TempDir(), "absent.txt"))
	assert.Error(t, err)
}

func TestRenderPagesUnsupported(t *testing.T) {
	_, err := New().RenderPages(context.Background(), "any.txt", 3)
	assert.True(t, errors.Is(err, domain.ErrOCRUnavailable))
}
