package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/leadcast-lab/leadcast/internal/core/storage"
	"github.com/stretchr/testify/require"
)

func writeDestinationsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "destinations.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDestinationSource_ListActive(t *testing.T) {
	path := writeDestinationsFile(t, `
destinations:
  - pixel_id: "111"
    name: "main"
    access_token: "tok1"
    active: true
  - pixel_id: "222"
    name: "backup"
    access_token: "tok2"
    active: false
`)

	src := NewDestinationSource(path)

	dests, err := src.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, dests, 1)
	require.Equal(t, "111", dests[0].PixelID)
	require.Equal(t, "tok1", dests[0].AccessToken)

	rows, err := src.List(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	n, err := src.CountActive(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestDestinationSource_MissingFile(t *testing.T) {
	src := NewDestinationSource(filepath.Join(t.TempDir(), "nope.yaml"))
	_, err := src.ListActive(context.Background())
	require.Error(t, err)
}

func TestDestinationSource_MutationsRejected(t *testing.T) {
	path := writeDestinationsFile(t, "destinations: []\n")
	src := NewDestinationSource(path)

	_, err := src.Create(context.Background(), storage.PixelRow{PixelID: "111"})
	require.Error(t, err)
	require.Error(t, src.SetActive(context.Background(), 1, true))
	require.Error(t, src.Delete(context.Background(), 1))
}

func TestDestinationSource_ImplementsDestinationStore(t *testing.T) {
	var _ storage.DestinationStore = NewDestinationSource("x")
}
