package release_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fleetkeep/overseer/internal/release"
)

func TestFetchFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "artifact.tar.gz")
	require.NoError(t, os.WriteFile(path, []byte("hello release"), 0o600))

	artifact, err := release.Fetch(context.Background(), "file://"+path, nil)
	require.NoError(t, err)
	defer artifact.Reader.Close()

	require.EqualValues(t, len("hello release"), artifact.Size)
	data, err := io.ReadAll(artifact.Reader)
	require.NoError(t, err)
	require.Equal(t, "hello release", string(data))
}

func TestFetchUnsupportedScheme(t *testing.T) {
	_, err := release.Fetch(context.Background(), "ftp://example.com/x", nil)
	require.Error(t, err)
}

func TestFetchS3RequiresClient(t *testing.T) {
	_, err := release.Fetch(context.Background(), "s3://bucket/key", nil)
	require.Error(t, err)
}

func TestPushReadPushedRoundTrip(t *testing.T) {
	payload := []byte("release bytes go here")
	var buf bytes.Buffer

	err := release.Push(&buf, release.Artifact{
		Reader: io.NopCloser(bytes.NewReader(payload)),
		Size:   int64(len(payload)),
	})
	require.NoError(t, err)

	got, err := release.ReadPushed(&buf)
	require.NoError(t, err)
	require.Equal(t, payload, got)
}
