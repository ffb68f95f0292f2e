package artifacts

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/lexsim/pkg/logging"
)

func TestNewStoreDefaultsToFileStore(t *testing.T) {
	dir := t.TempDir()

	store, err := NewStore(context.Background(), Config{DataDir: dir})
	require.NoError(t, err)

	fs, ok := store.(*FileStore)
	require.True(t, ok, "got %T", store)
	require.Equal(t, filepath.Join(dir, "artifacts"), fs.baseDir)
}

func TestNewStoreErrors(t *testing.T) {
	ctx := context.Background()

	_, err := NewStore(ctx, Config{Type: StoreTypeS3})
	require.ErrorContains(t, err, "S3 bucket is required")

	_, err = NewStore(ctx, Config{Type: StoreTypeGCS})
	require.ErrorContains(t, err, "GCS bucket is required")

	_, err = NewStore(ctx, Config{Type: "azure"})
	require.ErrorContains(t, err, "unsupported artifact storage type")
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	data := []byte("=== Temporal Simulation Report ===")
	hash, err := store.Put(ctx, data)
	require.NoError(t, err)
	require.Equal(t, Hash(data), hash)

	again, err := store.Put(ctx, data)
	require.NoError(t, err)
	require.Equal(t, hash, again)

	got, err := store.Get(ctx, hash)
	require.NoError(t, err)
	require.Equal(t, data, got)

	ok, err := store.Exists(ctx, hash)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, store.Delete(ctx, hash))
	require.NoError(t, store.Delete(ctx, hash))

	ok, err = store.Exists(ctx, hash)
	require.NoError(t, err)
	require.False(t, ok)

	_, err = store.Get(ctx, hash)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFileStoreRejectsBadHashes(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get(ctx, "invalid-hash")
	require.ErrorContains(t, err, "invalid hash format")

	_, err = store.Get(ctx, "sha256:../../etc/passwd")
	require.ErrorContains(t, err, "invalid hash hex")

	_, err = store.Exists(ctx, "sha256:abcd")
	require.ErrorContains(t, err, "invalid hash hex")
}

func TestPublisher(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	pub := NewPublisher(store, 0, 1, logging.Discard())
	receipt, err := pub.Publish(context.Background(), "run-1", []byte("report"), []byte(`{"snapshots":[]}`))
	require.NoError(t, err)
	require.Equal(t, "run-1", receipt.RunID)
	require.Equal(t, Hash([]byte("report")), receipt.Report)

	got, err := store.Get(context.Background(), receipt.Document)
	require.NoError(t, err)
	require.JSONEq(t, `{"snapshots":[]}`, string(got))
}

func TestPublisherHonorsContext(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	// One token per hour: the second upload cannot be admitted before the deadline.
	pub := NewPublisher(store, 1.0/3600, 1, logging.Discard())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = pub.Publish(ctx, "run-2", []byte("a"), []byte("b"))
	require.ErrorContains(t, err, "publish document")
}
