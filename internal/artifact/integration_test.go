//go:build integration

package artifact_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Yumeka433/igdl/internal/artifact"
	"github.com/Yumeka433/igdl/internal/testutils"
)

func TestIntegrationPublishAndSaveToMinio(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	env := testutils.StartMinioContainer(t, ctx, "artifacts")
	defer env.Close(ctx)

	store, err := artifact.OpenStore(ctx, env.BucketURL, zerolog.Nop())
	require.NoError(t, err)
	defer store.Close()

	data := testutils.GenerateTestData(t, 5*1024*1024)
	chunks := [][]byte{data[:1<<20], data[1<<20:]}
	a := artifact.Assemble(chunks, "video/mp4", "clip.mp4")

	h, err := store.Publish(ctx, "integration", a)
	require.NoError(t, err)

	dst, err := artifact.OpenBucket(ctx, env.BucketURL)
	require.NoError(t, err)
	defer dst.Close()

	require.NoError(t, artifact.Save(ctx, h, dst, "saved/clip.mp4"))

	r, err := dst.NewReader(ctx, "saved/clip.mp4", nil)
	require.NoError(t, err)
	defer r.Close()
	testutils.CompareReaderToData(t, r, data)

	require.NoError(t, h.Release(ctx))
	exists, err := dst.Exists(ctx, h.Key)
	require.NoError(t, err)
	require.False(t, exists)
}
