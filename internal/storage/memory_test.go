package storage

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/openlis/lis-api/pkg/apierror"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	var _ BlobStore = (*MemoryStore)(nil)
	var _ BlobStore = (*MinIOStorage)(nil)

	ctx := context.Background()
	s := NewMemoryStore("lis-reports")
	require.NoError(t, s.Put(ctx, "tat/a.csv", strings.NewReader("x,y\n"), 4, "text/csv"))

	rc, err := s.Get(ctx, "tat/a.csv")
	require.NoError(t, err)
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "x,y\n", string(b))

	u, err := s.PresignedURL(ctx, "tat/a.csv", 15*time.Minute)
	require.NoError(t, err)
	require.Equal(t, "memory://lis-reports/tat/a.csv?expires=900", u)

	_, err = s.Get(ctx, "missing")
	require.ErrorIs(t, err, apierror.ErrNotFound)
}
