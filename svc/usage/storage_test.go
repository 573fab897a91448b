package usage_test

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cenety/saascore/pkg/limits"
	"github.com/cenety/saascore/svc/usage"
)

// pagedLister serves pages in order, keyed by continuation token.
type pagedLister struct {
	pages    [][]int64
	err      error
	prefixes []string
}

func (l *pagedLister) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if l.err != nil {
		return nil, l.err
	}
	l.prefixes = append(l.prefixes, aws.ToString(in.Prefix))

	idx := 0
	if in.ContinuationToken != nil {
		idx = int(aws.ToString(in.ContinuationToken)[0] - '0')
	}
	out := &s3.ListObjectsV2Output{}
	for _, size := range l.pages[idx] {
		out.Contents = append(out.Contents, types.Object{Size: aws.Int64(size)})
	}
	if idx+1 < len(l.pages) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(string(rune('0' + idx + 1)))
	}
	return out, nil
}

func TestStorageCounter(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	w := limits.WindowAt(limits.PeriodLifetime, time.Now(), time.UTC)

	t.Run("sums pages and rounds up to MiB", func(t *testing.T) {
		t.Parallel()
		lister := &pagedLister{pages: [][]int64{{1 << 20, 512}, {1 << 20}}}
		tenant := uuid.New()

		n, err := usage.NewStorageCounter(lister, "uploads").Count(ctx, tenant, w)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
		assert.Equal(t, []string{tenant.String() + "/", tenant.String() + "/"}, lister.prefixes)
	})

	t.Run("empty prefix", func(t *testing.T) {
		t.Parallel()
		n, err := usage.NewStorageCounter(&pagedLister{pages: [][]int64{{}}}, "uploads").Count(ctx, uuid.New(), w)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("api error", func(t *testing.T) {
		t.Parallel()
		lister := &pagedLister{err: &smithy.GenericAPIError{Code: "NoSuchBucket", Message: "bucket missing"}}
		_, err := usage.NewStorageCounter(lister, "uploads").Count(ctx, uuid.New(), w)
		require.ErrorIs(t, err, usage.ErrFailedToCount)
		assert.Contains(t, err.Error(), "NoSuchBucket")
	})

	t.Run("registered through counters", func(t *testing.T) {
		t.Parallel()
		lister := &pagedLister{pages: [][]int64{{5 << 20}}}
		reg := usage.Counters(newMock(t), usage.WithObjectStore(lister, "uploads"))

		n, err := reg[limits.ResourceStorage].Count(ctx, uuid.New(), w)
		require.NoError(t, err)
		assert.Equal(t, int64(5), n)
	})
}
