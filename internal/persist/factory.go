package persist

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/l1jgo/resman/internal/data"
	"github.com/l1jgo/resman/internal/resman"
)

var ErrCorrupt = errors.New("stored digest mismatch")

// BlobFactory loads blobs from the resources table. A path with no row is
// declined rather than failed, so the manager reports it as ErrDeclined and
// retries it on the next load. A zero timeout means no bound.
func BlobFactory(repo *BlobRepo, timeout time.Duration) resman.Factory {
	return func(path string) (resman.Resource, error) {
		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		row, err := repo.Get(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", path, err)
		}
		if row == nil {
			return nil, nil
		}
		b := data.NewBlob(row.Path, row.Data)
		if !bytes.Equal(b.Sum[:], row.Digest) {
			return nil, fmt.Errorf("%w: %s", ErrCorrupt, path)
		}
		return b, nil
	}
}
