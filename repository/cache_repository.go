package repository

import "context"

// CacheRepository stores serialized projections. A miss and a backend error
// both report ok == false; callers recompute in either case.
type CacheRepository interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key string, value string) error
}
