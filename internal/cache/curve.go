package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/500lbbicepcurl/Scalysis-public/internal/domain"
)

// ErrStoreRequired is returned when a cache call has no store id.
var ErrStoreRequired = errors.New("storeID is required")

const curveKey = "curve"

// byteStore is the raw byte interface every cache tier implements.
type byteStore interface {
	Get(ctx context.Context, storeID string, key string) ([]byte, error)
	Set(ctx context.Context, storeID string, key string, value []byte, ttl time.Duration) error
}

func getCurve(ctx context.Context, s byteStore, storeID string) (*domain.CachedCurve, error) {
	data, err := s.Get(ctx, storeID, curveKey)
	if err != nil || data == nil {
		return nil, err
	}

	var cc domain.CachedCurve
	if err := json.Unmarshal(data, &cc); err != nil {
		return nil, err
	}
	return &cc, nil
}

func setCurve(ctx context.Context, s byteStore, storeID string, cc *domain.CachedCurve, ttl time.Duration) error {
	data, err := json.Marshal(cc)
	if err != nil {
		return err
	}
	return s.Set(ctx, storeID, curveKey, data, ttl)
}
