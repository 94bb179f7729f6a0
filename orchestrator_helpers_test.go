package fleetAuth

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/MrEthical07/fleetAuth/kvstore"
)

var errInjected = errors.New("injected store failure")

// failingStore fails writes once fail is set; reads keep working.
type failingStore struct {
	*kvstore.Memory
	fail atomic.Bool
}

func (s *failingStore) Set(ctx context.Context, key string, value []byte) error {
	if s.fail.Load() {
		return errInjected
	}
	return s.Memory.Set(ctx, key, value)
}

func (s *failingStore) Delete(ctx context.Context, keys ...string) error {
	if s.fail.Load() {
		return errInjected
	}
	return s.Memory.Delete(ctx, keys...)
}
