package runner

import (
	"context"
	"sync"
)

// KillSwitch cancels a run context with a cause. The first Trip wins;
// later calls are ignored.
type KillSwitch struct {
	cancel context.CancelCauseFunc
	once   sync.Once
	mu     sync.Mutex
	cause  error
}

// NewKillSwitch derives a cancellable context from parent. Every stage of
// every target must run under the returned context so that Trip reaches
// all of them.
func NewKillSwitch(parent context.Context) (context.Context, *KillSwitch) {
	ctx, cancel := context.WithCancelCause(parent)
	return ctx, &KillSwitch{cancel: cancel}
}

// Trip cancels the run context with cause.
func (k *KillSwitch) Trip(cause error) {
	if k == nil {
		return
	}
	k.once.Do(func() {
		k.mu.Lock()
		k.cause = cause
		k.mu.Unlock()
		k.cancel(cause)
	})
}

// Tripped returns the cause passed to Trip, or nil.
func (k *KillSwitch) Tripped() error {
	if k == nil {
		return nil
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.cause
}

// Release frees the context's resources without recording a cause.
func (k *KillSwitch) Release() {
	if k == nil {
		return
	}
	k.cancel(nil)
}
