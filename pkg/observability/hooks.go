// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard
// dependencies on specific observability backends. Consumers register hooks
// at startup to receive events about batch execution, per-item rendering,
// and document verification.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// Hooks are registered by main, not by libraries, which avoids import cycles
// and keeps the core packages free of observability frameworks.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetBatchHooks(&myBatchHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Batch().OnStageStart(ctx, "render", itemCount)
//	// ... run stage ...
//	observability.Batch().OnStageComplete(ctx, "render", duration, err)
package observability

import (
	"context"
	"sync"
	"time"
)

// BatchHooks receives stage-level events from a batch run.
type BatchHooks interface {
	// OnBatchStart fires once per run with the request count.
	OnBatchStart(ctx context.Context, batchID string, requests int)

	// OnStageStart fires when a pipeline stage begins.
	OnStageStart(ctx context.Context, stage string, items int)

	// OnStageComplete fires when a pipeline stage ends.
	OnStageComplete(ctx context.Context, stage string, duration time.Duration, err error)

	// OnBatchComplete fires once per run.
	OnBatchComplete(ctx context.Context, batchID string, duration time.Duration, err error)
}

// ItemHooks receives per-request events.
type ItemHooks interface {
	// OnItemRendered records one personalized artifact written to disk.
	OnItemRendered(ctx context.Context, characterID string, sequence int, duration time.Duration)

	// OnItemSkipped records a request dropped from the batch with a reason.
	OnItemSkipped(ctx context.Context, characterID string, sequence int, reason string)
}

// VerifyHooks receives events from document verification.
type VerifyHooks interface {
	// OnCheckPassed records a passed integrity check.
	OnCheckPassed(ctx context.Context, stage, path string)

	// OnCheckFailed records a failed integrity check.
	OnCheckFailed(ctx context.Context, stage, path string, err error)

	// OnDigestCollision records two pages rendering to identical content.
	OnDigestCollision(ctx context.Context, digest string, pages []int)
}

// NoopBatchHooks is a no-op implementation of BatchHooks.
type NoopBatchHooks struct{}

func (NoopBatchHooks) OnBatchStart(context.Context, string, int) {}
func (NoopBatchHooks) OnStageStart(context.Context, string, int) {}
func (NoopBatchHooks) OnStageComplete(context.Context, string, time.Duration, error) {
}
func (NoopBatchHooks) OnBatchComplete(context.Context, string, time.Duration, error) {
}

// NoopItemHooks is a no-op implementation of ItemHooks.
type NoopItemHooks struct{}

func (NoopItemHooks) OnItemRendered(context.Context, string, int, time.Duration) {}
func (NoopItemHooks) OnItemSkipped(context.Context, string, int, string)         {}

// NoopVerifyHooks is a no-op implementation of VerifyHooks.
type NoopVerifyHooks struct{}

func (NoopVerifyHooks) OnCheckPassed(context.Context, string, string)        {}
func (NoopVerifyHooks) OnCheckFailed(context.Context, string, string, error) {}
func (NoopVerifyHooks) OnDigestCollision(context.Context, string, []int)     {}

var (
	batchHooks  BatchHooks  = NoopBatchHooks{}
	itemHooks   ItemHooks   = NoopItemHooks{}
	verifyHooks VerifyHooks = NoopVerifyHooks{}
	hooksMu     sync.RWMutex
)

// SetBatchHooks registers custom batch hooks.
// This should be called once at application startup before any batch runs.
func SetBatchHooks(h BatchHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		batchHooks = h
	}
}

// SetItemHooks registers custom item hooks.
// This should be called once at application startup before any batch runs.
func SetItemHooks(h ItemHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		itemHooks = h
	}
}

// SetVerifyHooks registers custom verification hooks.
// This should be called once at application startup before any batch runs.
func SetVerifyHooks(h VerifyHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		verifyHooks = h
	}
}

// Batch returns the registered batch hooks.
func Batch() BatchHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return batchHooks
}

// Item returns the registered item hooks.
func Item() ItemHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return itemHooks
}

// Verify returns the registered verification hooks.
func Verify() VerifyHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return verifyHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	batchHooks = NoopBatchHooks{}
	itemHooks = NoopItemHooks{}
	verifyHooks = NoopVerifyHooks{}
}
