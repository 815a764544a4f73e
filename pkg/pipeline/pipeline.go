// Package pipeline runs a complete personalization batch.
//
// This package implements the render → assemble → verify/merge → archive
// pipeline that the CLI drives. By centralizing this logic, every entry
// point gets the same staging, verification, and archival behavior.
//
// # Architecture
//
// A batch moves through five stages:
//
//  1. Render: burn each request's personalization into its character artwork
//  2. Assemble: place artifacts on template pages as one-page documents
//  3. Verify + flatten: integrity-check and raster-flatten every document
//  4. Merge: concatenate into the master document, digest every page
//  5. Archive: move the master to the archive and apply retention
//
// The whole batch is single-threaded; callers may run it on a background
// goroutine.
//
// # Usage
//
//	runner := pipeline.NewRunner(cfg, logger)
//	result, err := runner.Run(ctx, pipeline.Options{Requests: reqs})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.ArchivePath)
package pipeline

import (
	"context"
	"io"
	"sort"
	"time"

	"github.com/charmbracelet/log"

	"github.com/printlab/arcpress/pkg/errors"
	"github.com/printlab/arcpress/pkg/orders"
)

// Completer is told which input sequences made it into the archived master.
// Implementations mark orders done in whatever bookkeeping system sits
// upstream; the pipeline itself keeps no completion state.
type Completer interface {
	Complete(ctx context.Context, sequences []int) error
}

// Options configures one batch run.
type Options struct {
	// Requests is the input list. Required. Validation reorders it by
	// Sequence; master page order follows the sequence assigned at intake,
	// not the order the caller happened to pass.
	Requests []orders.Request

	// Keep overrides the configured archive retention when > 0.
	Keep int

	// FlattenDPI overrides the configured flatten resolution when > 0.
	FlattenDPI float64

	// Completer, when set, is notified of the consumed sequences after the
	// master is archived. Completion failure does not fail the batch.
	Completer Completer

	// Logger receives stage progress. Defaults to a discard logger.
	Logger *log.Logger

	validated bool
}

// ValidateAndSetDefaults checks required fields and applies defaults.
// Idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if len(o.Requests) == 0 {
		return errors.New(errors.ErrCodeInvalidInput, "no requests to process")
	}
	sort.SliceStable(o.Requests, func(i, j int) bool {
		return o.Requests[i].Sequence < o.Requests[j].Sequence
	})
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	o.validated = true
	return nil
}

// SkippedItem records one request dropped from the batch.
type SkippedItem struct {
	Sequence    int
	CharacterID string
	Reason      string
}

// DigestCollision records distinct master pages that rendered to identical
// content. Duplicates in a print batch usually mean a reused artifact.
type DigestCollision struct {
	Digest string
	Pages  []int // zero-based master page numbers
}

// Verification summarizes the integrity checks of one run.
type Verification struct {
	// PreChecked and PostChecked count documents that passed the one-page
	// checks before and after flattening.
	PreChecked  int
	PostChecked int

	// FinalPageCount is the archived master's page count. FinalOK reports
	// that it matched the number of verified documents; a mismatch is
	// logged as critical but does not fail the batch.
	FinalPageCount int
	FinalOK        bool

	// Collisions lists duplicate-content findings. Never fatal.
	Collisions []DigestCollision
}

// Stats carries per-stage wall times.
type Stats struct {
	RenderTime   time.Duration
	AssembleTime time.Duration
	FlattenTime  time.Duration
	MergeTime    time.Duration
	ArchiveTime  time.Duration
}

// Result is the outcome of a completed batch.
type Result struct {
	// BatchID uniquely identifies this run in logs and hooks.
	BatchID string

	// ArchivePath is the archived master document.
	ArchivePath string

	// Rendered counts artifacts written; Documents counts one-page documents
	// assembled.
	Rendered  int
	Documents int

	// Skipped lists requests that produced no output.
	Skipped []SkippedItem

	// ConsumedSequences are the input sequences present in the master, in
	// page order.
	ConsumedSequences []int

	Verification Verification
	Stats        Stats
}
