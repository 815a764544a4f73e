package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/printlab/arcpress/pkg/config"
	"github.com/printlab/arcpress/pkg/errors"
	"github.com/printlab/arcpress/pkg/fontkit"
	"github.com/printlab/arcpress/pkg/observability"
	"github.com/printlab/arcpress/pkg/orders"
	"github.com/printlab/arcpress/pkg/pagedoc"
	"github.com/printlab/arcpress/pkg/pdfops"
)

// Runner executes batches against one configuration.
//
// The Runner is stateless except for the font cache and logger - it doesn't
// store batch results. It is single-threaded per Run; callers wanting a
// responsive UI run Run on a background goroutine.
type Runner struct {
	Config *config.Config
	Fonts  *fontkit.Provider
	Logger *log.Logger

	// now is the clock used for batch timestamps.
	now func() time.Time
}

// NewRunner creates a runner for the given configuration.
// A nil config uses Default; a nil logger uses log.Default.
func NewRunner(cfg *config.Config, logger *log.Logger) *Runner {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Config: cfg,
		Fonts:  fontkit.NewProvider(),
		Logger: logger,
		now:    time.Now,
	}
}

// Run executes the complete render → assemble → verify → merge → archive
// batch. The returned error is nil only when the master document has been
// archived; everything recoverable (missing artwork, unpaired remainder,
// flatten failures, digest collisions, final page-count mismatch) lands in
// the Result instead. On error the partial Result is still returned, since
// documents produced before the failure remain valid on disk.
func (r *Runner) Run(ctx context.Context, opts Options) (result *Result, err error) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	logger := opts.Logger

	pl := r.Config.Pipeline
	flattenDPI := pl.FlattenDPI
	if opts.FlattenDPI > 0 {
		flattenDPI = opts.FlattenDPI
	}
	keep := pl.Retention
	if opts.Keep > 0 {
		keep = opts.Keep
	}

	result = &Result{BatchID: uuid.NewString()}
	timestamp := r.now().Format("20060102_150405")

	batchStart := time.Now()
	observability.Batch().OnBatchStart(ctx, result.BatchID, len(opts.Requests))
	defer func() {
		observability.Batch().OnBatchComplete(ctx, result.BatchID, time.Since(batchStart), err)
	}()

	// Fatal input checks before any work.
	if _, serr := os.Stat(pl.ArtworkDir); serr != nil {
		return result, errors.New(errors.ErrCodeArtworkDirNotFound, "artwork dir %s not found", pl.ArtworkDir)
	}
	if err := os.MkdirAll(pl.OutputDir, 0o755); err != nil {
		return result, errors.Wrap(errors.ErrCodeInternal, err, "create output dir")
	}
	if err := os.MkdirAll(pl.WorkingDir, 0o755); err != nil {
		return result, errors.Wrap(errors.ErrCodeInternal, err, "create working dir")
	}
	if err := clearStale(pl.OutputDir, pl.WorkingDir); err != nil {
		return result, errors.Wrap(errors.ErrCodeInternal, err, "clear stale outputs")
	}

	// Stage 1: Render
	renderStart := time.Now()
	observability.Batch().OnStageStart(ctx, "render", len(opts.Requests))

	var rendered []renderedItem
	for _, req := range opts.Requests {
		if cerr := ctx.Err(); cerr != nil {
			return result, errors.Wrap(errors.ErrCodeInternal, cerr, "batch canceled")
		}

		styleName := r.Config.StyleFor(req.CharacterID)
		artwork, ok := findArtwork(pl.ArtworkDir, req.CharacterID)
		if !ok {
			r.skip(ctx, result, req, "artwork not found", logger)
			continue
		}

		itemStart := time.Now()
		out := artifactPath(pl.OutputDir, req.Sequence)
		if rerr := r.renderOne(req, styleName, artwork, out); rerr != nil {
			// Configuration errors would repeat for every request.
			if errors.Fatal(rerr) {
				return result, rerr
			}
			logger.Error("render failed", "character", req.CharacterID, "sequence", req.Sequence, "err", rerr)
			r.skip(ctx, result, req, rerr.Error(), logger)
			continue
		}

		rendered = append(rendered, renderedItem{req: req, style: styleName, path: out})
		observability.Item().OnItemRendered(ctx, req.CharacterID, req.Sequence, time.Since(itemStart))
	}
	result.Rendered = len(rendered)
	result.Stats.RenderTime = time.Since(renderStart)
	observability.Batch().OnStageComplete(ctx, "render", result.Stats.RenderTime, nil)

	logger.Info("rendered artifacts",
		"rendered", result.Rendered,
		"skipped", len(result.Skipped),
		"duration", result.Stats.RenderTime)

	if len(rendered) == 0 {
		return result, errors.New(errors.ErrCodeInvalidInput, "no request produced an artifact")
	}

	// Stage 2: Assemble
	assembleStart := time.Now()
	groups, unpaired := groupDocuments(rendered)
	if unpaired != nil {
		r.skip(ctx, result, unpaired.req, "no pairing partner", logger)
	}
	if len(groups) == 0 {
		return result, errors.New(errors.ErrCodeInvalidInput, "no documents to assemble")
	}
	observability.Batch().OnStageStart(ctx, "assemble", len(groups))

	assemblers := make(map[string]*pagedoc.Assembler)
	var docs []assembledDoc
	for i, g := range groups {
		asm, ok := assemblers[g.style]
		if !ok {
			var aerr error
			asm, aerr = pagedoc.NewAssembler(r.Config.Layout(g.style))
			if aerr != nil {
				// Missing or unreadable template stops the batch.
				return result, aerr
			}
			assemblers[g.style] = asm
		}

		artifacts := make([]string, len(g.items))
		for j, it := range g.items {
			artifacts[j] = it.path
		}

		doc := docPath(pl.WorkingDir, timestamp, i+1)
		skippedSlots, aerr := asm.Assemble(artifacts, doc)
		if aerr != nil {
			if errors.Fatal(aerr) {
				return result, aerr
			}
			logger.Error("assembly failed, dropping document", "document", doc, "err", aerr)
			for _, it := range g.items {
				r.skip(ctx, result, it.req, "assembly failed", logger)
			}
			continue
		}
		for _, slot := range skippedSlots {
			logger.Warn("slot left empty", "document", doc, "slot", slot, "artifact", artifacts[slot])
		}
		docs = append(docs, assembledDoc{path: doc, group: g})
	}
	result.Documents = len(docs)
	result.Stats.AssembleTime = time.Since(assembleStart)
	observability.Batch().OnStageComplete(ctx, "assemble", result.Stats.AssembleTime, nil)

	logger.Info("assembled documents",
		"documents", result.Documents,
		"duration", result.Stats.AssembleTime)

	// Stage 3: Verify + flatten each document. A document that fails a check
	// is dropped from the merge set; the batch carries on with the rest.
	flattenStart := time.Now()
	observability.Batch().OnStageStart(ctx, "flatten", len(docs))
	var verified []assembledDoc
	for _, d := range docs {
		if verr := checkOnePage(d.path); verr != nil {
			observability.Verify().OnCheckFailed(ctx, "pre-flatten", d.path, verr)
			logger.Error("document failed pre-flatten check, dropping", "document", d.path, "err", verr)
			continue
		}
		observability.Verify().OnCheckPassed(ctx, "pre-flatten", d.path)
		result.Verification.PreChecked++

		// A structured page that will not flatten still prints.
		if ferr := pdfops.Flatten(d.path, flattenDPI); ferr != nil {
			logger.Warn("flatten failed, keeping structured page", "document", d.path, "err", ferr)
		}

		if verr := checkOnePage(d.path); verr != nil {
			observability.Verify().OnCheckFailed(ctx, "post-flatten", d.path, verr)
			logger.Error("document failed post-flatten check, dropping", "document", d.path, "err", verr)
			continue
		}
		observability.Verify().OnCheckPassed(ctx, "post-flatten", d.path)
		result.Verification.PostChecked++
		verified = append(verified, d)
	}
	result.Stats.FlattenTime = time.Since(flattenStart)
	observability.Batch().OnStageComplete(ctx, "flatten", result.Stats.FlattenTime, nil)

	if len(verified) == 0 {
		return result, errors.New(errors.ErrCodeMergeFailed, "no document passed verification")
	}

	// Stage 4: Merge and digest
	mergeStart := time.Now()
	observability.Batch().OnStageStart(ctx, "merge", len(verified))

	master := masterPath(pl.WorkingDir, timestamp)
	docPaths := make([]string, len(verified))
	for i, d := range verified {
		docPaths[i] = d.path
	}
	pageSources, merr := pdfops.Merge(docPaths, master)
	if merr != nil {
		// The per-order documents stay valid even without a master.
		result.Stats.MergeTime = time.Since(mergeStart)
		observability.Batch().OnStageComplete(ctx, "merge", result.Stats.MergeTime, merr)
		return result, merr
	}
	for _, d := range verified {
		result.ConsumedSequences = append(result.ConsumedSequences, d.group.sequences()...)
	}

	digests := make([]string, len(pageSources))
	for page := range pageSources {
		d, derr := pdfops.Digest(master, page, pl.DigestDPI)
		if derr != nil {
			return result, derr
		}
		digests[page] = d
	}
	// Audit trail: which source built each master page.
	for page, src := range pageSources {
		logger.Info("master page",
			"page", page, "source", filepath.Base(src), "digest", digests[page][:12])
	}
	result.Verification.Collisions = collisionScan(digests)
	for _, c := range result.Verification.Collisions {
		logger.Error("duplicate page content in master",
			"digest", c.Digest[:12], "pages", c.Pages)
		observability.Verify().OnDigestCollision(ctx, c.Digest, c.Pages)
	}

	if ferr := pdfops.Flatten(master, flattenDPI); ferr != nil {
		logger.Warn("master flatten failed, keeping structured pages", "master", master, "err", ferr)
	}

	finalVerify(ctx, master, len(verified), result, logger)
	result.Stats.MergeTime = time.Since(mergeStart)
	observability.Batch().OnStageComplete(ctx, "merge", result.Stats.MergeTime, nil)

	logger.Info("merged master document",
		"pages", result.Verification.FinalPageCount,
		"collisions", len(result.Verification.Collisions),
		"duration", result.Stats.MergeTime)

	// Stage 5: Archive the per-order documents and the master together, so
	// the next run's stale sweep never destroys shipped output.
	archiveStart := time.Now()
	observability.Batch().OnStageStart(ctx, "archive", len(docPaths)+1)

	for _, doc := range docPaths {
		archivedDoc, aerr := archiveFile(doc, pl.ArchiveDir)
		if aerr != nil {
			return result, aerr
		}
		logger.Debug("archived document", "path", archivedDoc)
	}
	archived, aerr := archiveFile(master, pl.ArchiveDir)
	if aerr != nil {
		return result, aerr
	}
	result.ArchivePath = archived

	pruned, perr2 := RetainRecent(pl.ArchiveDir, keep)
	if perr2 != nil {
		return result, perr2
	}
	for _, p := range pruned {
		logger.Debug("pruned archived master", "path", p)
	}
	result.Stats.ArchiveTime = time.Since(archiveStart)
	observability.Batch().OnStageComplete(ctx, "archive", result.Stats.ArchiveTime, nil)

	if opts.Completer != nil {
		if cerr := opts.Completer.Complete(ctx, result.ConsumedSequences); cerr != nil {
			logger.Warn("completion callback failed", "err", cerr)
		}
	}

	logger.Info("batch archived",
		"path", result.ArchivePath,
		"pages", result.Verification.FinalPageCount,
		"pruned", len(pruned))
	return result, nil
}

func (r *Runner) skip(ctx context.Context, result *Result, req orders.Request, reason string, logger *log.Logger) {
	logger.Warn("skipping request",
		"character", req.CharacterID, "sequence", req.Sequence, "reason", reason)
	observability.Item().OnItemSkipped(ctx, req.CharacterID, req.Sequence, reason)
	result.Skipped = append(result.Skipped, SkippedItem{
		Sequence:    req.Sequence,
		CharacterID: req.CharacterID,
		Reason:      reason,
	})
}
