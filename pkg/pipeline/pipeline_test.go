package pipeline

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/signintech/gopdf"

	"github.com/printlab/arcpress/pkg/config"
	"github.com/printlab/arcpress/pkg/observability"
	"github.com/printlab/arcpress/pkg/orders"
	"github.com/printlab/arcpress/pkg/pdfops"
)

func writeTemplate(t *testing.T, path string, pages int) {
	t.Helper()
	pdf := gopdf.GoPdf{}
	pdf.Start(gopdf.Config{PageSize: *gopdf.PageSizeA4})
	for i := 0; i < pages; i++ {
		pdf.AddPage()
		pdf.SetFillColor(230, 230, 230)
		pdf.RectFromUpperLeftWithStyle(20, 20+float64(i)*15, 100, 50, "F")
	}
	if err := pdf.WritePdf(path); err != nil {
		t.Fatalf("write template: %v", err)
	}
}

func writeArtwork(t *testing.T, path string, c color.NRGBA) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 300, 260))
	for y := 0; y < 260; y++ {
		for x := 0; x < 300; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Pipeline.ArtworkDir = filepath.Join(dir, "artwork")
	cfg.Pipeline.OutputDir = filepath.Join(dir, "outputs")
	cfg.Pipeline.WorkingDir = filepath.Join(dir, "working")
	cfg.Pipeline.ArchiveDir = filepath.Join(dir, "archive")
	cfg.Pipeline.FlattenDPI = 36
	cfg.Pipeline.DigestDPI = 36
	if err := os.MkdirAll(cfg.Pipeline.ArtworkDir, 0o755); err != nil {
		t.Fatal(err)
	}

	paired := filepath.Join(dir, "format.pdf")
	writeTemplate(t, paired, 3)
	cfg.Layouts.Paired.Template = paired

	single := filepath.Join(dir, "boat_format.pdf")
	writeTemplate(t, single, 1)
	cfg.Layouts.Single.Template = single

	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return cfg
}

func quietLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

type recordingCompleter struct {
	sequences []int
}

func (c *recordingCompleter) Complete(_ context.Context, seqs []int) error {
	c.sequences = append([]int(nil), seqs...)
	return nil
}

func TestRunFullBatch(t *testing.T) {
	cfg := testConfig(t)
	writeArtwork(t, filepath.Join(cfg.Pipeline.ArtworkDir, "dog-a.png"), color.NRGBA{R: 250, A: 255})
	writeArtwork(t, filepath.Join(cfg.Pipeline.ArtworkDir, "dog-b.png"), color.NRGBA{G: 250, A: 255})
	writeArtwork(t, filepath.Join(cfg.Pipeline.ArtworkDir, "dog-c.png"), color.NRGBA{B: 250, A: 255})
	writeArtwork(t, filepath.Join(cfg.Pipeline.ArtworkDir, "boat-x.png"), color.NRGBA{R: 120, G: 120, A: 255})

	// Intake order is scrambled; the assigned sequence decides page order.
	reqs := []orders.Request{
		{Sequence: 4, CharacterID: "dog-c", Personalization: "Cal"},
		{Sequence: 1, CharacterID: "dog-b"}, // verbatim copy
		{Sequence: 3, CharacterID: "ghost-z", Personalization: "Nobody"},
		{Sequence: 0, CharacterID: "dog-a", Personalization: "Amy"},
		{Sequence: 2, CharacterID: "boat-x", Personalization: "The Smiths"},
	}

	completer := &recordingCompleter{}
	runner := NewRunner(cfg, quietLogger())
	result, err := runner.Run(context.Background(), Options{
		Requests:  reqs,
		Completer: completer,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if result.Rendered != 4 {
		t.Errorf("rendered = %d, want 4", result.Rendered)
	}
	// ghost-z has no artwork; dog-c has no pairing partner.
	if len(result.Skipped) != 2 {
		t.Errorf("skipped = %+v, want 2 entries", result.Skipped)
	}
	if result.Documents != 2 {
		t.Errorf("documents = %d, want 2 (one pair, one single)", result.Documents)
	}
	if result.Verification.FinalPageCount != 2 {
		t.Errorf("final pages = %d, want 2", result.Verification.FinalPageCount)
	}
	if !result.Verification.FinalOK {
		t.Error("final verification not ok")
	}

	wantSeqs := []int{0, 1, 2}
	if len(result.ConsumedSequences) != len(wantSeqs) {
		t.Fatalf("consumed = %v, want %v", result.ConsumedSequences, wantSeqs)
	}
	for i, s := range wantSeqs {
		if result.ConsumedSequences[i] != s {
			t.Errorf("consumed = %v, want %v", result.ConsumedSequences, wantSeqs)
			break
		}
	}
	if len(completer.sequences) != 3 {
		t.Errorf("completer got %v", completer.sequences)
	}

	if result.ArchivePath == "" {
		t.Fatal("no archive path")
	}
	if _, err := os.Stat(result.ArchivePath); err != nil {
		t.Errorf("archived master missing: %v", err)
	}
	n, err := pdfops.PageCount(result.ArchivePath)
	if err != nil || n != 2 {
		t.Errorf("archived master pages = %d (err %v), want 2", n, err)
	}

	// The per-order documents move to the archive with the master; nothing
	// shipped stays behind for the next run's stale sweep.
	archivedDocs, _ := filepath.Glob(filepath.Join(cfg.Pipeline.ArchiveDir, "order_output_*.pdf"))
	if len(archivedDocs) != 2 {
		t.Errorf("archived documents = %v, want 2", archivedDocs)
	}
	leftovers, _ := filepath.Glob(filepath.Join(cfg.Pipeline.WorkingDir, "*.pdf"))
	if len(leftovers) != 0 {
		t.Errorf("documents left in working dir: %v", leftovers)
	}
}

// recordingBatchHooks captures the batch completion event.
type recordingBatchHooks struct {
	observability.NoopBatchHooks
	completedID  string
	completedErr error
}

func (h *recordingBatchHooks) OnBatchComplete(_ context.Context, batchID string, _ time.Duration, err error) {
	h.completedID = batchID
	h.completedErr = err
}

func TestRunMissingArtworkDir(t *testing.T) {
	cfg := testConfig(t)
	cfg.Pipeline.ArtworkDir = filepath.Join(cfg.Pipeline.ArtworkDir, "nope")

	hooks := &recordingBatchHooks{}
	observability.SetBatchHooks(hooks)
	t.Cleanup(observability.Reset)

	runner := NewRunner(cfg, quietLogger())
	result, err := runner.Run(context.Background(), Options{
		Requests: []orders.Request{{CharacterID: "dog-a", Personalization: "Amy"}},
	})
	if err == nil {
		t.Fatal("expected fatal error for missing artwork dir")
	}
	if result == nil {
		t.Fatal("failed batch returned no result")
	}

	// The completion hook still fires on a failed batch.
	if hooks.completedID != result.BatchID {
		t.Errorf("completion hook batch = %q, want %q", hooks.completedID, result.BatchID)
	}
	if hooks.completedErr == nil {
		t.Error("completion hook did not carry the batch error")
	}
}

func TestRunNoRequests(t *testing.T) {
	runner := NewRunner(testConfig(t), quietLogger())
	if _, err := runner.Run(context.Background(), Options{}); err == nil {
		t.Fatal("expected error for empty request list")
	}
}

func TestRunRetention(t *testing.T) {
	cfg := testConfig(t)
	writeArtwork(t, filepath.Join(cfg.Pipeline.ArtworkDir, "dog-a.png"), color.NRGBA{R: 250, A: 255})
	writeArtwork(t, filepath.Join(cfg.Pipeline.ArtworkDir, "dog-b.png"), color.NRGBA{G: 250, A: 255})

	// Seed the archive with two stale masters, aged so they sort oldest.
	if err := os.MkdirAll(cfg.Pipeline.ArchiveDir, 0o755); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-48 * time.Hour)
	for _, name := range []string{"MASTER_ORDER_old1.pdf", "MASTER_ORDER_old2.pdf"} {
		p := filepath.Join(cfg.Pipeline.ArchiveDir, name)
		if err := os.WriteFile(p, []byte("stale"), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := os.Chtimes(p, old, old); err != nil {
			t.Fatal(err)
		}
	}

	runner := NewRunner(cfg, quietLogger())
	result, err := runner.Run(context.Background(), Options{
		Requests: []orders.Request{
			{Sequence: 0, CharacterID: "dog-a", Personalization: "Amy"},
			{Sequence: 1, CharacterID: "dog-b", Personalization: "Ben"},
		},
		Keep: 1,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	archived, err := ListArchived(cfg.Pipeline.ArchiveDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(archived) != 1 {
		t.Fatalf("archive holds %v, want only the new master", archived)
	}
	if archived[0] != result.ArchivePath {
		t.Errorf("survivor %s is not the new master %s", archived[0], result.ArchivePath)
	}
}

func TestOptionsOrderBySequence(t *testing.T) {
	opts := Options{Requests: []orders.Request{
		{Sequence: 2, CharacterID: "dog-c"},
		{Sequence: 0, CharacterID: "dog-a"},
		{Sequence: 1, CharacterID: "dog-b"},
	}}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}
	for i, r := range opts.Requests {
		if r.Sequence != i {
			t.Fatalf("requests out of sequence order: %+v", opts.Requests)
		}
	}
}

func TestRunFlattenFailureContinues(t *testing.T) {
	cfg := testConfig(t)
	writeArtwork(t, filepath.Join(cfg.Pipeline.ArtworkDir, "dog-a.png"), color.NRGBA{R: 250, A: 255})
	writeArtwork(t, filepath.Join(cfg.Pipeline.ArtworkDir, "dog-b.png"), color.NRGBA{G: 250, A: 255})

	runner := NewRunner(cfg, quietLogger())
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	runner.now = func() time.Time { return fixed }

	// A directory at the rebuild's temp path makes the document's flatten
	// fail; the structured page must survive and ship anyway.
	if err := os.MkdirAll(cfg.Pipeline.WorkingDir, 0o755); err != nil {
		t.Fatal(err)
	}
	doc := docPath(cfg.Pipeline.WorkingDir, fixed.Format("20060102_150405"), 1)
	if err := os.Mkdir(doc+".flatten.tmp", 0o755); err != nil {
		t.Fatal(err)
	}

	result, err := runner.Run(context.Background(), Options{
		Requests: []orders.Request{
			{Sequence: 0, CharacterID: "dog-a", Personalization: "Amy"},
			{Sequence: 1, CharacterID: "dog-b", Personalization: "Ben"},
		},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Verification.FinalPageCount != 1 || !result.Verification.FinalOK {
		t.Errorf("verification = %+v, want 1 final page", result.Verification)
	}
	if _, err := os.Stat(result.ArchivePath); err != nil {
		t.Errorf("archived master missing: %v", err)
	}
}

// truncatingHooks empties the first document the moment it passes its
// pre-flatten check, so the later checks see a broken file.
type truncatingHooks struct {
	observability.NoopVerifyHooks
	done bool
}

func (h *truncatingHooks) OnCheckPassed(_ context.Context, stage, path string) {
	if stage == "pre-flatten" && !h.done {
		h.done = true
		if err := os.Truncate(path, 0); err != nil {
			panic(err)
		}
	}
}

func TestRunDropsFailingDocument(t *testing.T) {
	cfg := testConfig(t)
	writeArtwork(t, filepath.Join(cfg.Pipeline.ArtworkDir, "dog-a.png"), color.NRGBA{R: 250, A: 255})
	writeArtwork(t, filepath.Join(cfg.Pipeline.ArtworkDir, "dog-b.png"), color.NRGBA{G: 250, A: 255})
	writeArtwork(t, filepath.Join(cfg.Pipeline.ArtworkDir, "dog-c.png"), color.NRGBA{B: 250, A: 255})
	writeArtwork(t, filepath.Join(cfg.Pipeline.ArtworkDir, "dog-d.png"), color.NRGBA{R: 250, G: 250, A: 255})

	observability.SetVerifyHooks(&truncatingHooks{})
	t.Cleanup(observability.Reset)

	runner := NewRunner(cfg, quietLogger())
	result, err := runner.Run(context.Background(), Options{
		Requests: []orders.Request{
			{Sequence: 0, CharacterID: "dog-a", Personalization: "Amy"},
			{Sequence: 1, CharacterID: "dog-b", Personalization: "Ben"},
			{Sequence: 2, CharacterID: "dog-c", Personalization: "Cal"},
			{Sequence: 3, CharacterID: "dog-d", Personalization: "Dot"},
		},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	// The broken document drops out; the batch finishes with the survivor.
	if result.Documents != 2 {
		t.Errorf("documents = %d, want 2 assembled", result.Documents)
	}
	if result.Verification.PostChecked != 1 {
		t.Errorf("post-checked = %d, want 1", result.Verification.PostChecked)
	}
	if result.Verification.FinalPageCount != 1 || !result.Verification.FinalOK {
		t.Errorf("verification = %+v, want 1 final page", result.Verification)
	}
	wantSeqs := []int{2, 3}
	if len(result.ConsumedSequences) != 2 ||
		result.ConsumedSequences[0] != wantSeqs[0] ||
		result.ConsumedSequences[1] != wantSeqs[1] {
		t.Errorf("consumed = %v, want %v", result.ConsumedSequences, wantSeqs)
	}
}

// removingHooks deletes every document right after its post-flatten check,
// so the merge stage has nothing to read.
type removingHooks struct {
	observability.NoopVerifyHooks
}

func (removingHooks) OnCheckPassed(_ context.Context, stage, path string) {
	if stage == "post-flatten" {
		os.Remove(path)
	}
}

func TestRunMergeFailureKeepsResult(t *testing.T) {
	cfg := testConfig(t)
	writeArtwork(t, filepath.Join(cfg.Pipeline.ArtworkDir, "dog-a.png"), color.NRGBA{R: 250, A: 255})
	writeArtwork(t, filepath.Join(cfg.Pipeline.ArtworkDir, "dog-b.png"), color.NRGBA{G: 250, A: 255})

	observability.SetVerifyHooks(removingHooks{})
	t.Cleanup(observability.Reset)

	runner := NewRunner(cfg, quietLogger())
	result, err := runner.Run(context.Background(), Options{
		Requests: []orders.Request{
			{Sequence: 0, CharacterID: "dog-a", Personalization: "Amy"},
			{Sequence: 1, CharacterID: "dog-b", Personalization: "Ben"},
		},
	})
	if err == nil {
		t.Fatal("expected merge failure")
	}
	if result == nil {
		t.Fatal("merge failure returned no result")
	}
	// The stages before the merge still report their work.
	if result.Rendered != 2 || result.Documents != 1 {
		t.Errorf("rendered=%d documents=%d, want 2 and 1", result.Rendered, result.Documents)
	}
	if result.ArchivePath != "" {
		t.Errorf("no master should be archived, got %s", result.ArchivePath)
	}
}

func TestFinalVerify(t *testing.T) {
	master := filepath.Join(t.TempDir(), "master.pdf")
	writeTemplate(t, master, 2)

	result := &Result{}
	finalVerify(context.Background(), master, 3, result, quietLogger())
	if result.Verification.FinalOK {
		t.Error("page-count mismatch marked ok")
	}
	if result.Verification.FinalPageCount != 2 {
		t.Errorf("final pages = %d, want 2", result.Verification.FinalPageCount)
	}

	result = &Result{}
	finalVerify(context.Background(), master, 2, result, quietLogger())
	if !result.Verification.FinalOK {
		t.Error("matching page count not marked ok")
	}
}

func TestGroupDocuments(t *testing.T) {
	mk := func(seq int, style string) renderedItem {
		return renderedItem{req: orders.Request{Sequence: seq}, style: style}
	}

	groups, unpaired := groupDocuments([]renderedItem{
		mk(0, config.StylePaired),
		mk(1, config.StylePaired),
		mk(2, config.StyleSingle),
		mk(3, config.StylePaired),
	})
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}
	if got := groups[0].sequences(); got[0] != 0 || got[1] != 1 {
		t.Errorf("first group sequences = %v", got)
	}
	if got := groups[1].sequences(); len(got) != 1 || got[0] != 2 {
		t.Errorf("single group sequences = %v", got)
	}
	if unpaired == nil || unpaired.req.Sequence != 3 {
		t.Errorf("unpaired = %+v, want sequence 3", unpaired)
	}

	groups, unpaired = groupDocuments([]renderedItem{
		mk(0, config.StylePaired),
		mk(1, config.StylePaired),
	})
	if len(groups) != 1 || unpaired != nil {
		t.Errorf("even paired input: groups=%d unpaired=%+v", len(groups), unpaired)
	}
}

func TestCollisionScan(t *testing.T) {
	found := collisionScan([]string{"aa", "bb", "aa", "cc", "bb", "aa"})
	if len(found) != 2 {
		t.Fatalf("got %d collisions, want 2", len(found))
	}
	if found[0].Digest != "aa" || len(found[0].Pages) != 3 {
		t.Errorf("first collision = %+v", found[0])
	}
	if found[1].Digest != "bb" || len(found[1].Pages) != 2 {
		t.Errorf("second collision = %+v", found[1])
	}

	if found := collisionScan([]string{"aa", "bb", "cc"}); found != nil {
		t.Errorf("unique digests reported collisions: %+v", found)
	}
}

func TestStyleFont(t *testing.T) {
	s := config.Default().Styles.Paired

	candidates, size := styleFont(s, "dog-husky")
	if len(candidates) != 1 || candidates[0] != "font/blueberry.ttf" {
		t.Errorf("override candidates = %v", candidates)
	}
	if size != 90 {
		t.Errorf("override size = %d, want 90", size)
	}

	candidates, size = styleFont(s, "cat-tabby")
	if size != s.FontSize {
		t.Errorf("unmatched size = %d, want base %d", size, s.FontSize)
	}
	if len(candidates) != len(s.FontCandidates) {
		t.Errorf("unmatched candidates = %v", candidates)
	}
}

func TestFindArtworkCaseInsensitive(t *testing.T) {
	dir := t.TempDir()
	writeArtwork(t, filepath.Join(dir, "Dog-Husky.png"), color.NRGBA{A: 255})

	path, ok := findArtwork(dir, "dog-husky")
	if !ok {
		t.Fatal("case-insensitive lookup failed")
	}
	if filepath.Base(path) != "Dog-Husky.png" {
		t.Errorf("resolved %s", path)
	}

	if _, ok := findArtwork(dir, "missing"); ok {
		t.Error("found artwork that does not exist")
	}
}

func TestClearStale(t *testing.T) {
	out := t.TempDir()
	work := t.TempDir()
	stale := []string{
		filepath.Join(out, "output_001.png"),
		filepath.Join(work, "order_output_20240101_000000_1.pdf"),
		filepath.Join(work, "MASTER_ORDER_20240101_000000.pdf"),
	}
	keepPath := filepath.Join(work, "notes.txt")
	for _, p := range append(stale, keepPath) {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	if err := clearStale(out, work); err != nil {
		t.Fatal(err)
	}
	for _, p := range stale {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("%s survived", p)
		}
	}
	if _, err := os.Stat(keepPath); err != nil {
		t.Errorf("unrelated file removed: %v", err)
	}
}
