package pipeline

import (
	"context"
	"os"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/printlab/arcpress/pkg/errors"
	"github.com/printlab/arcpress/pkg/observability"
	"github.com/printlab/arcpress/pkg/pdfops"
)

// checkOnePage asserts that a generated document is exactly one non-empty
// page. Anything else means assembly produced garbage and the batch must not
// continue into the master.
func checkOnePage(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return errors.Wrap(errors.ErrCodeVerifyMismatch, err, "stat %s", path)
	}
	if info.Size() == 0 {
		return errors.New(errors.ErrCodeVerifyMismatch, "%s is empty", path)
	}
	n, err := pdfops.PageCount(path)
	if err != nil {
		return err
	}
	if n != 1 {
		return errors.New(errors.ErrCodeVerifyMismatch, "%s has %d pages, want 1", path, n)
	}
	return nil
}

// finalVerify checks the finished master's page count against the number of
// verified documents. A mismatch is critical for the audit trail but never
// fails the batch; the master still ships, so the finding is logged at Error
// and recorded on the Result.
func finalVerify(ctx context.Context, master string, want int, result *Result, logger *log.Logger) {
	finalPages, err := pdfops.PageCount(master)
	if err != nil {
		logger.Error("final page count unreadable", "master", master, "err", err)
		observability.Verify().OnCheckFailed(ctx, "final", master, err)
		return
	}
	result.Verification.FinalPageCount = finalPages

	if finalPages != want {
		verr := errors.New(errors.ErrCodeVerifyMismatch,
			"master has %d pages, want %d", finalPages, want)
		logger.Error("final page count mismatch", "master", master, "err", verr)
		observability.Verify().OnCheckFailed(ctx, "final", master, verr)
		return
	}
	observability.Verify().OnCheckPassed(ctx, "final", master)
	result.Verification.FinalOK = true
}

// collisionScan groups master pages by content digest and reports every
// digest shared by more than one page. Page numbers are zero-based and
// sorted.
func collisionScan(digests []string) []DigestCollision {
	byDigest := make(map[string][]int)
	for page, d := range digests {
		byDigest[d] = append(byDigest[d], page)
	}

	var found []DigestCollision
	for d, pages := range byDigest {
		if len(pages) > 1 {
			found = append(found, DigestCollision{Digest: d, Pages: pages})
		}
	}
	sort.Slice(found, func(i, j int) bool {
		return found[i].Pages[0] < found[j].Pages[0]
	})
	return found
}
