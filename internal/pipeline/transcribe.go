package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/study-gate/studygate/internal/errs"
	"github.com/study-gate/studygate/internal/lesson"
	"github.com/study-gate/studygate/internal/llm"
	"github.com/study-gate/studygate/internal/metrics"
	"github.com/study-gate/studygate/internal/render"
)

// processDocument downloads one source document, splits it into pages and
// fans out one transcription worker per page through a bounded errgroup.
// Worker failures are captured per page (never returned to the group), so a
// bad page cannot cancel its siblings; the orchestrator waits for all pages
// to settle. Returned transcripts are ordered by page number with failed
// pages absent, alongside the derived page count, which wins over the
// declared one. Errors from this function are document-level and fatal.
func (o *Orchestrator) processDocument(ctx context.Context, lessonID string, doc lesson.Document, progress func(done, total int)) ([]lesson.Transcript, int, error) {
	tmpDir, err := os.MkdirTemp("", "studygate-doc-*")
	if err != nil {
		return nil, 0, errs.Upstream(err, "temp dir")
	}
	defer os.RemoveAll(tmpDir)

	srcPath := filepath.Join(tmpDir, "source.pdf")
	if err := o.downloadBlob(ctx, doc.BlobKey, srcPath); err != nil {
		return nil, 0, err
	}

	pagePaths, err := o.renderer.SplitPages(srcPath, tmpDir)
	if err != nil {
		return nil, 0, errs.Upstream(err, "split document %s", doc.Filename)
	}
	if len(pagePaths) != doc.PageCount {
		// Derived page count wins over the declared one.
		if err := o.store.SetDocumentPageCount(ctx, doc.ID, len(pagePaths)); err != nil {
			return nil, 0, err
		}
		doc.PageCount = len(pagePaths)
	}

	results := make([]*lesson.Transcript, len(pagePaths))
	var done int64

	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(o.cfg.Workers)
	for i, pagePath := range pagePaths {
		pageNum := i + 1
		slot := i
		path := pagePath
		eg.Go(func() error {
			t, err := o.transcribePage(gctx, lessonID, doc, pageNum, path)
			if err != nil {
				// Skip the page; downstream simply never sees it.
				metrics.PageFailed()
				log.Printf("pipeline: doc %s page %d skipped: %v", doc.ID, pageNum, err)
				return nil
			}
			metrics.PageTranscribed()
			results[slot] = &t
			if progress != nil {
				progress(int(atomic.AddInt64(&done, 1)), doc.PageCount)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, 0, err
	}

	out := make([]lesson.Transcript, 0, len(results))
	for _, t := range results {
		if t != nil {
			out = append(out, *t)
		}
	}
	return out, len(pagePaths), nil
}

// transcribePage is the transcription worker for one (document, page) pair:
// read the page blob, upload it, call the vision service, upsert the
// transcript. Idempotent: re-running overwrites both the blob and the row.
func (o *Orchestrator) transcribePage(ctx context.Context, lessonID string, doc lesson.Document, pageNum int, pagePath string) (lesson.Transcript, error) {
	data, err := os.ReadFile(pagePath)
	if err != nil {
		return lesson.Transcript{}, errs.Upstream(err, "read page %d", pageNum)
	}

	key := pageKey(lessonID, doc, pageNum)
	if _, err := o.blobs.Put(ctx, key, bytes.NewReader(data)); err != nil {
		return lesson.Transcript{}, errs.Upstream(err, "upload page %d", pageNum)
	}

	text, err := o.llm.TranscribePage(ctx, llm.Blob{Data: data, MIMEType: render.PageMIMEType})
	if err != nil {
		return lesson.Transcript{}, err
	}

	t := lesson.Transcript{
		DocumentID: doc.ID,
		PageNumber: pageNum,
		ImageKey:   key,
		Content:    text,
		HasVisuals: hasVisualContent(text),
	}
	if err := o.store.UpsertTranscript(ctx, t); err != nil {
		return lesson.Transcript{}, err
	}
	return t, nil
}

func pageKey(lessonID string, doc lesson.Document, pageNum int) string {
	if doc.SetID != "" {
		return fmt.Sprintf("sets/%s/docs/%s/pages/%d.pdf", doc.SetID, doc.ID, pageNum)
	}
	return fmt.Sprintf("lessons/%s/docs/%s/pages/%d.pdf", lessonID, doc.ID, pageNum)
}

// Marker vocabulary the transcription prompt uses for non-text elements.
var visualMarkers = []string{"[image:", "[diagram:", "[table:", "[chart:", "[figure:"}

func hasVisualContent(text string) bool {
	low := strings.ToLower(text)
	for _, m := range visualMarkers {
		if strings.Contains(low, m) {
			return true
		}
	}
	return false
}

func (o *Orchestrator) downloadBlob(ctx context.Context, key, dst string) error {
	rc, err := o.blobs.Get(ctx, key)
	if err != nil {
		return errs.Upstream(err, "download %s", key)
	}
	defer rc.Close()
	f, err := os.Create(dst)
	if err != nil {
		return errs.Upstream(err, "create %s", dst)
	}
	defer f.Close()
	if _, err := io.Copy(f, rc); err != nil {
		return errs.Upstream(err, "copy %s", key)
	}
	return nil
}
