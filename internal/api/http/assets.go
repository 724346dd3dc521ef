package http

import (
	"io"
	"strings"

	nethttp "net/http"

	"github.com/go-chi/chi/v5"

	"github.com/study-gate/studygate/internal/storage"
)

// MountAssets serves stored blobs (source documents, page images) directly.
// Deployments on the filesystem blob driver use this instead of signed URLs;
// GCS deployments serve V4 signed URLs and never hit these routes.
func MountAssets(r chi.Router, bs storage.BlobStore) {
	// GET /assets/*  -> the blob at whatever key follows /assets/
	r.Get("/*", func(w nethttp.ResponseWriter, req *nethttp.Request) {
		key := strings.TrimPrefix(chi.URLParam(req, "*"), "/")
		if key == "" || strings.Contains(key, "..") {
			nethttp.Error(w, "bad key", nethttp.StatusBadRequest)
			return
		}
		rc, err := bs.Get(req.Context(), key)
		if err != nil {
			nethttp.Error(w, "not found", nethttp.StatusNotFound)
			return
		}
		defer rc.Close()
		if strings.HasSuffix(key, ".pdf") {
			w.Header().Set("Content-Type", "application/pdf")
		} else {
			w.Header().Set("Content-Type", "application/octet-stream")
		}
		_, _ = io.Copy(w, rc)
	})
}
