package http

import (
	"encoding/json"
	"log"

	nethttp "net/http"

	authmw "github.com/study-gate/studygate/internal/auth/middleware"
	"github.com/study-gate/studygate/internal/errs"
)

// Handlers only; routes remain in main.go

func writeJSON(w nethttp.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr maps the error taxonomy onto HTTP statuses. Internal errors are
// logged server-side and surfaced as an opaque 500.
func writeErr(w nethttp.ResponseWriter, err error) {
	status := nethttp.StatusInternalServerError
	msg := err.Error()
	switch errs.KindOf(err) {
	case errs.KindValidation, errs.KindIncompleteSubmission, errs.KindNoContent:
		status = nethttp.StatusBadRequest
	case errs.KindPayloadTooLarge:
		status = nethttp.StatusRequestEntityTooLarge
	case errs.KindAuth:
		status = nethttp.StatusUnauthorized
	case errs.KindAccessDenied:
		status = nethttp.StatusForbidden
	case errs.KindNotFound:
		status = nethttp.StatusNotFound
	case errs.KindUpstream, errs.KindSynthesisParse:
		status = nethttp.StatusBadGateway
	default:
		log.Printf("http: internal error: %v", err)
		msg = "internal error"
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

// requireOwner hides resources owned by another user behind not-found, so
// callers cannot tell a foreign resource from a missing one.
func requireOwner(r *nethttp.Request, ownerID, resource, id string) error {
	if ownerID != authmw.SubjectFromContext(r.Context()) {
		return errs.NotFound("%s %s not found", resource, id)
	}
	return nil
}

func decodeJSON(r *nethttp.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errs.Validation("invalid JSON body: %v", err)
	}
	return nil
}
