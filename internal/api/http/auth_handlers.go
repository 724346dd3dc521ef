package http

import (
	nethttp "net/http"

	authmw "github.com/study-gate/studygate/internal/auth/middleware"
	"github.com/study-gate/studygate/internal/errs"
)

// POST /auth/login  { "username": "...", "password": "..." }
func LoginHandler(svc *authmw.Service) nethttp.HandlerFunc {
	type request struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var req request
		if err := decodeJSON(r, &req); err != nil {
			writeErr(w, err)
			return
		}
		sub, err := svc.Login(r.Context(), req.Username, req.Password)
		if err != nil {
			writeErr(w, errs.Auth("invalid credentials"))
			return
		}
		tok, err := svc.IssueJWT(sub)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, nethttp.StatusOK, map[string]string{"access_token": tok})
	}
}

// POST /auth/register  { "username": "...", "password": "..." }
func RegisterHandler(svc *authmw.Service) nethttp.HandlerFunc {
	type request struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	return func(w nethttp.ResponseWriter, r *nethttp.Request) {
		var req request
		if err := decodeJSON(r, &req); err != nil {
			writeErr(w, err)
			return
		}
		id, err := svc.Register(r.Context(), req.Username, req.Password)
		if err != nil {
			writeErr(w, errs.Validation("%v", err))
			return
		}
		tok, err := svc.IssueJWT(id)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, nethttp.StatusCreated, map[string]string{"id": id, "access_token": tok})
	}
}
