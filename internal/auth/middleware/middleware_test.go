package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestIssueParseRoundTrip(t *testing.T) {
	svc := NewService("test-secret", nil, "", "")
	tok, err := svc.IssueJWT("user-42")
	if err != nil {
		t.Fatal(err)
	}
	claims, err := svc.Parse(tok)
	if err != nil {
		t.Fatal(err)
	}
	if claims.Sub != "user-42" {
		t.Fatalf("sub = %q", claims.Sub)
	}

	other := NewService("different-secret", nil, "", "")
	if _, err := other.Parse(tok); err == nil {
		t.Fatal("token signed with another secret accepted")
	}
}

func TestJWTMiddleware(t *testing.T) {
	svc := NewService("test-secret", nil, "", "")
	var gotSub string
	h := JWTMiddleware(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSub = SubjectFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest("GET", "/lessons", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status = %d", rec.Code)
	}

	req = httptest.NewRequest("GET", "/lessons", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token: status = %d", rec.Code)
	}

	tok, err := svc.IssueJWT("user-7")
	if err != nil {
		t.Fatal(err)
	}
	req = httptest.NewRequest("GET", "/lessons", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("valid token: status = %d", rec.Code)
	}
	if gotSub != "user-7" {
		t.Fatalf("subject in context = %q", gotSub)
	}
}
