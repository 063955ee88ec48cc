package httputil

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"github.com/authplane/authplane/pkg/observability"
)

func TestParseJSON(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"admin"}`))
	var dest struct {
		Name string `json:"name"`
	}
	if err := ParseJSON(r, &dest); err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	if dest.Name != "admin" {
		t.Errorf("name = %q", dest.Name)
	}
}

func TestParseJSONOrErrorInvalidBody(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{broken`))
	rec := httptest.NewRecorder()
	var dest map[string]string
	if ParseJSONOrError(rec, r, &dest) {
		t.Fatal("expected false for malformed JSON")
	}
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestPathVar(t *testing.T) {
	router := mux.NewRouter()
	var got string
	router.HandleFunc("/tenants/{tenant_id}", func(w http.ResponseWriter, r *http.Request) {
		var ok bool
		got, ok = PathVarOrError(w, r, "tenant_id")
		if !ok {
			t.Error("expected path var to resolve")
		}
	})
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/tenants/t-42", nil))
	if got != "t-42" {
		t.Errorf("tenant_id = %q", got)
	}
}

func TestPathVarMissing(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, err := PathVar(r, "tenant_id"); err == nil {
		t.Fatal("expected error for missing path parameter")
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if seen == "" {
		t.Fatal("expected generated request ID in context")
	}
	if rec.Header().Get("X-Request-ID") != seen {
		t.Error("response header should echo the request ID")
	}

	// A caller-supplied ID is kept.
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Request-ID", "given")
	h.ServeHTTP(httptest.NewRecorder(), r)
	if seen != "given" {
		t.Errorf("request ID = %q, want given", seen)
	}
}

func TestRequestIDReachesContextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := observability.NewLogger(observability.InfoLevel, &buf)
	h := RequestIDMiddleware(LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		observability.FromContext(r.Context()).Info("inside handler")
	})))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Request-ID", "req-7")
	h.ServeHTTP(httptest.NewRecorder(), r)

	if !strings.Contains(buf.String(), `"request_id":"req-7"`) {
		t.Fatalf("log output missing request id: %s", buf.String())
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	h := RecoveryMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestChainOrder(t *testing.T) {
	var order []string
	mk := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(mk("first"), mk("second"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	want := []string{"first", "second", "handler"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}
