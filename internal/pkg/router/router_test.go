package router

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shandysiswandi/timestone/internal/pkg/clock"
	"github.com/shandysiswandi/timestone/internal/pkg/config"
	"github.com/shandysiswandi/timestone/internal/pkg/goerror"
	"github.com/shandysiswandi/timestone/internal/pkg/uid"
)

func newTestRouter(t *testing.T, yaml string) (*Router, *clock.MutableTime) {
	t.Helper()

	cfg, err := config.NewViperFromBytes("yaml", []byte(yaml))
	if err != nil {
		t.Fatalf("NewViperFromBytes() error = %v", err)
	}
	mt := clock.NewMutable(clock.WithMillis(0), clock.WithLocation(time.UTC))

	return NewRouter(Config{Config: cfg, UUID: uid.Static("cid-1"), Clock: mt}), mt
}

func serve(r http.Handler, method, target, body string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("response is not JSON: %v (%s)", err, rec.Body.String())
	}
	return out
}

func TestHealthUsesClock(t *testing.T) {
	// Arrange
	r, mt := newTestRouter(t, "app: {}")
	mt.Advance(90 * time.Second)

	// Act
	rec := serve(r, http.MethodGet, "/health", "")

	// Assert
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	data, _ := decodeBody(t, rec)["data"].(map[string]any)
	if data["time"] != "1970-01-01T00:01:30Z" {
		t.Fatalf("time = %v, want the controlled instant", data["time"])
	}
	if rec.Header().Get(HeaderCorrelationID) != "cid-1" {
		t.Fatalf("correlation header = %q", rec.Header().Get(HeaderCorrelationID))
	}
}

func TestCorrelationIDFromHeader(t *testing.T) {
	r, _ := newTestRouter(t, "app: {}")

	tests := []struct {
		name   string
		header []string
		want   string
	}{
		{name: "correlation header", header: []string{HeaderCorrelationID, " abc "}, want: "abc"},
		{name: "request id header", header: []string{HeaderRequestID, "req-9"}, want: "req-9"},
		{name: "generated", want: "cid-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(r, http.MethodGet, "/", "", tt.header...)

			if got := rec.Header().Get(HeaderCorrelationID); got != tt.want {
				t.Fatalf("correlation header = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalizeCID(t *testing.T) {
	if normalizeCID("a\r\nb") != "" {
		t.Fatal("header injection accepted")
	}
	if got := normalizeCID(strings.Repeat("x", 200)); len(got) != maxCIDLen {
		t.Fatalf("len = %d, want %d", len(got), maxCIDLen)
	}
}

func TestErrorMapping(t *testing.T) {
	r, _ := newTestRouter(t, "app: {}")
	r.GET("/rejected", func(*Request) (any, error) { return nil, goerror.ErrRejected })
	r.GET("/plain", func(*Request) (any, error) { return nil, errors.New("boom") })
	r.POST("/invalid", func(*Request) (any, error) {
		return nil, goerror.NewInvalidInput(nil, "duration_ms", "must be positive")
	})

	tests := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/rejected", http.StatusServiceUnavailable},
		{http.MethodGet, "/plain", http.StatusInternalServerError},
		{http.MethodPost, "/invalid", http.StatusUnprocessableEntity},
		{http.MethodGet, "/missing", http.StatusNotFound},
		{http.MethodPost, "/health", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := serve(r, tt.method, tt.path, "")
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}

	rec := serve(r, http.MethodPost, "/invalid", "")
	fields, _ := decodeBody(t, rec)["error"].(map[string]any)
	if fields["duration_ms"] != "must be positive" {
		t.Fatalf("error fields = %v", fields)
	}
}

func TestRecoverer(t *testing.T) {
	r, _ := newTestRouter(t, "app: {}")
	r.GET("/panic", func(*Request) (any, error) { panic("boom") })

	rec := serve(r, http.MethodGet, "/panic", "")

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if decodeBody(t, rec)["message"] != "Internal server error" {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestMaintenance(t *testing.T) {
	r, _ := newTestRouter(t, "app:\n  maintenance:\n    endpoints: \"/blocked\"\n")
	r.GET("/blocked", func(*Request) (any, error) { return welcome{}, nil })

	if rec := serve(r, http.MethodGet, "/blocked", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("blocked status = %d, want 503", rec.Code)
	}
	if rec := serve(r, http.MethodGet, "/", ""); rec.Code != http.StatusOK {
		t.Fatalf("open status = %d, want 200", rec.Code)
	}
}

func TestDecodeBodyIsStillReadable(t *testing.T) {
	r, _ := newTestRouter(t, "instrument:\n  log_mask_fields: \"token\"\n")
	var got struct {
		Token string `json:"token"`
	}
	r.POST("/echo", func(req *Request) (any, error) {
		if err := req.DecodeBody(&got); err != nil {
			return nil, err
		}
		return welcome{}, nil
	})

	rec := serve(r, http.MethodPost, "/echo", `{"token":"abc"}`, "Content-Type", "application/json")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rec.Code, rec.Body.String())
	}
	if got.Token != "abc" {
		t.Fatalf("decoded token = %q, want abc", got.Token)
	}

	if rec := serve(r, http.MethodPost, "/echo", `{"token":"abc","extra":1}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown field status = %d, want 400", rec.Code)
	}
}

func TestRealIP(t *testing.T) {
	tests := []struct {
		name   string
		header []string
		remote string
		want   string
	}{
		{name: "true client ip", header: []string{"True-Client-IP", "10.0.0.1"}, remote: "1.1.1.1:80", want: "10.0.0.1"},
		{name: "forwarded list", header: []string{"X-Forwarded-For", "10.0.0.2, 10.0.0.3"}, remote: "1.1.1.1:80", want: "10.0.0.2"},
		{name: "invalid header", header: []string{"X-Real-IP", "nope"}, remote: "1.1.1.1:80", want: "1.1.1.1"},
		{name: "nothing usable", remote: "pipe", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for i := 0; i+1 < len(tt.header); i += 2 {
				req.Header.Set(tt.header[i], tt.header[i+1])
			}

			if got := realIP(req); got != tt.want {
				t.Fatalf("realIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { order = append(order, "h") }), mw("a"), nil, mw("b"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if strings.Join(order, ",") != "a,b,h" {
		t.Fatalf("order = %v, want a,b,h", order)
	}
}
