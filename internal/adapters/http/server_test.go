package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/powerwatch/internal/domain"
)

type fakeService struct {
	heartbeats atomic.Int32
	status     domain.Status
}

func (f *fakeService) RecordHeartbeat(ctx context.Context) { f.heartbeats.Add(1) }

func (f *fakeService) CurrentStatus(ctx context.Context) domain.Status { return f.status }

func do(t *testing.T, h http.Handler, req *http.Request) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return rec.Code, string(body)
}

func TestPing_Authentication(t *testing.T) {
	svc := &fakeService{}
	h := NewServer(":0", "secret", svc).Handler()

	tests := []struct {
		name   string
		target string
		header string
		want   int
	}{
		{"query key", "/ping?api_key=secret", "", http.StatusOK},
		{"header key", "/ping", "secret", http.StatusOK},
		{"missing key", "/ping", "", http.StatusUnauthorized},
		{"wrong key", "/ping?api_key=nope", "", http.StatusUnauthorized},
		{"wrong header", "/ping", "nope", http.StatusUnauthorized},
	}

	wantBeats := int32(0)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.header != "" {
				req.Header.Set(APIKeyHeader, tt.header)
			}
			code, body := do(t, h, req)
			require.Equal(t, tt.want, code)
			if tt.want == http.StatusOK {
				wantBeats++
				require.JSONEq(t, `{"status":"ok"}`, body)
			}
			require.Equal(t, wantBeats, svc.heartbeats.Load(), "unauthorized pings must not count")
		})
	}
}

func TestPing_EmptyKeyRejectsEverything(t *testing.T) {
	svc := &fakeService{}
	h := NewServer(":0", "", svc).Handler()

	code, _ := do(t, h, httptest.NewRequest(http.MethodGet, "/ping?api_key=", nil))
	require.Equal(t, http.StatusUnauthorized, code)
	require.Zero(t, svc.heartbeats.Load())
}

func TestPing_SetAPIKey(t *testing.T) {
	svc := &fakeService{}
	s := NewServer(":0", "old", svc)
	h := s.Handler()

	s.SetAPIKey("new")
	code, _ := do(t, h, httptest.NewRequest(http.MethodGet, "/ping?api_key=old", nil))
	require.Equal(t, http.StatusUnauthorized, code)
	code, _ = do(t, h, httptest.NewRequest(http.MethodGet, "/ping?api_key=new", nil))
	require.Equal(t, http.StatusOK, code)
}

func TestStatus(t *testing.T) {
	svc := &fakeService{status: domain.Status{SignalPresent: false, SecondsSinceLastHeartbeat: 125, RecipientCount: 3}}
	h := NewServer(":0", "secret", svc).Handler()

	code, body := do(t, h, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, code)
	require.JSONEq(t, `{"power_is_on":false,"last_ping_ago_seconds":125,"subscribers":3}`, body)

	var st domain.Status
	require.NoError(t, sonic.UnmarshalString(body, &st))
	require.Equal(t, svc.status, st)
}

func TestRoutes(t *testing.T) {
	svc := &fakeService{}
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "metrics")
	})

	h := NewServer(":0", "secret", svc, WithMetricsHandler(metrics)).Handler()

	code, _ := do(t, h, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, code)

	code, body := do(t, h, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "metrics", body)

	code, _ = do(t, h, httptest.NewRequest(http.MethodPost, "/ping?api_key=secret", nil))
	require.Equal(t, http.StatusMethodNotAllowed, code)

	code, _ = do(t, NewServer(":0", "secret", svc).Handler(), httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusNotFound, code)
}

func TestServer_StartShutdown(t *testing.T) {
	svc := &fakeService{}
	s := NewServer("127.0.0.1:0", "secret", svc)
	require.NoError(t, s.Start())

	resp, err := http.Get("http://" + s.Addr() + "/ping?api_key=secret")
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, int32(1), svc.heartbeats.Load())

	require.NoError(t, s.Shutdown(context.Background()))
}
