// File: internal/server/server_test.go
package server

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/inmate-bot/internal/config"
	"github.com/xkilldash9x/inmate-bot/internal/service"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type mockSearcher struct {
	mock.Mock
}

func (m *mockSearcher) Run(ctx context.Context, req service.Request) service.Result {
	args := m.Called(ctx, req)
	return args.Get(0).(service.Result)
}

func testServerConfig() config.ServerConfig {
	return config.ServerConfig{Addr: "127.0.0.1:0", MaxConcurrentRuns: 1, RunTimeout: time.Second}
}

func TestHandleSearch(t *testing.T) {
	searcher := new(mockSearcher)
	want := service.Request{LastName: "Doe", FirstName: "Jane", Address: "1 Main St", Username: "jane@x.com"}
	searcher.On("Run", mock.Anything, want).
		Return(service.Result{Text: "Record found for Jane Doe.", Success: true, RunID: "r1"}).Once()

	srv := New(testServerConfig(), searcher, zaptest.NewLogger(t))
	body := `{"lastName":"Doe","firstName":"Jane","address":"1 Main St","username":"jane@x.com"}`
	req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"result":"Record found for Jane Doe.","success":true,"runId":"r1"}`, rec.Body.String())
	searcher.AssertExpectations(t)
}

func TestHandleSearchReportsUnsuccessfulRunsAsOK(t *testing.T) {
	searcher := new(mockSearcher)
	searcher.On("Run", mock.Anything, mock.AnythingOfType("service.Request")).
		Return(service.Result{Text: "Error: the search could not be completed"})

	srv := New(testServerConfig(), searcher, zaptest.NewLogger(t))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(`{"lastName":"Doe"}`)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"result":"Error: the search could not be completed","success":false}`, rec.Body.String())
}

func TestHandleSearchRejectsBadBodies(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "lastName=Doe"},
		{"wrong type", `{"lastName": 7}`},
		{"empty", ""},
		{"too large", `{"lastName":"` + strings.Repeat("a", maxBodyBytes) + `"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			searcher := new(mockSearcher)
			core, logs := observer.New(zap.DebugLevel)
			srv := New(testServerConfig(), searcher, zap.New(core))

			rec := httptest.NewRecorder()
			srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(tt.body)))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.JSONEq(t, `{"result":"`+msgBadRequest+`","success":false}`, rec.Body.String())
			assert.Equal(t, 1, logs.FilterMessage("Rejected search request.").Len())
			searcher.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
		})
	}
}

func TestRoutes(t *testing.T) {
	srv := New(testServerConfig(), new(mockSearcher), zaptest.NewLogger(t))
	h := srv.Router()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/search", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecoversFromPanics(t *testing.T) {
	searcher := new(mockSearcher)
	searcher.On("Run", mock.Anything, mock.Anything).Run(func(mock.Arguments) { panic("boom") })

	srv := New(testServerConfig(), searcher, zaptest.NewLogger(t))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(`{}`)))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRequestContextCarriesTheRunBudget(t *testing.T) {
	searcher := new(mockSearcher)
	var deadline time.Time
	searcher.On("Run", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			deadline, _ = args.Get(0).(context.Context).Deadline()
		}).
		Return(service.Result{})

	srv := New(testServerConfig(), searcher, zaptest.NewLogger(t))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(`{}`)))

	require.False(t, deadline.IsZero())
	assert.WithinDuration(t, time.Now().Add(time.Second), deadline, time.Second)
}

func TestServeAndShutdown(t *testing.T) {
	searcher := new(mockSearcher)
	searcher.On("Run", mock.Anything, mock.Anything).Return(service.Result{Text: "ok", Success: true})

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := New(testServerConfig(), searcher, zaptest.NewLogger(t))

	done := make(chan error, 1)
	go func() { done <- srv.Serve(l) }()

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Post("http://"+l.Addr().String()+"/api/search", "application/json", strings.NewReader(`{"lastName":"Doe"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
	assert.NoError(t, <-done, "a graceful shutdown is not a serve error")
}
