package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabrielmiguelok/scholarpage/pkg/content"
)

func ok(context.Context) error { return nil }

func TestCheck(t *testing.T) {
	tests := []struct {
		name     string
		build    func(hc *Checker)
		want     Status
		failures []string
	}{
		{
			name: "all pass",
			build: func(hc *Checker) {
				hc.AddCheck("a", ok, time.Second)
				hc.AddCriticalCheck("b", ok, time.Second)
			},
			want: StatusHealthy,
		},
		{
			name: "non critical failure degrades",
			build: func(hc *Checker) {
				hc.AddCheck("a", ok, time.Second)
				hc.AddCheck("b", func(context.Context) error { return errors.New("partial") }, time.Second)
			},
			want:     StatusDegraded,
			failures: []string{"b"},
		},
		{
			name: "critical failure",
			build: func(hc *Checker) {
				hc.AddCheck("a", func(context.Context) error { return errors.New("x") }, time.Second)
				hc.AddCriticalCheck("b", func(context.Context) error { return errors.New("down") }, time.Second)
			},
			want:     StatusUnhealthy,
			failures: []string{"a", "b"},
		},
		{
			name: "timeout",
			build: func(hc *Checker) {
				hc.AddCriticalCheck("slow", func(ctx context.Context) error {
					<-ctx.Done()
					return ctx.Err()
				}, 10*time.Millisecond)
			},
			want:     StatusUnhealthy,
			failures: []string{"slow"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := NewChecker("1.2.3")
			tt.build(hc)
			report := hc.Check(context.Background())

			assert.Equal(t, tt.want, report.Status)
			assert.Equal(t, "1.2.3", report.Version)
			var failed []string
			for name, r := range report.Checks {
				if r.Status != StatusHealthy {
					failed = append(failed, name)
					assert.NotEmpty(t, r.Error)
				}
			}
			assert.ElementsMatch(t, tt.failures, failed)
		})
	}
}

func TestHandler(t *testing.T) {
	hc := NewChecker("")
	hc.AddCriticalCheck("content", func(context.Context) error { return errors.New("empty") }, time.Second)

	rec := httptest.NewRecorder()
	hc.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var report Report
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
	assert.Equal(t, StatusUnhealthy, report.Status)
	assert.Equal(t, "empty", report.Checks["content"].Error)
}

func TestContentCheck(t *testing.T) {
	store := content.NewStore()
	check := ContentCheck(store, []string{"en"})
	require.NoError(t, check(context.Background()))

	store.MarkUnavailable("en", content.TypePatent, errors.New("404"))
	require.NoError(t, check(context.Background()), "partial content is ready")

	for _, ct := range content.Types() {
		store.MarkUnavailable("zh", ct, errors.New("404"))
	}
	err := ContentCheck(store, []string{"en", "zh"})(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no content for zh")
}

func TestContentTypesCheck(t *testing.T) {
	store := content.NewStore()
	check := ContentTypesCheck(store, []string{"en"})
	require.NoError(t, check(context.Background()))

	store.MarkUnavailable("en", content.TypePatent, errors.New("404"))
	err := check(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "en:patent")
}

func TestSessionsCheck(t *testing.T) {
	n := 3
	check := SessionsCheck(func() int { return n }, 4)
	assert.NoError(t, check(context.Background()))
	n = 4
	assert.Error(t, check(context.Background()))
	assert.NoError(t, SessionsCheck(func() int { return 100 }, 0)(context.Background()))
}
