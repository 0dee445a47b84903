package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuth(t *testing.T) {
	handler := RequireAuth("hunter2")(okHandler())

	tests := []struct {
		name   string
		setup  func(*http.Request)
		status int
	}{
		{"no credential", func(r *http.Request) {}, http.StatusUnauthorized},
		{"wrong bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized},
		{"right bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer hunter2") }, http.StatusOK},
		{"right cookie", func(r *http.Request) { r.Header.Set("Cookie", "hearth_auth=hunter2") }, http.StatusOK},
		{"right query token", func(r *http.Request) { r.URL.RawQuery = "token=hunter2" }, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/api/kids", nil)
			tt.setup(r)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, r)
			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
		})
	}
}

func TestRequireTokenOpenWhenUnset(t *testing.T) {
	handler := RequireToken("")(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("POST", "/cron/digest", nil))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 for open endpoint", w.Code)
	}
}

func TestRequireTokenEnforcedWhenSet(t *testing.T) {
	handler := RequireToken("cron-secret")(okHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("POST", "/cron/digest", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}

	w = httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/cron/digest?token=cron-secret", nil)
	handler.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}
