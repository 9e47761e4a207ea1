package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

const calendar = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nEND:VCALENDAR\r\n"

func TestHTTPImplementsFetcher(t *testing.T) {
	var _ Fetcher = &HTTP{}
}

func TestHTTPFetch(t *testing.T) {
	tests := map[string]struct {
		retries    uint
		statuses   []int
		wantErr    bool
		wantStatus int
		wantCalls  int32
	}{
		"ok on first attempt": {
			statuses:  []int{http.StatusOK},
			wantCalls: 1,
		},
		"not found is not retried": {
			retries:    3,
			statuses:   []int{http.StatusNotFound},
			wantErr:    true,
			wantStatus: http.StatusNotFound,
			wantCalls:  1,
		},
		"server error without retries fails once": {
			statuses:   []int{http.StatusBadGateway},
			wantErr:    true,
			wantStatus: http.StatusBadGateway,
			wantCalls:  1,
		},
		"server error recovered by retry": {
			retries:   2,
			statuses:  []int{http.StatusServiceUnavailable, http.StatusOK},
			wantCalls: 2,
		},
		"retries exhausted": {
			retries:    1,
			statuses:   []int{http.StatusInternalServerError, http.StatusInternalServerError, http.StatusOK},
			wantErr:    true,
			wantStatus: http.StatusInternalServerError,
			wantCalls:  2,
		},
		"too many requests is retried": {
			retries:   1,
			statuses:  []int{http.StatusTooManyRequests, http.StatusOK},
			wantCalls: 2,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := calls.Add(1)
				status := tc.statuses[len(tc.statuses)-1]
				if int(n) <= len(tc.statuses) {
					status = tc.statuses[n-1]
				}
				w.WriteHeader(status)
				if status == http.StatusOK {
					w.Write([]byte(calendar))
				}
			}))
			defer srv.Close()

			f := &HTTP{Retries: tc.retries, InitialInterval: time.Millisecond}
			body, err := f.Fetch(context.Background(), srv.URL)

			if got := calls.Load(); got != tc.wantCalls {
				t.Errorf("server saw %d request(s), want %d", got, tc.wantCalls)
			}

			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				var se *StatusError
				if !errors.As(err, &se) {
					t.Fatalf("error = %v, want *StatusError", err)
				}
				if se.StatusCode != tc.wantStatus {
					t.Errorf("StatusCode = %d, want %d", se.StatusCode, tc.wantStatus)
				}
				return
			}
			if err != nil {
				t.Fatalf("Fetch() error: %v", err)
			}
			if string(body) != calendar {
				t.Errorf("body = %q, want %q", body, calendar)
			}
		})
	}
}

func TestHTTPFetchSendsUserAgent(t *testing.T) {
	tests := map[string]struct {
		userAgent string
		want      string
	}{
		"default": {
			want: DefaultUserAgent,
		},
		"override": {
			userAgent: "release-bot/2",
			want:      "release-bot/2",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			var got string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.Header.Get("User-Agent")
				w.Write([]byte(calendar))
			}))
			defer srv.Close()

			f := &HTTP{UserAgent: tc.userAgent}
			if _, err := f.Fetch(context.Background(), srv.URL); err != nil {
				t.Fatalf("Fetch() error: %v", err)
			}
			if got != tc.want {
				t.Errorf("User-Agent = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestHTTPFetchTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	f := &HTTP{}
	if _, err := f.Fetch(context.Background(), url); err == nil {
		t.Fatal("expected error fetching from a closed server, got nil")
	}
}

func TestHTTPFetchInvalidURL(t *testing.T) {
	f := &HTTP{Retries: 5, InitialInterval: time.Hour}
	if _, err := f.Fetch(context.Background(), "://not a url"); err == nil {
		t.Fatal("expected error for invalid URL, got nil")
	}
}

func TestStatusErrorTemporary(t *testing.T) {
	tests := map[string]struct {
		code int
		want bool
	}{
		"not found":         {code: http.StatusNotFound, want: false},
		"forbidden":         {code: http.StatusForbidden, want: false},
		"too many requests": {code: http.StatusTooManyRequests, want: true},
		"bad gateway":       {code: http.StatusBadGateway, want: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			e := &StatusError{StatusCode: tc.code}
			if got := e.Temporary(); got != tc.want {
				t.Errorf("Temporary() = %v, want %v", got, tc.want)
			}
		})
	}
}
