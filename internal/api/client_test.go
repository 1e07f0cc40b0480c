package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/npratt/pipeboard/internal/auth"
	"github.com/npratt/pipeboard/internal/notify"
)

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) (*Client, *notify.Recorder) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	rec := &notify.Recorder{}
	opts = append([]Option{WithNotifier(rec)}, opts...)
	return NewClient(srv.URL+"/api/v1", opts...), rec
}

func TestSendAttachesHeaders(t *testing.T) {
	t.Run("correlation id and bearer token", func(t *testing.T) {
		var gotCorr, gotAuth, gotPath string
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			gotCorr = r.Header.Get(HeaderCorrelationID)
			gotAuth = r.Header.Get("Authorization")
			gotPath = r.URL.Path
			w.WriteHeader(http.StatusOK)
		}, WithTokenSource(auth.StaticToken("tok-1")))

		resp, err := c.Send(context.Background(), &Request{Method: http.MethodGet, Path: "/projects/7"})
		if err != nil {
			t.Fatalf("Send failed: %v", err)
		}
		if _, err := uuid.Parse(gotCorr); err != nil {
			t.Errorf("expected uuid correlation id, got %q", gotCorr)
		}
		if resp.CorrelationID != gotCorr {
			t.Errorf("expected response correlation id %q, got %q", gotCorr, resp.CorrelationID)
		}
		if gotAuth != "Bearer tok-1" {
			t.Errorf("expected 'Bearer tok-1', got %q", gotAuth)
		}
		if gotPath != "/api/v1/projects/7" {
			t.Errorf("expected path /api/v1/projects/7, got %q", gotPath)
		}
	})

	t.Run("caller correlation id is kept", func(t *testing.T) {
		var gotCorr string
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			gotCorr = r.Header.Get(HeaderCorrelationID)
		})

		h := http.Header{}
		h.Set(HeaderCorrelationID, "fixed-id")
		if _, err := c.Send(context.Background(), &Request{Path: "/x", Header: h}); err != nil {
			t.Fatalf("Send failed: %v", err)
		}
		if gotCorr != "fixed-id" {
			t.Errorf("expected 'fixed-id', got %q", gotCorr)
		}
	})

	t.Run("no token means no authorization header", func(t *testing.T) {
		var hasAuth bool
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, hasAuth = r.Header["Authorization"]
		})

		if _, err := c.Send(context.Background(), &Request{Path: "/x"}); err != nil {
			t.Fatalf("Send failed: %v", err)
		}
		if hasAuth {
			t.Error("expected no Authorization header")
		}
	})
}

func TestSendEncodesQueryAndBody(t *testing.T) {
	var gotQuery url.Values
	var gotBody map[string]any
	var gotType string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		gotType = r.Header.Get("Content-Type")
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)
	})

	q := url.Values{}
	q.Set("page", "2")
	q.Set("page_size", "50")
	_, err := c.Send(context.Background(), &Request{
		Method: http.MethodPost,
		Path:   "/projects/1/plan",
		Query:  q,
		Body:   map[string]any{"source": "requirements"},
	})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if gotQuery.Get("page") != "2" || gotQuery.Get("page_size") != "50" {
		t.Errorf("unexpected query: %v", gotQuery)
	}
	if gotType != "application/json" {
		t.Errorf("expected application/json, got %q", gotType)
	}
	if gotBody["source"] != "requirements" {
		t.Errorf("unexpected body: %v", gotBody)
	}
}

func TestSendHTTPErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantDetail string
		wantMsg    string
	}{
		{"detail string", 404, `{"detail":"Project not found"}`, "Project not found", "Project not found"},
		{"validation list", 422, `{"detail":[{"msg":"field required"},{"msg":"value too short"}]}`, "field required; value too short", "field required; value too short"},
		{"no detail", 500, `Internal Server Error`, "", "Request failed with status code 500"},
		{"empty body", 503, ``, "", "Request failed with status code 503"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := c.Send(context.Background(), &Request{Path: "/projects/1"})
			var httpErr *HTTPError
			if !errors.As(err, &httpErr) {
				t.Fatalf("expected *HTTPError, got %T (%v)", err, err)
			}
			if httpErr.Status != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, httpErr.Status)
			}
			if httpErr.Detail != tt.wantDetail {
				t.Errorf("expected detail %q, got %q", tt.wantDetail, httpErr.Detail)
			}
			if httpErr.CorrelationID == "" {
				t.Error("expected correlation id on error")
			}

			notes := rec.Notifications()
			if len(notes) != 1 {
				t.Fatalf("expected exactly 1 notification, got %d", len(notes))
			}
			if notes[0].Level != notify.LevelError || notes[0].Message != tt.wantMsg {
				t.Errorf("unexpected notification: %+v", notes[0])
			}
		})
	}
}

func TestSendSuppression(t *testing.T) {
	status := http.StatusNotFound
	c, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	})

	probe := func() *Request {
		return &Request{Path: "/projects/1/plan/latest", QuietStatuses: []int{http.StatusNotFound}}
	}

	t.Run("quiet status is not notified", func(t *testing.T) {
		_, err := c.Send(context.Background(), probe())
		if !IsNotFound(err) {
			t.Fatalf("expected not found, got %v", err)
		}
		if rec.Len() != 0 {
			t.Errorf("expected no notification, got %d", rec.Len())
		}
	})

	t.Run("other status still notifies", func(t *testing.T) {
		status = http.StatusInternalServerError
		_, err := c.Send(context.Background(), probe())
		if StatusCode(err) != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %v", err)
		}
		if rec.Len() != 1 {
			t.Errorf("expected 1 notification, got %d", rec.Len())
		}
	})

	t.Run("skip notify silences everything", func(t *testing.T) {
		before := rec.Len()
		_, err := c.Send(context.Background(), &Request{Path: "/x", SkipNotify: true})
		if err == nil {
			t.Fatal("expected error")
		}
		if rec.Len() != before {
			t.Errorf("expected no new notification, got %d", rec.Len()-before)
		}
	})
}

func TestSendNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	rec := &notify.Recorder{}
	c := NewClient(base, WithNotifier(rec))

	_, err := c.Send(context.Background(), &Request{Path: "/projects/"})
	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected *NetworkError, got %T (%v)", err, err)
	}
	if rec.Len() != 1 {
		t.Errorf("expected 1 notification, got %d", rec.Len())
	}
	if StatusCode(err) != 0 {
		t.Errorf("expected status 0 for network error, got %d", StatusCode(err))
	}
}

func TestSendCanceledIsQuiet(t *testing.T) {
	c, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Send(ctx, &Request{Path: "/slow"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected canceled error, got %v", err)
	}
	if rec.Len() != 0 {
		t.Errorf("expected no notification for canceled request, got %d", rec.Len())
	}
}

func TestDo(t *testing.T) {
	t.Run("decodes json", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"id":"p1","name":"Demo"}`))
		})

		var out struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		}
		if err := c.Do(context.Background(), &Request{Path: "/projects/p1"}, &out); err != nil {
			t.Fatalf("Do failed: %v", err)
		}
		if out.ID != "p1" || out.Name != "Demo" {
			t.Errorf("unexpected decode: %+v", out)
		}
	})

	t.Run("null body leaves pointer nil", func(t *testing.T) {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("null\n"))
		})

		var out *struct{ ID string }
		if err := c.Do(context.Background(), &Request{Path: "/plan/latest"}, &out); err != nil {
			t.Fatalf("Do failed: %v", err)
		}
		if out != nil {
			t.Errorf("expected nil, got %+v", out)
		}
	})

	t.Run("bad json is a decode error", func(t *testing.T) {
		c, rec := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("{not json"))
		})

		var out map[string]any
		err := c.Do(context.Background(), &Request{Path: "/x"}, &out)
		if err == nil || !strings.Contains(err.Error(), "decode GET /x") {
			t.Errorf("expected decode error, got %v", err)
		}
		if rec.Len() != 0 {
			t.Errorf("decode errors are not transport failures, got %d notifications", rec.Len())
		}
	})
}

func TestMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"http detail", &HTTPError{Status: 400, Detail: "bad input"}, "bad input"},
		{"http bare", &HTTPError{Status: 502}, "Request failed with status code 502"},
		{"network", &NetworkError{Err: errors.New("connection refused")}, "connection refused"},
		{"wrapped", errors.Join(errors.New("ctx"), &HTTPError{Status: 409, Detail: "conflict"}), "conflict"},
		{"plain", errors.New("boom"), "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Message(tt.err); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

type failingTokens struct{}

func (failingTokens) Token() (string, error) { return "", errors.New("keyring locked") }

func TestTokenFailureProceeds(t *testing.T) {
	var hasAuth bool
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, hasAuth = r.Header["Authorization"]
	}, WithTokenSource(failingTokens{}))

	if _, err := c.Send(context.Background(), &Request{Path: "/x"}); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if hasAuth {
		t.Error("expected request without Authorization header")
	}
}
