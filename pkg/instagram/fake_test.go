package instagram

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"instarchive/pkg/archive"
	"instarchive/pkg/config"
	"instarchive/pkg/logger"
	"instarchive/pkg/retry"
)

// fakeInstagram serves both the web and mobile API from one test server
type fakeInstagram struct {
	*httptest.Server
	mux *http.ServeMux

	mu       sync.Mutex
	requests []*http.Request
}

func newFakeInstagram(t *testing.T) *fakeInstagram {
	t.Helper()
	f := &fakeInstagram{mux: http.NewServeMux()}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.requests = append(f.requests, r.Clone(r.Context()))
		f.mu.Unlock()
		f.mux.ServeHTTP(w, r)
	}))
	t.Cleanup(f.Close)
	return f
}

// json registers a handler answering path with a fixed JSON body
func (f *fakeInstagram) json(path, body string) {
	f.mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	})
}

// media registers a media file under /media/
func (f *fakeInstagram) media(name, content string) string {
	f.mux.HandleFunc("/media/"+name, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(content))
	})
	return f.URL + "/media/" + name
}

// count returns how many requests hit path
func (f *fakeInstagram) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.requests {
		if r.URL.Path == path {
			n++
		}
	}
	return n
}

// lastRequest returns the most recent request to path
func (f *fakeInstagram) lastRequest(path string) *http.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.requests) - 1; i >= 0; i-- {
		if f.requests[i].URL.Path == path {
			return f.requests[i]
		}
	}
	return nil
}

func (f *fakeInstagram) client(log logger.Logger, session *Session) *Client {
	return NewClient(Options{
		Timeout:   5 * time.Second,
		UserAgent: "test-agent",
		AppID:     "936619743392459",
		Session:   session,
		Retry:     &retry.Config{MaxAttempts: 3, Sleep: func(time.Duration) {}},
		Endpoints: Endpoints{Web: f.URL, API: f.URL},
	}, log)
}

var testSession = &Session{SessionID: "sess", CSRFToken: "csrf"}

func newTestArchive(t *testing.T) *archive.Archive {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Archive.Directory = filepath.Join(t.TempDir(), "archive")
	a := archive.New(cfg.Paths(), logger.NewNopLogger())
	_, err := a.Init("me")
	require.NoError(t, err)
	return a
}
