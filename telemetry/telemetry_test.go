package telemetry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// matchLog is a stand-in for the match log server
type matchLog struct {
	sync.Mutex
	got    []Transition
	status int
}

func (m *matchLog) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || r.URL.Path != "/transitions" {
		http.NotFound(w, r)
		return
	}
	var t Transition
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	m.Lock()
	defer m.Unlock()
	if m.status != 0 {
		w.WriteHeader(m.status)
		return
	}
	m.got = append(m.got, t)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(t)
}

func (m *matchLog) transitions() []Transition {
	m.Lock()
	defer m.Unlock()
	return append([]Transition(nil), m.got...)
}

func TestRecorderUploads(t *testing.T) {
	server := &matchLog{}
	srv := httptest.NewServer(server)
	defer srv.Close()

	logger, _ := test.NewNullLogger()
	r := NewRecorder(srv.URL, "", "tug", 0, logger)
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return at }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	r.Record("session", "WaitingForPairRequest", "WaitingForControlPacket")
	r.Record("session", "WaitingForControlPacket", "Paired")

	require.Eventually(t, func() bool { return r.Sent() == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	got := server.transitions()
	require.Len(t, got, 2)
	for _, tr := range got {
		assert.NotEmpty(t, tr.ID)
		assert.Equal(t, r.Match(), tr.Match)
		assert.Equal(t, "tug", tr.Board)
		assert.True(t, at.Equal(tr.At))
	}
	assert.Equal(t, "Paired", got[1].To)
}

func TestRecorderServerError(t *testing.T) {
	server := &matchLog{status: http.StatusInternalServerError}
	srv := httptest.NewServer(server)
	defer srv.Close()

	logger, _ := test.NewNullLogger()
	r := NewRecorder(srv.URL, "match-1", "main", 0, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.Run(ctx) }()

	r.Record("game", "Startup", "Playing")
	require.Eventually(t, func() bool { return r.Failed() == 1 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, r.Sent())
}

func TestRecorderDropsWhenFull(t *testing.T) {
	logger, _ := test.NewNullLogger()
	r := NewRecorder("http://127.0.0.1:0", "match-1", "main", 1, logger)

	r.Record("game", "Startup", "Playing")
	r.Record("game", "Playing", "GameOver")
	assert.Equal(t, uint64(1), r.Dropped())
	assert.Equal(t, "match-1", r.Match())
}

func TestNoop(t *testing.T) {
	var s Sink = Noop{}
	s.Record("game", "Startup", "Playing")
}
