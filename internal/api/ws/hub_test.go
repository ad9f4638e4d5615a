package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consultation-queue-backend/internal/domain"
)

func newLiveServer(t *testing.T) (*Hub, string) {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	router := mux.NewRouter()
	router.Handle("/queues/{type}/live", hub)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return hub, "ws" + strings.TrimPrefix(server.URL, "http")
}

func readSnapshot(t *testing.T, conn *websocket.Conn) Snapshot {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	var s Snapshot
	require.NoError(t, json.Unmarshal(msg, &s))
	return s
}

func TestHub_DeliversSnapshotsForSubscribedQueue(t *testing.T) {
	hub, url := newLiveServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(url+"/queues/pastor/live", nil)
	require.NoError(t, err)
	defer conn.Close()

	approved := []domain.QueueEntry{
		{ID: "a1", Email: "ann@x.com", Position: 1, Status: domain.QueueStatusApproved},
		{ID: "a2", Email: "bob@x.com", Position: 2, Status: domain.QueueStatusApproved},
	}
	waiting := []domain.QueueEntry{{ID: "w1", Email: "cy@x.com", Position: 1}}
	hub.Publish(domain.QueueTypePastor, waiting, approved)

	s := readSnapshot(t, conn)
	assert.Equal(t, domain.QueueTypePastor, s.QueueType)
	assert.Equal(t, 1, s.WaitingCount)
	assert.Equal(t, []SnapshotEntry{{ID: "a1", Position: 1}, {ID: "a2", Position: 2}}, s.Approved)
}

func TestHub_NewClientGetsLastSnapshot(t *testing.T) {
	hub, url := newLiveServer(t)

	first, _, err := websocket.DefaultDialer.Dial(url+"/queues/overseer/live", nil)
	require.NoError(t, err)
	defer first.Close()
	hub.Publish(domain.QueueTypeOverseer, nil, []domain.QueueEntry{{ID: "a1", Position: 1}})
	readSnapshot(t, first)

	late, _, err := websocket.DefaultDialer.Dial(url+"/queues/overseer/live", nil)
	require.NoError(t, err)
	defer late.Close()

	s := readSnapshot(t, late)
	assert.Equal(t, domain.QueueTypeOverseer, s.QueueType)
	require.Len(t, s.Approved, 1)
	assert.Equal(t, "a1", s.Approved[0].ID)
}

func TestHub_RejectsUnknownQueue(t *testing.T) {
	_, url := newLiveServer(t)

	_, resp, err := websocket.DefaultDialer.Dial(url+"/queues/bishop/live", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestNewSnapshot_OmitsContactDetails(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s := NewSnapshot(domain.QueueTypePastor, nil, []domain.QueueEntry{{ID: "a1", FirstName: "Ann", Email: "ann@x.com", Position: 1}}, at)

	raw, err := json.Marshal(s)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "ann@x.com")
	assert.NotContains(t, string(raw), "Ann")
	assert.Equal(t, 0, s.WaitingCount)
	assert.Equal(t, at, s.UpdatedAt)
}
