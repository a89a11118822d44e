package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/clinic-booking-engine/internal/events"
)

func topicFromQuery(r *http.Request) (string, bool) {
	if d := r.URL.Query().Get("doctor"); d != "" {
		return DoctorTopic(d), true
	}
	if p := r.URL.Query().Get("patient"); p != "" {
		return PatientTopic(p), true
	}
	return "", false
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitForSubscribers(t *testing.T, hub *Hub, topic string, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Subscribers(topic) == n }, time.Second, 5*time.Millisecond)
}

func TestHubRoutesEventsToDoctorAndPatient(t *testing.T) {
	hub := NewHub(nil, nil)
	h := NewHandler(hub, topicFromQuery, nil)
	srv := httptest.NewServer(h)
	defer srv.Close()

	doctorConn := dial(t, srv, "doctor=doc-1")
	patientConn := dial(t, srv, "patient=pat-1")
	otherDoctor := dial(t, srv, "doctor=doc-2")
	waitForSubscribers(t, hub, DoctorTopic("doc-1"), 1)
	waitForSubscribers(t, hub, PatientTopic("pat-1"), 1)
	waitForSubscribers(t, hub, DoctorTopic("doc-2"), 1)

	env, err := events.NewEnvelope(events.DoctorAggregate("doc-1"), "", events.QueueCalledV1{DoctorID: "doc-1", PatientID: "pat-1", TokenNumber: 5})
	require.NoError(t, err)
	require.NoError(t, h.Handle(context.Background(), env))

	for _, conn := range []*websocket.Conn{doctorConn, patientConn} {
		_ = conn.SetReadDeadline(time.Now().Add(time.Second))
		var msg OutboundMessage
		require.NoError(t, conn.ReadJSON(&msg))
		assert.Equal(t, events.TypeQueueCalled, msg.Type)
		assert.Equal(t, "doc-1", msg.DoctorID)
		assert.Contains(t, string(msg.Payload), `"token_number":5`)
	}

	_ = otherDoctor.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
	_, _, err = otherDoctor.ReadMessage()
	assert.Error(t, err, "other doctors see nothing")
}

func TestHandlerRejectsUnknownCaller(t *testing.T) {
	hub := NewHub(nil, nil)
	srv := httptest.NewServer(NewHandler(hub, topicFromQuery, nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHubDropsClosedConnections(t *testing.T) {
	hub := NewHub(nil, nil)
	srv := httptest.NewServer(NewHandler(hub, topicFromQuery, nil))
	defer srv.Close()

	conn := dial(t, srv, "doctor=doc-1")
	waitForSubscribers(t, hub, DoctorTopic("doc-1"), 1)
	require.NoError(t, conn.Close())
	waitForSubscribers(t, hub, DoctorTopic("doc-1"), 0)
}

func TestSlowClientIsDropped(t *testing.T) {
	hub := NewHub(nil, nil)
	c := hub.register(DoctorTopic("doc-1"))
	for i := 0; i < sendBuffer+1; i++ {
		hub.Send(DoctorTopic("doc-1"), OutboundMessage{Type: "x"})
	}
	assert.Zero(t, hub.Subscribers(DoctorTopic("doc-1")))
	_, open := <-c.send
	assert.True(t, open, "buffered messages are still readable")
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://dashboard.example.com"})
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.True(t, check(r))
	r.Header.Set("Origin", "https://dashboard.example.com")
	assert.True(t, check(r))
	r.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, check(r))
}
