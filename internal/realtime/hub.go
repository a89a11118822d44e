// Package realtime streams scheduling events to connected dashboards over
// websockets. Each connection subscribes to one topic: a doctor's own queue
// or a patient's own account.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wolfman30/clinic-booking-engine/internal/events"
	"github.com/wolfman30/clinic-booking-engine/pkg/logging"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 16
)

// OutboundMessage is what a dashboard receives.
type OutboundMessage struct {
	Type      string          `json:"type"`
	EventID   string          `json:"eventId,omitempty"`
	DoctorID  string          `json:"doctorId,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

func DoctorTopic(doctorID string) string   { return "doctor:" + doctorID }
func PatientTopic(patientID string) string { return "patient:" + patientID }

type client struct {
	topic string
	send  chan OutboundMessage
}

// Hub fans events out to subscribed connections. A client whose buffer is
// full is dropped rather than blocking the publisher.
type Hub struct {
	mu       sync.RWMutex
	topics   map[string]map[*client]struct{}
	upgrader websocket.Upgrader
	logger   *logging.Logger
}

func NewHub(allowedOrigins []string, logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Default()
	}
	h := &Hub{topics: make(map[string]map[*client]struct{}), logger: logger}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || strings.EqualFold(a, origin) {
				return true
			}
		}
		return false
	}
}

func (h *Hub) register(topic string) *client {
	c := &client{topic: topic, send: make(chan OutboundMessage, sendBuffer)}
	h.mu.Lock()
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[*client]struct{})
	}
	h.topics[topic][c] = struct{}{}
	h.mu.Unlock()
	return c
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.topics[c.topic]
	if !ok {
		return
	}
	if _, ok := subs[c]; !ok {
		return
	}
	delete(subs, c)
	close(c.send)
	if len(subs) == 0 {
		delete(h.topics, c.topic)
	}
}

// Subscribers reports how many connections listen on topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// Send delivers msg to every client on topic.
func (h *Hub) Send(topic string, msg OutboundMessage) {
	h.mu.RLock()
	var slow []*client
	for c := range h.topics[topic] {
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("realtime: dropping slow client", "topic", topic)
		h.unregister(c)
	}
}

// Handle implements events.Handler: the doctor's topic gets every event of
// its aggregate, and the patient named in the payload gets it too.
func (h *Handler) Handle(ctx context.Context, env events.Envelope) error {
	doctorID := strings.TrimPrefix(env.Aggregate, "doctor:")
	msg := OutboundMessage{
		Type:      env.EventType,
		EventID:   env.EventID.String(),
		DoctorID:  doctorID,
		Timestamp: env.OccurredAt().Format(time.RFC3339),
		Payload:   env.Payload,
	}
	h.hub.Send(DoctorTopic(doctorID), msg)

	var who struct {
		PatientID string `json:"patient_id"`
	}
	if err := json.Unmarshal(env.Payload, &who); err == nil && who.PatientID != "" {
		h.hub.Send(PatientTopic(who.PatientID), msg)
	}
	return nil
}

var _ events.Handler = (*Handler)(nil)
