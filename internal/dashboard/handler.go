package dashboard

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/datememo/datememo/internal/notify"
	"github.com/datememo/datememo/internal/person"
)

// PersonUpdateData contains person change information
type PersonUpdateData struct {
	PersonID string `json:"person_id"`
	Action   string `json:"action"` // added, updated, deleted
	Name     string `json:"name,omitempty"`
	Status   string `json:"status,omitempty"`
}

// ReplacedData describes a whole-collection replacement
type ReplacedData struct {
	Count int `json:"count"`
}

// SyncCompleteData contains reconciliation results
type SyncCompleteData struct {
	Count   int    `json:"count"`
	Summary string `json:"summary"`
}

// ModeData carries the new data mode
type ModeData struct {
	Mode string `json:"mode"`
}

// NoticeData carries a user-facing warning
type NoticeData struct {
	PersonID string `json:"person_id,omitempty"`
	Message  string `json:"message"`
}

// StatsData contains collection statistics
type StatsData struct {
	Total         int            `json:"total"`
	ByStatus      map[string]int `json:"by_status"`
	Rated         int            `json:"rated"`
	AverageRating float64        `json:"average_rating"`
}

// Handler subscribes to change notifications and formats them as dashboard messages.
// It bridges between the notify broker and the WebSocket server.
type Handler struct {
	server *Server
	source PersonSource
	logger *log.Logger
}

// NewHandler creates a new event handler connected to a dashboard server.
// source may be nil, in which case person names and stats are omitted.
func NewHandler(server *Server, source PersonSource, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.New(os.Stderr, "[dashboard] ", log.LstdFlags)
	}
	return &Handler{server: server, source: source, logger: logger}
}

// Run forwards events from sub until ctx is cancelled or sub is closed.
func (h *Handler) Run(ctx context.Context, sub *notify.Subscription) {
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			h.Handle(ev)
		}
	}
}

// Handle turns one event into broadcasts.
func (h *Handler) Handle(ev notify.Event) {
	switch ev.Kind {
	case notify.KindPersonAdded, notify.KindPersonUpdated, notify.KindPersonDeleted:
		data := PersonUpdateData{PersonID: ev.PersonID, Action: action(ev.Kind)}
		if ev.Kind != notify.KindPersonDeleted {
			if p, ok := h.lookup(ev.PersonID); ok {
				data.Name = p.Name
				data.Status = string(p.RelationshipStatus)
			}
		}
		h.logger.Printf("Person %s: %s", data.Action, ev.PersonID)
		h.send(MessageTypePersonUpdate, ev.Timestamp, data)
		h.broadcastStats()

	case notify.KindLocalReplaced:
		h.send(MessageTypeReplaced, ev.Timestamp, ReplacedData{Count: ev.Count})
		h.broadcastStats()

	case notify.KindSyncComplete:
		h.logger.Printf("Sync complete: %s", ev.Message)
		h.send(MessageTypeSyncComplete, ev.Timestamp, SyncCompleteData{Count: ev.Count, Summary: ev.Message})

	case notify.KindModeChanged:
		h.send(MessageTypeMode, ev.Timestamp, ModeData{Mode: ev.Message})

	case notify.KindRemoteFailed:
		h.send(MessageTypeNotice, ev.Timestamp, NoticeData{PersonID: ev.PersonID, Message: ev.Message})

	default:
		h.logger.Printf("Ignoring unknown event %q", ev.Kind)
	}
}

func action(k notify.Kind) string {
	switch k {
	case notify.KindPersonAdded:
		return "added"
	case notify.KindPersonDeleted:
		return "deleted"
	default:
		return "updated"
	}
}

func (h *Handler) lookup(id string) (person.Person, bool) {
	if h.source == nil {
		return person.Person{}, false
	}
	for _, p := range h.source.GetAll() {
		if p.ID == id {
			return p, true
		}
	}
	return person.Person{}, false
}

func (h *Handler) send(typ MessageType, at time.Time, data any) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		h.logger.Printf("Failed to marshal %s data: %v", typ, err)
		return
	}
	h.server.Broadcast(Message{Type: typ, Timestamp: at, Data: dataJSON})
}

func (h *Handler) broadcastStats() {
	msg, err := statsMessage(h.source)
	if err != nil {
		h.logger.Printf("Failed to marshal stats: %v", err)
		return
	}
	h.server.Broadcast(msg)
}

// ComputeStats summarizes a collection.
func ComputeStats(persons []person.Person) StatsData {
	stats := StatsData{Total: len(persons), ByStatus: make(map[string]int)}
	sum := 0
	for _, p := range persons {
		stats.ByStatus[string(p.RelationshipStatus)]++
		if p.Rating != nil {
			stats.Rated++
			sum += *p.Rating
		}
	}
	if stats.Rated > 0 {
		stats.AverageRating = float64(sum) / float64(stats.Rated)
	}
	return stats
}

func statsMessage(source PersonSource) (Message, error) {
	var persons []person.Person
	if source != nil {
		persons = source.GetAll()
	}
	data, err := json.Marshal(ComputeStats(persons))
	if err != nil {
		return Message{}, err
	}
	return Message{Type: MessageTypeStats, Timestamp: time.Now(), Data: data}, nil
}
