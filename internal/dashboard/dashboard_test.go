package dashboard

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/datememo/datememo/internal/notify"
	"github.com/datememo/datememo/internal/person"
)

// staticSource serves a fixed collection.
type staticSource []person.Person

func (s staticSource) GetAll() []person.Person { return append([]person.Person(nil), s...) }

func intPtr(v int) *int { return &v }

func testSource() staticSource {
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	return staticSource{
		{ID: "p1", Profile: person.Profile{Name: "Alice", RelationshipStatus: person.StatusObserving, Rating: intPtr(4)}, CreatedAt: now, UpdatedAt: now},
		{ID: "p2", Profile: person.Profile{Name: "Bob", RelationshipStatus: person.StatusObserving, Rating: intPtr(2)}, CreatedAt: now, UpdatedAt: now.Add(time.Hour)},
	}
}

func quiet() *log.Logger { return log.New(io.Discard, "", 0) }

func startServer(t *testing.T, source PersonSource) *Server {
	t.Helper()

	server := NewServer(&Config{Port: 0, Source: source, Logger: quiet()})
	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	t.Cleanup(func() { _ = server.Stop() })
	return server
}

// dial connects a client and consumes the welcome message.
func dial(t *testing.T, ctx context.Context, server *Server) (*websocket.Conn, Message) {
	t.Helper()

	conn, _, err := websocket.Dial(ctx, "ws://"+server.GetAddr()+"/ws", nil)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })

	return conn, read(t, ctx, conn)
}

func read(t *testing.T, ctx context.Context, conn *websocket.Conn) Message {
	t.Helper()

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}
	return msg
}

func TestServerStartStop(t *testing.T) {
	server := NewServer(&Config{Port: 0, Logger: quiet()})

	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	if addr := server.GetAddr(); addr == "" || strings.HasSuffix(addr, ":0") {
		t.Fatalf("unexpected listen address %q", addr)
	}
	if err := server.Stop(); err != nil {
		t.Fatalf("Failed to stop server: %v", err)
	}
}

func TestWebSocketConnection(t *testing.T) {
	server := startServer(t, testSource())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, welcome := dial(t, ctx, server)

	if welcome.Type != MessageTypeStats {
		t.Errorf("Expected welcome message type %s, got %s", MessageTypeStats, welcome.Type)
	}
	var stats StatsData
	if err := json.Unmarshal(welcome.Data, &stats); err != nil {
		t.Fatalf("Failed to unmarshal stats: %v", err)
	}
	if stats.Total != 2 || stats.Rated != 2 || stats.AverageRating != 3 {
		t.Errorf("welcome stats = %+v", stats)
	}
	if count := server.ClientCount(); count != 1 {
		t.Errorf("Expected 1 client, got %d", count)
	}
}

func TestMultipleClients(t *testing.T) {
	server := startServer(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	numClients := 3
	for i := 0; i < numClients; i++ {
		dial(t, ctx, server)
	}

	if count := server.ClientCount(); count != numClients {
		t.Errorf("Expected %d clients, got %d", numClients, count)
	}
}

func TestMessageBroadcast(t *testing.T) {
	server := startServer(t, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _ := dial(t, ctx, server)

	testData := PersonUpdateData{PersonID: "p-test", Action: "added", Name: "Test"}
	dataJSON, _ := json.Marshal(testData)
	server.Broadcast(Message{Type: MessageTypePersonUpdate, Timestamp: time.Now(), Data: dataJSON})

	received := read(t, ctx, conn)
	if received.Type != MessageTypePersonUpdate {
		t.Errorf("Expected message type %s, got %s", MessageTypePersonUpdate, received.Type)
	}

	var got PersonUpdateData
	if err := json.Unmarshal(received.Data, &got); err != nil {
		t.Fatalf("Failed to unmarshal person data: %v", err)
	}
	if got != testData {
		t.Errorf("person data = %+v, want %+v", got, testData)
	}
}

func TestHandlerEvents(t *testing.T) {
	tests := []struct {
		name      string
		event     notify.Event
		wantType  MessageType
		wantStats bool
		check     func(t *testing.T, data json.RawMessage)
	}{
		{
			name:      "person added",
			event:     notify.Event{Kind: notify.KindPersonAdded, PersonID: "p1"},
			wantType:  MessageTypePersonUpdate,
			wantStats: true,
			check: func(t *testing.T, data json.RawMessage) {
				var d PersonUpdateData
				_ = json.Unmarshal(data, &d)
				if d.Action != "added" || d.Name != "Alice" {
					t.Errorf("data = %+v", d)
				}
			},
		},
		{
			name:      "person deleted",
			event:     notify.Event{Kind: notify.KindPersonDeleted, PersonID: "gone"},
			wantType:  MessageTypePersonUpdate,
			wantStats: true,
			check: func(t *testing.T, data json.RawMessage) {
				var d PersonUpdateData
				_ = json.Unmarshal(data, &d)
				if d.Action != "deleted" || d.PersonID != "gone" {
					t.Errorf("data = %+v", d)
				}
			},
		},
		{
			name:      "local replaced",
			event:     notify.Event{Kind: notify.KindLocalReplaced, Count: 2},
			wantType:  MessageTypeReplaced,
			wantStats: true,
		},
		{
			name:     "sync complete",
			event:    notify.Event{Kind: notify.KindSyncComplete, Count: 2, Message: "2 merged"},
			wantType: MessageTypeSyncComplete,
			check: func(t *testing.T, data json.RawMessage) {
				var d SyncCompleteData
				_ = json.Unmarshal(data, &d)
				if d.Count != 2 || d.Summary != "2 merged" {
					t.Errorf("data = %+v", d)
				}
			},
		},
		{
			name:     "mode changed",
			event:    notify.Event{Kind: notify.KindModeChanged, Message: "cloud"},
			wantType: MessageTypeMode,
		},
		{
			name:     "remote failure notice",
			event:    notify.Event{Kind: notify.KindRemoteFailed, PersonID: "p1", Message: "Cloud storage is unreachable"},
			wantType: MessageTypeNotice,
			check: func(t *testing.T, data json.RawMessage) {
				var d NoticeData
				_ = json.Unmarshal(data, &d)
				if d.Message == "" {
					t.Errorf("notice has no message: %+v", d)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := startServer(t, testSource())
			handler := NewHandler(server, testSource(), quiet())

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			conn, _ := dial(t, ctx, server)

			handler.Handle(tt.event)

			msg := read(t, ctx, conn)
			if msg.Type != tt.wantType {
				t.Fatalf("Expected message type %s, got %s", tt.wantType, msg.Type)
			}
			if tt.check != nil {
				tt.check(t, msg.Data)
			}
			if tt.wantStats {
				if next := read(t, ctx, conn); next.Type != MessageTypeStats {
					t.Errorf("Expected stats after change, got %s", next.Type)
				}
			}
		})
	}
}

func TestHandlerRunBridgesBroker(t *testing.T) {
	server := startServer(t, testSource())
	broker := notify.NewBroker(8, quiet())
	handler := NewHandler(server, testSource(), quiet())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _ := dial(t, ctx, server)

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		handler.Run(runCtx, broker.Subscribe())
		close(done)
	}()

	// Wait for the subscription to register.
	deadline := time.Now().Add(2 * time.Second)
	for broker.SubscriberCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	broker.Publish(notify.Event{Kind: notify.KindModeChanged, Message: "local"})
	if msg := read(t, ctx, conn); msg.Type != MessageTypeMode {
		t.Errorf("Expected %s, got %s", MessageTypeMode, msg.Type)
	}

	stop()
	<-done
	if n := broker.SubscriberCount(); n != 0 {
		t.Errorf("subscription not closed after Run returned: %d left", n)
	}
}

func TestComputeStats(t *testing.T) {
	stats := ComputeStats(nil)
	if stats.Total != 0 || stats.AverageRating != 0 || stats.ByStatus == nil {
		t.Errorf("empty stats = %+v", stats)
	}

	src := testSource()
	src = append(src, person.Person{ID: "p3", Profile: person.Profile{Name: "Cy", RelationshipStatus: person.StatusObserving}})
	stats = ComputeStats(src)
	if stats.Total != 3 || stats.Rated != 2 || stats.AverageRating != 3 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.ByStatus[string(person.StatusObserving)] != 3 {
		t.Errorf("by status = %v", stats.ByStatus)
	}
}

func TestHTTPEndpoints(t *testing.T) {
	server := NewServer(&Config{Source: testSource(), Logger: quiet()})
	ts := httptest.NewServer(server.Handler())
	defer ts.Close()

	t.Run("health", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/health")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()

		var body map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if body["status"] != "ok" {
			t.Errorf("health = %v", body)
		}
	})

	t.Run("persons", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/api/persons")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()

		var persons []person.Person
		if err := json.NewDecoder(resp.Body).Decode(&persons); err != nil {
			t.Fatal(err)
		}
		if len(persons) != 2 || persons[0].Name != "Bob" {
			t.Errorf("expected most recently updated first, got %+v", persons)
		}
	})

	t.Run("metrics", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/metrics")
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		if !strings.Contains(string(body), "datememo_ws_connections") {
			t.Error("metrics output lacks datememo_ws_connections")
		}
	})

	t.Run("unknown path", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/nope")
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want 404", resp.StatusCode)
		}
	})
}
