package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"

	"github.com/UrielCendon/PictionaryMusical-sub001/internal/game/events"
	"github.com/UrielCendon/PictionaryMusical-sub001/internal/game/registry"
	"github.com/UrielCendon/PictionaryMusical-sub001/internal/game/session"
	"github.com/UrielCendon/PictionaryMusical-sub001/internal/game/words"
	"github.com/UrielCendon/PictionaryMusical-sub001/internal/gateway"
)

// chanSink records callbacks in arrival order so tests can assert on the
// serialized dispatch the reconciler guarantees.
type chanSink struct {
	mu    sync.Mutex
	calls []string
}

func (c *chanSink) record(call string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, call)
}

func (c *chanSink) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

func (c *chanSink) OnPlayerJoined(p events.PlayerJoinedPayload) { c.record("joined:" + p.PlayerID) }
func (c *chanSink) OnPlayerLeft(p events.PlayerLeftPayload)     { c.record("left:" + p.PlayerID) }
func (c *chanSink) OnPlayerKicked(p events.PlayerKickedPayload) { c.record("kicked:" + p.PlayerID) }
func (c *chanSink) OnRoomCancelled(p events.RoomCancelledPayload) {
	c.record("cancelled:" + p.Reason)
}
func (c *chanSink) OnRoundStarted(p events.RoundStartedPayload) { c.record("round_started") }
func (c *chanSink) OnStroke(p events.StrokePayload)             { c.record("stroke") }
func (c *chanSink) OnChatMessage(p events.ChatMessagePayload)   { c.record("chat:" + p.Text) }
func (c *chanSink) OnPlayerGuessedCorrectly(p events.GuessScoredPayload) {
	c.record("guessed:" + p.PlayerID)
}
func (c *chanSink) OnRoundEnded(p events.RoundEndedPayload) { c.record("round_ended") }
func (c *chanSink) OnMatchEnded(p events.MatchEndedPayload) { c.record("match_ended") }

func newGatewayServer(t *testing.T) (*httptest.Server, *gateway.ConnectionManager) {
	t.Helper()
	cm := gateway.NewConnectionManager(gateway.DefaultConnectionConfig())
	clk := clockwork.NewRealClock()
	reg := registry.New(clk, words.Default(1), func(code string) session.Sink {
		return gateway.NewRoomSink(cm, code)
	}, time.Now().UnixNano())
	svc := gateway.NewService(cm, reg, clk, time.Second)

	mux := http.NewServeMux()
	svc.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)

	ctx, cancel := context.WithCancel(context.Background())
	go cm.Start(ctx)
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return srv, cm
}

func createRoom(t *testing.T, srv *httptest.Server, hostID string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]any{"hostId": hostID})
	resp, err := http.Post(srv.URL+"/api/rooms", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("create room failed: %v", err)
	}
	defer resp.Body.Close()
	var created struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	return created.Code
}

func newTestReconciler(t *testing.T, srv *httptest.Server, sink EventSink) *Reconciler {
	t.Helper()
	r := NewReconciler("ws"+strings.TrimPrefix(srv.URL, "http"), sink)
	t.Cleanup(r.Close)
	return r
}

func waitForCall(t *testing.T, sink *chanSink, want string) {
	t.Helper()
	waitForCallCount(t, sink, want, 1)
}

func waitForCallCount(t *testing.T, sink *chanSink, want string, n int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		count := 0
		for _, call := range sink.snapshot() {
			if call == want {
				count++
			}
		}
		if count >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("never observed %q %d times, calls: %v", want, n, sink.snapshot())
}

func TestSubscribeDeliversOwnJoin(t *testing.T) {
	srv, _ := newGatewayServer(t)
	code := createRoom(t, srv, "host-1")

	sink := &chanSink{}
	r := newTestReconciler(t, srv, sink)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := r.Subscribe(ctx, code, "host-1", "Ana"); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	waitForCall(t, sink, "joined:host-1")
}

func TestSubscribeValidation(t *testing.T) {
	srv, _ := newGatewayServer(t)
	sink := &chanSink{}
	r := newTestReconciler(t, srv, sink)

	ctx := context.Background()
	err := r.Subscribe(ctx, "", "p1", "Ana")
	var cerr *Error
	if !errors.As(err, &cerr) || cerr.Kind != KindValidation {
		t.Fatalf("got %v, want KindValidation", err)
	}
}

func TestSubscribeUnknownRoom(t *testing.T) {
	srv, _ := newGatewayServer(t)
	sink := &chanSink{}
	r := newTestReconciler(t, srv, sink)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	err := r.Subscribe(ctx, "NOPE99", "p1", "Ana")
	var cerr *Error
	if !errors.As(err, &cerr) || cerr.Kind != KindRoomClosed {
		t.Fatalf("got %v, want KindRoomClosed", err)
	}
}

func TestSubscribeDuplicateName(t *testing.T) {
	srv, _ := newGatewayServer(t)
	code := createRoom(t, srv, "host-1")

	hostSink := &chanSink{}
	host := newTestReconciler(t, srv, hostSink)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := host.Subscribe(ctx, code, "host-1", "Ana"); err != nil {
		t.Fatalf("host subscribe failed: %v", err)
	}

	guest := newTestReconciler(t, srv, &chanSink{})
	err := guest.Subscribe(ctx, code, "guest-1", "ana")
	var cerr *Error
	if !errors.As(err, &cerr) || cerr.Kind != KindDuplicateName {
		t.Fatalf("got %v, want KindDuplicateName", err)
	}
	if cerr.IsTransient() {
		t.Fatal("business-rule rejection reported as transient")
	}
}

func TestChatRoundTripAndOrdering(t *testing.T) {
	srv, _ := newGatewayServer(t)
	code := createRoom(t, srv, "host-1")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	hostSink := &chanSink{}
	host := newTestReconciler(t, srv, hostSink)
	if err := host.Subscribe(ctx, code, "host-1", "Ana"); err != nil {
		t.Fatalf("host subscribe failed: %v", err)
	}
	guestSink := &chanSink{}
	guest := newTestReconciler(t, srv, guestSink)
	if err := guest.Subscribe(ctx, code, "guest-1", "Beto"); err != nil {
		t.Fatalf("guest subscribe failed: %v", err)
	}
	waitForCall(t, hostSink, "joined:guest-1")

	for _, text := range []string{"uno", "dos", "tres"} {
		if err := guest.SendChat(ctx, text); err != nil {
			t.Fatalf("SendChat(%q) failed: %v", text, err)
		}
	}
	waitForCall(t, hostSink, "chat:tres")

	var got []string
	for _, call := range hostSink.snapshot() {
		if strings.HasPrefix(call, "chat:") {
			got = append(got, call)
		}
	}
	want := []string{"chat:uno", "chat:dos", "chat:tres"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("chat dispatch order mismatch (-want +got):\n%s", diff)
	}
}

func TestRejectedCommandMapsToTypedError(t *testing.T) {
	srv, _ := newGatewayServer(t)
	code := createRoom(t, srv, "host-1")
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	sink := &chanSink{}
	r := newTestReconciler(t, srv, sink)
	if err := r.Subscribe(ctx, code, "host-1", "Ana"); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	err := r.StartMatch(ctx)
	var cerr *Error
	if !errors.As(err, &cerr) || cerr.Kind != KindInsufficientPlayers {
		t.Fatalf("got %v, want KindInsufficientPlayers", err)
	}

	err = r.Kick(ctx, "ghost")
	if !errors.As(err, &cerr) || cerr.Kind != KindPlayerNotFound {
		t.Fatalf("got %v, want KindPlayerNotFound", err)
	}
}

func TestSendWithoutSubscribeFails(t *testing.T) {
	srv, _ := newGatewayServer(t)
	sink := &chanSink{}
	r := newTestReconciler(t, srv, sink)

	err := r.SendChat(context.Background(), "hola")
	var cerr *Error
	if !errors.As(err, &cerr) || cerr.Kind != KindCommunication {
		t.Fatalf("got %v, want KindCommunication", err)
	}
}

func TestUnsubscribeNotifiesRemainingMembers(t *testing.T) {
	srv, _ := newGatewayServer(t)
	code := createRoom(t, srv, "host-1")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	hostSink := &chanSink{}
	host := newTestReconciler(t, srv, hostSink)
	if err := host.Subscribe(ctx, code, "host-1", "Ana"); err != nil {
		t.Fatalf("host subscribe failed: %v", err)
	}
	guest := newTestReconciler(t, srv, &chanSink{})
	if err := guest.Subscribe(ctx, code, "guest-1", "Beto"); err != nil {
		t.Fatalf("guest subscribe failed: %v", err)
	}
	waitForCall(t, hostSink, "joined:guest-1")

	guest.Unsubscribe()
	waitForCall(t, hostSink, "left:guest-1")
}

func TestChannelFaultTriggersAutomaticResubscribe(t *testing.T) {
	srv, cm := newGatewayServer(t)
	code := createRoom(t, srv, "host-1")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sink := &chanSink{}
	r := newTestReconciler(t, srv, sink)
	if err := r.Subscribe(ctx, code, "host-1", "Ana"); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	waitForCall(t, sink, "joined:host-1")

	// Kill the push channel server side. The reconciler rejoins on its own,
	// so a second join snapshot lands on the sink.
	cm.ClosePlayer(code, "host-1")
	waitForCallCount(t, sink, "joined:host-1", 2)

	if err := r.SendChat(ctx, "sigo aqui"); err != nil {
		t.Fatalf("chat after automatic resubscribe failed: %v", err)
	}
	waitForCall(t, sink, "chat:sigo aqui")
}

func TestFailedAutomaticResubscribeIsFatal(t *testing.T) {
	srv, cm := newGatewayServer(t)
	code := createRoom(t, srv, "host-1")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sink := &chanSink{}
	r := newTestReconciler(t, srv, sink)
	fatal := make(chan error, 1)
	r.SetFatalHandler(func(err error) { fatal <- err })
	if err := r.Subscribe(ctx, code, "host-1", "Ana"); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	waitForCall(t, sink, "joined:host-1")

	// Stop accepting redials before killing the live channel, so the one
	// automatic resubscribe cannot succeed.
	srv.Close()
	cm.ClosePlayer(code, "host-1")

	select {
	case err := <-fatal:
		var cerr *Error
		if !errors.As(err, &cerr) || cerr.Kind != KindCommunication {
			t.Fatalf("fatal error = %v, want KindCommunication", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("fatal handler never ran after the failed resubscribe")
	}
}

func TestResubscribeAfterUnsubscribe(t *testing.T) {
	srv, _ := newGatewayServer(t)
	code := createRoom(t, srv, "host-1")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sink := &chanSink{}
	r := newTestReconciler(t, srv, sink)
	if err := r.Subscribe(ctx, code, "host-1", "Ana"); err != nil {
		t.Fatalf("first subscribe failed: %v", err)
	}
	waitForCall(t, sink, "joined:host-1")

	// The host unsubscribing tears the room down, so rejoin a fresh one.
	r.Unsubscribe()
	code2 := createRoom(t, srv, "host-1")
	if err := r.Subscribe(ctx, code2, "host-1", "Ana"); err != nil {
		t.Fatalf("second subscribe failed: %v", err)
	}
	if err := r.SendChat(ctx, "de vuelta"); err != nil {
		t.Fatalf("chat after resubscribe failed: %v", err)
	}
	waitForCall(t, sink, "chat:de vuelta")
}
