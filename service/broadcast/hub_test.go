package broadcast

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/khaledhikmat/fr-attendance/model"
)

func TestHubDeliversFramesToViewers(t *testing.T) {
	hub := newHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("viewer never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	sent := Message{
		Type:        MessageFrame,
		Camera:      "gate",
		Seq:         3,
		ContentType: "image/jpeg",
		Image:       []byte{0xFF, 0xD8, 0xFF, 0xD9},
		Faces:       []model.RecognizedFace{{Name: "Grace", Similarity: 0.9}},
	}
	if !hub.Broadcast(sent) {
		t.Fatal("Broadcast() dropped the message")
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}
	var got Message
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Camera != "gate" || got.Seq != 3 || string(got.Image) != string(sent.Image) || len(got.Faces) != 1 {
		t.Errorf("got %+v", got)
	}

	conn.Close()
	deadline = time.Now().Add(2 * time.Second)
	for hub.ClientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("viewer never unregistered")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubDropsWhenBacklogged(t *testing.T) {
	hub := newHub() // Run is not started, so nothing drains the buffer

	accepted := 0
	for i := 0; i < broadcastBuffer+5; i++ {
		if hub.Broadcast(Message{Type: MessageFrame, Camera: "gate"}) {
			accepted++
		}
	}
	if accepted != broadcastBuffer {
		t.Errorf("accepted = %d, want %d", accepted, broadcastBuffer)
	}
	if got := hub.dropped.Load(); got != 5 {
		t.Errorf("dropped = %d, want 5", got)
	}
}
