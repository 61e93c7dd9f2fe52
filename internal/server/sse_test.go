package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/modelbase/internal/events"
)

func TestSSEHub_BroadcastAndReceive(t *testing.T) {
	hub := newSSEHub(8)

	client := hub.subscribe(nil) // all topics
	defer hub.unsubscribe(client)

	hub.broadcast(events.TopicDocumentCreated, []byte(`{"id":"doc-1"}`))

	select {
	case evt := <-client.ch:
		if evt.Topic != events.TopicDocumentCreated {
			t.Fatalf("expected topic=%q, got %q", events.TopicDocumentCreated, evt.Topic)
		}
		if string(evt.Data) != `{"id":"doc-1"}` {
			t.Fatalf("expected data=%q, got %q", `{"id":"doc-1"}`, string(evt.Data))
		}
		if evt.ID != 1 {
			t.Fatalf("expected id=1, got %d", evt.ID)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestSSEHub_TopicFiltering(t *testing.T) {
	hub := newSSEHub(8)

	client := hub.subscribe([]string{"modelbase.document.*"})
	defer hub.unsubscribe(client)

	hub.broadcast(events.TopicModelCreated, []byte(`{}`))
	hub.broadcast(events.TopicDocumentCreated, []byte(`{}`))

	select {
	case evt := <-client.ch:
		if evt.Topic != events.TopicDocumentCreated {
			t.Fatalf("expected topic=%q, got %q", events.TopicDocumentCreated, evt.Topic)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}

	select {
	case evt := <-client.ch:
		t.Fatalf("unexpected event: topic=%q", evt.Topic)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSSEHub_Unsubscribe(t *testing.T) {
	hub := newSSEHub(8)

	client := hub.subscribe(nil)
	hub.unsubscribe(client)

	hub.broadcast(events.TopicModelCreated, []byte(`{}`))

	select {
	case <-client.ch:
		t.Fatal("should not receive events after unsubscribe")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSSEHub_SlowClientDropsEvents(t *testing.T) {
	hub := newSSEHub(8)
	client := hub.subscribe(nil)
	defer hub.unsubscribe(client)

	for range sseClientBuffer + 10 {
		hub.broadcast(events.TopicModelCreated, []byte(`{}`))
	}
	if got := len(client.ch); got != sseClientBuffer {
		t.Fatalf("queued %d events, want %d", got, sseClientBuffer)
	}
}

func TestSSEHub_EventsSince(t *testing.T) {
	hub := newSSEHub(8)
	for range 5 {
		hub.broadcast(events.TopicDocumentCreated, []byte(`{}`))
	}

	evts, complete := hub.eventsSince(2)
	if !complete {
		t.Error("expected a complete replay")
	}
	if len(evts) != 3 {
		t.Fatalf("expected 3 events, got %d", len(evts))
	}
	if evts[0].ID != 3 || evts[1].ID != 4 || evts[2].ID != 5 {
		t.Fatalf("expected IDs [3,4,5], got [%d,%d,%d]", evts[0].ID, evts[1].ID, evts[2].ID)
	}
}

func TestSSEHub_EventsSince_Empty(t *testing.T) {
	hub := newSSEHub(8)
	evts, complete := hub.eventsSince(0)
	if len(evts) != 0 || !complete {
		t.Fatalf("got %d events, complete=%v", len(evts), complete)
	}
}

func TestSSEHub_RingBufferWrap(t *testing.T) {
	const size = 10
	hub := newSSEHub(size)
	for range size + 5 {
		hub.broadcast(events.TopicDocumentUpdated, []byte(`{}`))
	}

	evts, complete := hub.eventsSince(0)
	if complete {
		t.Error("expected the replay to be truncated")
	}
	if len(evts) != size {
		t.Fatalf("expected %d events, got %d", size, len(evts))
	}
	if evts[0].ID != 6 {
		t.Fatalf("expected oldest event ID=6, got %d", evts[0].ID)
	}

	if _, complete := hub.eventsSince(5); !complete {
		t.Error("a client that saw event 5 misses nothing")
	}
}

func TestMatchTopicPattern(t *testing.T) {
	for _, tc := range []struct {
		pattern string
		topic   string
		want    bool
	}{
		{"modelbase.model.created", "modelbase.model.created", true},
		{"modelbase.model.created", "modelbase.model.updated", false},
		{"modelbase.document.*", "modelbase.document.created", true},
		{"modelbase.document.*", "modelbase.model.created", false},
		{"modelbase.>", "modelbase.document.created", true},
		{"modelbase.>", "modelbase.import.completed", true},
		{"modelbase.>", "modelbase", false},
		{"modelbase.>", "other.topic", false},
		{"*.*.*", "modelbase.model.deleted", true},
		{"*.*.*", "modelbase.model", false},
	} {
		t.Run(tc.pattern+"_"+tc.topic, func(t *testing.T) {
			got := matchTopicPattern(tc.pattern, tc.topic)
			if got != tc.want {
				t.Fatalf("matchTopicPattern(%q, %q) = %v, want %v", tc.pattern, tc.topic, got, tc.want)
			}
		})
	}
}

func TestParseTopics(t *testing.T) {
	got := parseTopics(" modelbase.model.* ,,modelbase.import.completed")
	if strings.Join(got, "|") != "modelbase.model.*|modelbase.import.completed" {
		t.Fatalf("parseTopics = %q", got)
	}
	if parseTopics("") != nil {
		t.Fatal("expected nil for an empty parameter")
	}
}

// captureStream runs the SSE handler for a request built from path and
// header, calls during while the client is connected, and returns the
// recorded response once the client disconnects.
func captureStream(t *testing.T, handler http.Handler, path string, header http.Header, during func()) *httptest.ResponseRecorder {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest("GET", path, nil).WithContext(ctx)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		handler.ServeHTTP(rec, req)
	}()

	// Give the handler time to register the subscription.
	time.Sleep(50 * time.Millisecond)
	if during != nil {
		during()
	}
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done
	return rec
}

func TestHandleEventStream_SSE(t *testing.T) {
	srv, _, handler := newTestServer()

	rec := captureStream(t, handler, "/v1/events/stream", nil, func() {
		srv.sseHub.broadcast(events.TopicDocumentCreated, []byte(`{"id":"doc-sse1"}`))
	})

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected Content-Type=text/event-stream, got %q", ct)
	}
	body := rec.Body.String()
	if !strings.HasPrefix(body, "retry:3000\n\n") {
		t.Fatalf("expected a retry hint first, got:\n%s", body)
	}
	if !strings.Contains(body, "event:"+events.TopicDocumentCreated) {
		t.Fatalf("expected document event in body, got:\n%s", body)
	}
	if !strings.Contains(body, `data:{"id":"doc-sse1"}`) {
		t.Fatalf("expected payload in body, got:\n%s", body)
	}
}

func TestHandleEventStream_TopicFilter(t *testing.T) {
	srv, _, handler := newTestServer()

	rec := captureStream(t, handler, "/v1/events/stream?topics=modelbase.model.*", nil, func() {
		srv.sseHub.broadcast(events.TopicDocumentCreated, []byte(`{}`))
		srv.sseHub.broadcast(events.TopicModelCreated, []byte(`{}`))
	})

	body := rec.Body.String()
	if strings.Contains(body, events.TopicDocumentCreated) {
		t.Fatalf("expected document event to be filtered out, got:\n%s", body)
	}
	if !strings.Contains(body, events.TopicModelCreated) {
		t.Fatalf("expected model event in body, got:\n%s", body)
	}
}

func TestHandleEventStream_LastEventID(t *testing.T) {
	srv, _, handler := newTestServer()

	srv.sseHub.broadcast(events.TopicDocumentCreated, []byte(`{"n":1}`))
	srv.sseHub.broadcast(events.TopicDocumentUpdated, []byte(`{"n":2}`))
	srv.sseHub.broadcast(events.TopicDocumentDeleted, []byte(`{"n":3}`))

	rec := captureStream(t, handler, "/v1/events/stream", http.Header{"Last-Event-Id": {"1"}}, nil)

	body := rec.Body.String()
	if strings.Contains(body, `data:{"n":1}`) {
		t.Fatalf("expected event 1 to be skipped, got:\n%s", body)
	}
	if !strings.Contains(body, `data:{"n":2}`) || !strings.Contains(body, `data:{"n":3}`) {
		t.Fatalf("expected events 2 and 3 in body, got:\n%s", body)
	}
	if strings.Contains(body, ":replay truncated") {
		t.Fatalf("unexpected truncation marker:\n%s", body)
	}
	if strings.Count(body, `data:{"n":2}`) != 1 {
		t.Fatalf("event 2 sent more than once:\n%s", body)
	}
}

func TestHandleEventStream_ReplayTruncated(t *testing.T) {
	srv, _, handler := newTestServer()
	srv.sseHub = newSSEHub(2)
	for range 5 {
		srv.sseHub.broadcast(events.TopicDocumentCreated, []byte(`{}`))
	}

	rec := captureStream(t, handler, "/v1/events/stream", http.Header{"Last-Event-Id": {"1"}}, nil)

	body := rec.Body.String()
	if !strings.Contains(body, ":replay truncated") {
		t.Fatalf("expected truncation marker, got:\n%s", body)
	}
	if strings.Count(body, "event:") != 2 {
		t.Fatalf("expected the 2 buffered events, got:\n%s", body)
	}
}

func TestHandleEventStream_RecordAndPublish(t *testing.T) {
	srv, _, handler := newTestServer()

	rec := captureStream(t, handler, "/v1/events/stream", nil, func() {
		srv.recordAndPublish(context.Background(), events.TopicModelDeleted, "books", "",
			events.ModelDeleted{ModelName: "books"})
	})

	body := rec.Body.String()
	if !strings.Contains(body, "event:"+events.TopicModelDeleted) {
		t.Fatalf("expected SSE event from recordAndPublish, got:\n%s", body)
	}
}

func TestHandleEventStream_MultipleClients(t *testing.T) {
	srv, _, handler := newTestServer()

	var rec1 *httptest.ResponseRecorder
	rec2 := captureStream(t, handler, "/v1/events/stream", nil, func() {
		rec1 = captureStream(t, handler, "/v1/events/stream", nil, func() {
			srv.sseHub.broadcast(events.TopicModelCreated, []byte(`{"multi":true}`))
		})
	})

	for i, rec := range []*httptest.ResponseRecorder{rec1, rec2} {
		if !strings.Contains(rec.Body.String(), `data:{"multi":true}`) {
			t.Fatalf("client %d: expected event, got:\n%s", i+1, rec.Body.String())
		}
	}
}

func TestSSEEventFormat(t *testing.T) {
	srv, _, handler := newTestServer()

	rec := captureStream(t, handler, "/v1/events/stream", nil, func() {
		srv.sseHub.broadcast(events.TopicDocumentCreated, []byte(`{"id":"doc-fmt"}`))
	})

	scanner := bufio.NewScanner(strings.NewReader(rec.Body.String()))
	var id, event, data string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "id:"):
			id = strings.TrimPrefix(line, "id:")
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimPrefix(line, "event:")
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimPrefix(line, "data:")
		}
	}

	if id != "1" {
		t.Fatalf("expected id=1, got %q", id)
	}
	if event != events.TopicDocumentCreated {
		t.Fatalf("expected event=%s, got %q", events.TopicDocumentCreated, event)
	}
	if !json.Valid([]byte(data)) || data != `{"id":"doc-fmt"}` {
		t.Fatalf("unexpected data %q", data)
	}
}
