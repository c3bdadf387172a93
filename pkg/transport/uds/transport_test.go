package uds

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func listenServer(t *testing.T, register func(*Server), opts ...ServerOption) (*Server, string) {
	t.Helper()
	sock := filepath.Join(t.TempDir(), "test.sock")
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	srv := NewServer(sock, logger, opts...)
	if register != nil {
		register(srv)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go srv.Start(ctx)
	t.Cleanup(func() {
		cancel()
		srv.Shutdown()
	})

	// Wait for socket to appear
	for i := 0; i < 50; i++ {
		if _, err := os.Stat(sock); err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	return srv, sock
}

func startServer(t *testing.T, register func(*Server), opts ...ServerOption) (*Server, *Client) {
	t.Helper()
	srv, sock := listenServer(t, register, opts...)

	client, err := Dial(sock)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return srv, client
}

func waitClients(t *testing.T, srv *Server, want int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for srv.Clients() != want {
		if time.Now().After(deadline) {
			t.Fatalf("clients = %d, want %d", srv.Clients(), want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func pingHandler(srv *Server) {
	srv.Handle(MethodPing, func(_ context.Context, _ Message) (any, error) {
		return PingResponse{Pong: true}, nil
	})
}

func requestCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestPingRoundTrip(t *testing.T) {
	_, client := startServer(t, func(srv *Server) {
		srv.Handle(MethodPing, func(_ context.Context, _ Message) (any, error) {
			return PingResponse{Pong: true, Name: "edge-01"}, nil
		})
	})

	resp, err := client.Request(requestCtx(t), MethodPing, nil)
	if err != nil {
		t.Fatalf("ping request: %v", err)
	}

	var pong PingResponse
	if err := resp.UnmarshalData(&pong); err != nil {
		t.Fatalf("unmarshal pong: %v", err)
	}
	if !pong.Pong {
		t.Error("expected pong=true")
	}
	if pong.Name != "edge-01" {
		t.Errorf("name = %q, want edge-01", pong.Name)
	}
}

func TestDispatchRequestPayload(t *testing.T) {
	_, client := startServer(t, func(srv *Server) {
		srv.Handle(MethodDispatch, func(_ context.Context, req Message) (any, error) {
			var dr DispatchRequest
			if err := req.UnmarshalData(&dr); err != nil {
				return nil, err
			}
			if dr.Plugin != "logs" || dr.Action != "report" || dr.Data != "myself" {
				return nil, errors.New("unexpected request")
			}
			return DispatchResponse{Ack: "send", Outcome: "dispatched"}, nil
		})
	})

	resp, err := client.Request(requestCtx(t), MethodDispatch, DispatchRequest{Plugin: "logs", Action: "report", Data: "myself"})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	var dr DispatchResponse
	if err := resp.UnmarshalData(&dr); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if dr.Ack != "send" || dr.Outcome != "dispatched" {
		t.Errorf("response = %+v", dr)
	}
}

func TestHandlerErrorPropagates(t *testing.T) {
	_, client := startServer(t, func(srv *Server) {
		srv.Handle(MethodStatus, func(_ context.Context, _ Message) (any, error) {
			return nil, errors.New("plugin not loaded: logs")
		})
	})

	resp, err := client.Request(requestCtx(t), MethodStatus, PluginRequest{Plugin: "logs"})
	if err == nil {
		t.Fatal("expected error")
	}
	if resp.Error != "plugin not loaded: logs" {
		t.Errorf("error = %q", resp.Error)
	}
}

func TestUnknownMethod(t *testing.T) {
	_, client := startServer(t, nil)

	_, err := client.Request(requestCtx(t), "NoSuchMethod", nil)
	if err == nil {
		t.Error("expected error for unknown method")
	}
}

func TestUnmarshalDataEmpty(t *testing.T) {
	var v PluginRequest
	if err := (Message{Method: MethodStatus}).UnmarshalData(&v); err == nil {
		t.Error("expected error for empty data")
	}
}

func TestBroadcastEvent(t *testing.T) {
	srv, client := startServer(t, func(srv *Server) {
		srv.Handle(MethodPing, func(_ context.Context, _ Message) (any, error) {
			return PingResponse{Pong: true}, nil
		})
	})

	evtCh := make(chan Message, 1)
	client.OnEvent(func(msg Message) {
		evtCh <- msg
	})

	// Ensure connection is established by doing a ping first
	if _, err := client.Request(requestCtx(t), MethodPing, nil); err != nil {
		t.Fatalf("ping: %v", err)
	}

	evt, _ := NewEvent(EventReportPublished, ReportEvent{Topic: "tln/edge-01/logs", Payload: "1: x : y\n"})
	srv.Broadcast(evt)

	select {
	case msg := <-evtCh:
		if msg.Method != EventReportPublished {
			t.Errorf("expected method %s, got %s", EventReportPublished, msg.Method)
		}
		var re ReportEvent
		if err := msg.UnmarshalData(&re); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		if re.Topic != "tln/edge-01/logs" {
			t.Errorf("topic = %q", re.Topic)
		}
	case <-time.After(2 * time.Second):
		t.Error("timeout waiting for broadcast event")
	}
}

func TestRequestAfterClose(t *testing.T) {
	_, client := startServer(t, nil)
	client.Close()
	client.Close()

	if _, err := client.Request(requestCtx(t), MethodPing, nil); err == nil {
		t.Error("expected error on closed client")
	}
}

func TestBroadcastDoesNotWaitOnStalledClient(t *testing.T) {
	srv, sock := listenServer(t, pingHandler, WithClientQueue(2), WithWriteTimeout(100*time.Millisecond))

	// Connected but never reads.
	stalled, err := net.Dial("unix", sock)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer stalled.Close()
	waitClients(t, srv, 1)

	evt, err := NewEvent(EventReportPublished, ReportEvent{
		Topic:   "tln/edge-01/logs",
		Payload: strings.Repeat("x", 64*1024),
	})
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range 200 {
			srv.Broadcast(evt)
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Broadcast blocked on a client that does not read")
	}

	waitClients(t, srv, 0)

	client, err := Dial(sock)
	if err != nil {
		t.Fatalf("dial after drop: %v", err)
	}
	defer client.Close()
	if _, err := client.Request(requestCtx(t), MethodPing, nil); err != nil {
		t.Fatalf("ping after drop: %v", err)
	}
}

func TestLargeEventDelivered(t *testing.T) {
	srv, client := startServer(t, pingHandler)

	evtCh := make(chan Message, 1)
	client.OnEvent(func(msg Message) {
		evtCh <- msg
	})
	if _, err := client.Request(requestCtx(t), MethodPing, nil); err != nil {
		t.Fatalf("ping: %v", err)
	}

	// 500 entries of roughly 2.4 KB each, past any 1 MB line limit.
	line := strings.Repeat("y", 2400)
	var sb strings.Builder
	for i := range 500 {
		sb.WriteString(time.Unix(int64(i), 0).UTC().Format("2006-01-02 15:04:05"))
		sb.WriteString(" : ")
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	payload := sb.String()
	evt, err := NewEvent(EventReportPublished, ReportEvent{Topic: "tln/edge-01/logs", Payload: payload})
	if err != nil {
		t.Fatal(err)
	}
	srv.Broadcast(evt)

	select {
	case msg := <-evtCh:
		var re ReportEvent
		if err := msg.UnmarshalData(&re); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		if len(re.Payload) != len(payload) {
			t.Errorf("payload length = %d, want %d", len(re.Payload), len(payload))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("large event never arrived")
	}

	if _, err := client.Request(requestCtx(t), MethodPing, nil); err != nil {
		t.Errorf("ping after large event: %v", err)
	}
}

func TestClientDoneOnServerShutdown(t *testing.T) {
	srv, client := startServer(t, pingHandler)
	if _, err := client.Request(requestCtx(t), MethodPing, nil); err != nil {
		t.Fatalf("ping: %v", err)
	}

	srv.Shutdown()
	select {
	case <-client.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("Done not closed after server shutdown")
	}
	if _, err := client.Request(requestCtx(t), MethodPing, nil); err == nil {
		t.Error("expected error after server shutdown")
	}
}
