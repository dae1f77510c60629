package session

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/awale-net/awale/internal/protocol"
)

func newTestSession(t *testing.T, id uint32) (*Session, net.Conn, net.Conn) {
	t.Helper()
	serverRead, clientWrite := net.Pipe()
	serverWrite, clientRead := net.Pipe()
	s := New(id, serverRead, serverWrite)
	t.Cleanup(func() {
		s.Close()
		clientWrite.Close()
		clientRead.Close()
	})
	return s, clientWrite, clientRead
}

func TestRegistryAddFindRemove(t *testing.T) {
	registry := NewRegistry(4)
	s, _, _ := newTestSession(t, 1)

	if err := registry.Add("alice", s); err != nil {
		t.Fatalf("Add() returned an error: %s", err)
	}

	found, ok := registry.Find("alice")
	if !ok || found.ID() != 1 {
		t.Fatalf("Find() want session 1, got %v (ok=%v)", found, ok)
	}

	if _, ok := registry.Find("bob"); ok {
		t.Error("Find() for an unknown handle should miss")
	}

	registry.Remove("alice")
	if _, ok := registry.Find("alice"); ok {
		t.Error("Find() after Remove() should miss")
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	registry := NewRegistry(4)
	s1, _, _ := newTestSession(t, 1)
	s2, _, _ := newTestSession(t, 2)

	if err := registry.Add("alice", s1); err != nil {
		t.Fatalf("Add() returned an error: %s", err)
	}
	if err := registry.Add("alice", s2); !errors.Is(err, ErrDuplicateHandle) {
		t.Errorf("Add() want ErrDuplicateHandle, got %v", err)
	}
}

func TestRegistryCapacity(t *testing.T) {
	registry := NewRegistry(1)
	s1, _, _ := newTestSession(t, 1)
	s2, _, _ := newTestSession(t, 2)

	if err := registry.Add("alice", s1); err != nil {
		t.Fatalf("Add() returned an error: %s", err)
	}
	if err := registry.Add("bob", s2); !errors.Is(err, ErrRegistryFull) {
		t.Errorf("Add() want ErrRegistryFull, got %v", err)
	}
	if registry.Count() != 1 {
		t.Errorf("Count() want 1, got %d", registry.Count())
	}
}

func TestSendAfterCloseIsSafeNoOp(t *testing.T) {
	s, _, _ := newTestSession(t, 1)
	s.Close()
	s.Close() // idempotent

	err := s.Send(protocol.ChatMessageType, &protocol.ChatMessage{})
	if !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Send() on closed session want ErrSessionClosed, got %v", err)
	}
}

func TestSessionSendReceive(t *testing.T) {
	s, clientWrite, clientRead := newTestSession(t, 7)

	go func() {
		_ = protocol.WriteFrame(clientWrite, protocol.PlayMoveType, 1, &protocol.PlayMove{GameID: 3, Pit: 2})
	}()

	header, payload, err := s.Receive(time.Second)
	if err != nil {
		t.Fatalf("Receive() returned an error: %s", err)
	}
	if header.Type != protocol.PlayMoveType {
		t.Fatalf("Receive() want PlayMove, got type %d", header.Type)
	}
	var move protocol.PlayMove
	protocol.StructFromBytes(payload, &move)
	if move.GameID != 3 || move.Pit != 2 {
		t.Errorf("unexpected payload: %+v", move)
	}

	done := make(chan error, 1)
	go func() {
		done <- s.Send(protocol.MoveResultType, &protocol.MoveResult{GameID: 3, Captured: 2})
	}()
	header, _, err = protocol.ReadFrame(clientRead)
	if err != nil {
		t.Fatalf("client ReadFrame() returned an error: %s", err)
	}
	if header.Type != protocol.MoveResultType {
		t.Errorf("client want MoveResult, got type %d", header.Type)
	}
	if header.Sequence != 1 {
		t.Errorf("first outbound frame should carry sequence 1, got %d", header.Sequence)
	}
	if err := <-done; err != nil {
		t.Errorf("Send() returned an error: %s", err)
	}

	if s.LastActive().Before(s.CreatedAt()) {
		t.Error("Receive() should refresh the activity timestamp")
	}
}

func TestReceiveTimeoutKeepsSessionUsable(t *testing.T) {
	s, clientWrite, _ := newTestSession(t, 1)

	if _, _, err := s.Receive(20 * time.Millisecond); !errors.Is(err, protocol.ErrTimeout) {
		t.Fatalf("Receive() want protocol.ErrTimeout, got %v", err)
	}

	go func() {
		_ = protocol.WriteFrame(clientWrite, protocol.PingType, 1, nil)
	}()
	if _, _, err := s.Receive(time.Second); err != nil {
		t.Errorf("Receive() after a timeout should still work, got %v", err)
	}
}
