package models

import (
	"encoding/json"
	"testing"
)

func TestConnectionState_CanTransition(t *testing.T) {
	all := []ConnectionState{ConnDisconnected, ConnConnecting, ConnOpen, ConnReconnecting, ConnFailed}
	legal := map[[2]ConnectionState]bool{
		{ConnDisconnected, ConnConnecting}:   true,
		{ConnConnecting, ConnOpen}:           true,
		{ConnConnecting, ConnReconnecting}:   true,
		{ConnConnecting, ConnDisconnected}:   true,
		{ConnOpen, ConnReconnecting}:         true,
		{ConnOpen, ConnDisconnected}:         true,
		{ConnReconnecting, ConnConnecting}:   true,
		{ConnReconnecting, ConnFailed}:       true,
		{ConnReconnecting, ConnDisconnected}: true,
		{ConnFailed, ConnConnecting}:         true,
		{ConnFailed, ConnDisconnected}:       true,
	}

	for _, from := range all {
		for _, to := range all {
			want := legal[[2]ConnectionState{from, to}]
			if got := from.CanTransition(to); got != want {
				t.Errorf("%s -> %s: expected %v, got %v", from, to, want, got)
			}
		}
	}
}

func TestConnectionState_UnknownHasNoEdges(t *testing.T) {
	unknown := ConnectionState(42)
	if unknown.String() != "unknown" {
		t.Errorf("expected unknown, got %q", unknown.String())
	}
	if unknown.CanTransition(ConnConnecting) {
		t.Error("unknown state must not transition")
	}
}

func TestConnectionStatus_JSON(t *testing.T) {
	body, err := json.Marshal(ConnectionStatus{State: ConnReconnecting, Attempts: 2, URL: "ws://x"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"state":"reconnecting","attempts":2,"url":"ws://x"}`
	if string(body) != want {
		t.Errorf("expected %s, got %s", want, body)
	}
}
