package core

import (
	"errors"
	"testing"
)

func TestResultAckIsFixed(t *testing.T) {
	tests := []struct {
		name string
		r    Result
	}{
		{"dispatched", Dispatched()},
		{"ignored", Ignored()},
		{"failed", Failed(errors.New("boom"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.r.Ack(); got != AckSend {
				t.Errorf("Ack() = %q, want %q", got, AckSend)
			}
		})
	}
}

func TestResultOK(t *testing.T) {
	if !Dispatched().OK() {
		t.Error("dispatched should be OK")
	}
	if !Ignored().OK() {
		t.Error("ignored should be OK")
	}
	if Failed(ErrUnloaded).OK() {
		t.Error("failed should not be OK")
	}
}

func TestResultString(t *testing.T) {
	if got := Ignored().String(); got != "ignored" {
		t.Errorf("got %q", got)
	}
	if got := Failed(ErrUnloaded).String(); got != "failed: plugin unloaded" {
		t.Errorf("got %q", got)
	}
}

func TestStaticName(t *testing.T) {
	var n NameProvider = StaticName("edge-01")
	if n.CurrentName() != "edge-01" {
		t.Errorf("got %q", n.CurrentName())
	}
}
