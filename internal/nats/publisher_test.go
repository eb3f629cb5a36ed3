package natsclient

import (
	"context"
	"errors"
	"testing"
)

func TestPublishWithoutConnection(t *testing.T) {
	p := &Publisher{}
	if err := p.Publish(context.Background(), "prodmon.machine.down", []byte("{}")); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected got %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Publish(ctx, "prodmon.machine.down", nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled got %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close on unconnected publisher: %v", err)
	}
}
