package chatws

import (
	"context"
	"testing"
)

func TestMemoryPresenceFirstAndLastSemantics(t *testing.T) {
	ctx := context.Background()
	presence := NewMemoryPresence()

	// Two devices: only the first connect and the last disconnect matter.
	first, err := presence.Connect(ctx, 42)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if !first {
		t.Fatal("first connection must report first=true")
	}

	second, err := presence.Connect(ctx, 42)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if second {
		t.Fatal("second connection must report first=false")
	}

	online, err := presence.IsOnline(ctx, 42)
	if err != nil {
		t.Fatalf("IsOnline: %v", err)
	}
	if !online {
		t.Fatal("user with live connections must be online")
	}

	last, err := presence.Disconnect(ctx, 42)
	if err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if last {
		t.Fatal("disconnect with a remaining connection must report last=false")
	}

	last, err = presence.Disconnect(ctx, 42)
	if err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if !last {
		t.Fatal("final disconnect must report last=true")
	}

	online, err = presence.IsOnline(ctx, 42)
	if err != nil {
		t.Fatalf("IsOnline: %v", err)
	}
	if online {
		t.Fatal("user without connections must be offline")
	}
}

func TestMemoryPresenceDisconnectWithoutConnect(t *testing.T) {
	ctx := context.Background()
	presence := NewMemoryPresence()

	last, err := presence.Disconnect(ctx, 7)
	if err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if last {
		t.Fatal("disconnect of an untracked user must not report last=true")
	}
}

func TestMemoryPresenceTracksUsersIndependently(t *testing.T) {
	ctx := context.Background()
	presence := NewMemoryPresence()

	if _, err := presence.Connect(ctx, 1); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if _, err := presence.Connect(ctx, 2); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if _, err := presence.Disconnect(ctx, 1); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}

	online, err := presence.IsOnline(ctx, 2)
	if err != nil {
		t.Fatalf("IsOnline: %v", err)
	}
	if !online {
		t.Fatal("disconnecting one user must not affect another")
	}
}
