package daemon

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/1broseidon/treemirror/internal/platform"
	"github.com/1broseidon/treemirror/internal/wintree"
)

type nopTransport struct{}

func (nopTransport) Send(platform.Request) error { return nil }

func startRunner(t *testing.T) (*Runner, context.CancelFunc) {
	t.Helper()
	client := wintree.New(wintree.Options{ClientID: 3, Transport: nopTransport{}})
	r := NewRunner(client, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go r.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-r.Done()
	})
	return r, cancel
}

func TestRunnerPostThenDoObservesEvent(t *testing.T) {
	r, _ := startRunner(t)
	ctx := context.Background()

	var id platform.WindowID
	err := r.Do(ctx, func(c *wintree.Client) error {
		id = c.NewWindow(nil).ID()
		return nil
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}

	r.Post(platform.BoundsChanged{Window: id, Bounds: platform.Rect{Width: 9, Height: 9}})

	var got platform.Rect
	err = r.Do(ctx, func(c *wintree.Client) error {
		got = c.Window(id).Bounds()
		return nil
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if got != (platform.Rect{Width: 9, Height: 9}) {
		t.Fatalf("expected posted event applied before later Do, got %v", got)
	}
}

func TestRunnerDoReturnsError(t *testing.T) {
	r, _ := startRunner(t)
	want := errors.New("boom")

	if err := r.Do(context.Background(), func(*wintree.Client) error { return want }); !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

func TestRunnerDoAfterStop(t *testing.T) {
	r, cancel := startRunner(t)
	cancel()

	select {
	case <-r.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("runner did not stop")
	}

	err := r.Do(context.Background(), func(*wintree.Client) error { return nil })
	if !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
	// Posting after stop must not block.
	r.Post(platform.FocusChanged{})
}

func TestRunnerDoHonorsContext(t *testing.T) {
	r, _ := startRunner(t)
	ctx, cancel := context.WithCancel(context.Background())

	block := make(chan struct{})
	go r.Do(context.Background(), func(*wintree.Client) error {
		<-block
		return nil
	})
	defer close(block)

	cancel()
	if err := r.Do(ctx, func(*wintree.Client) error { return nil }); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
