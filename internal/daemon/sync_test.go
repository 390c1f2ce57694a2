package daemon

import (
	"context"
	"errors"
	"testing"

	"github.com/1broseidon/treemirror/internal/platform"
	"github.com/1broseidon/treemirror/internal/wintree"
)

type scriptedConn struct {
	events []platform.Event
	err    error
}

func (c *scriptedConn) Send(platform.Request) error { return nil }

func (c *scriptedConn) Run(_ context.Context, sink platform.EventSink) error {
	for _, ev := range c.events {
		sink(ev)
	}
	return c.err
}

type lostObserver struct {
	wintree.BaseObserver
	lost chan struct{}
}

func (o *lostObserver) OnConnectionLost() { close(o.lost) }

func TestStateSynchronizerTearsDownOnConnectionLoss(t *testing.T) {
	root := platform.WindowData{ID: platform.WindowID{Client: 9, Seq: 1}, Visible: true}
	conn := &scriptedConn{
		events: []platform.Event{platform.Embedded{Root: root, Drawn: true}},
		err:    errors.New("eof"),
	}
	client := wintree.New(wintree.Options{ClientID: 2, Transport: conn})
	obs := &lostObserver{lost: make(chan struct{})}
	client.AddObserver(obs)

	r := NewRunner(client, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		<-r.Done()
	}()
	go r.Run(ctx)

	err := NewStateSynchronizer(r, conn, nil).Run(ctx)
	if err == nil || err.Error() != "eof" {
		t.Fatalf("expected connection error, got %v", err)
	}

	<-obs.lost
	var n int
	if err := r.Do(ctx, func(c *wintree.Client) error {
		n = len(c.Windows())
		return nil
	}); err != nil {
		t.Fatalf("do: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected mirror discarded, have %d windows", n)
	}
}
