package x11

import (
	"fmt"
	"sync"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
)

// Connection holds the X11 connection and the root window of its default
// screen.
type Connection struct {
	XUtil *xgbutil.XUtil
	Root  xproto.Window

	closeOnce sync.Once
}

// NewConnection connects to display, or to $DISPLAY when display is empty.
func NewConnection(display string) (*Connection, error) {
	var (
		xu  *xgbutil.XUtil
		err error
	)
	if display == "" {
		xu, err = xgbutil.NewConn()
	} else {
		xu, err = xgbutil.NewConnDisplay(display)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X11: %w", err)
	}
	return &Connection{
		XUtil: xu,
		Root:  xu.RootWin(),
	}, nil
}

// Close cleanly disconnects from the X11 server. It may be called more
// than once.
func (c *Connection) Close() {
	c.closeOnce.Do(c.XUtil.Conn().Close)
}
