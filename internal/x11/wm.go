package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/xprop"
)

// rootMessage sends an EWMH client message about win to the root window.
// The message is built by hand because the xgbutil ewmh request helpers
// panic on this library version (uint vs int type assertion).
func (c *Connection) rootMessage(name string, win xproto.Window, data ...uint32) error {
	atom, err := xprop.Atm(c.XUtil, name)
	if err != nil {
		return fmt.Errorf("failed to intern %s: %w", name, err)
	}

	payload := make([]uint32, 5)
	copy(payload, data)
	ev := xproto.ClientMessageEvent{
		Format: 32,
		Window: win,
		Type:   atom,
		Data:   xproto.ClientMessageDataUnionData32New(payload),
	}

	return xproto.SendEventChecked(
		c.XUtil.Conn(),
		false,
		c.Root,
		xproto.EventMaskSubstructureRedirect|xproto.EventMaskSubstructureNotify,
		string(ev.Bytes()),
	).Check()
}

// activate asks the window manager to focus and raise a top-level window.
func (c *Connection) activate(win xproto.Window) error {
	return c.rootMessage("_NET_ACTIVE_WINDOW", win, sourceIndication)
}

// startMove hands an interactive move of win to the window manager, anchored
// at the given root coordinates.
func (c *Connection) startMove(win xproto.Window, x, y int) error {
	const button = 1
	return c.rootMessage("_NET_WM_MOVERESIZE", win,
		uint32(int32(x)), uint32(int32(y)), moveresizeMove, button, sourceIndication)
}

// cancelMove aborts a move started by startMove.
func (c *Connection) cancelMove(win xproto.Window) error {
	return c.rootMessage("_NET_WM_MOVERESIZE", win, 0, 0, moveresizeCancel, 0, sourceIndication)
}
