package x11

import (
	"github.com/BurntSushi/xgb/xproto"

	"github.com/1broseidon/treemirror/internal/platform"
)

// idMap translates between mirror window ids and X resource ids.
//
// Windows created by other X clients map arithmetically: the resource base
// becomes Client and the masked bits become Seq. Windows this connection
// creates are allocated by xgb, so their mirror ids are bound explicitly.
type idMap struct {
	root  xproto.Window
	base  uint32
	mask  uint32
	local map[platform.WindowID]xproto.Window
	xids  map[xproto.Window]platform.WindowID
}

func newIDMap(root xproto.Window, base, mask uint32) *idMap {
	return &idMap{
		root:  root,
		base:  base,
		mask:  mask,
		local: make(map[platform.WindowID]xproto.Window),
		xids:  make(map[xproto.Window]platform.WindowID),
	}
}

func (m *idMap) bind(id platform.WindowID, xid xproto.Window) {
	m.local[id] = xid
	m.xids[xid] = id
}

func (m *idMap) unbind(xid xproto.Window) {
	if id, ok := m.xids[xid]; ok {
		delete(m.local, id)
		delete(m.xids, xid)
	}
}

// owned reports whether xid belongs to a window this connection created
// through the mirror.
func (m *idMap) owned(xid xproto.Window) bool {
	_, ok := m.xids[xid]
	return ok
}

// internal reports whether xid is a resource of this connection that the
// mirror did not create, such as the helper windows xgbutil allocates.
func (m *idMap) internal(xid xproto.Window) bool {
	return uint32(xid)&^m.mask == m.base && !m.owned(xid)
}

func (m *idMap) toXID(id platform.WindowID) xproto.Window {
	if id.IsZero() {
		return 0
	}
	if xid, ok := m.local[id]; ok {
		return xid
	}
	return xproto.Window(id.Client | id.Seq&m.mask)
}

// fromXID maps xid to a mirror id. The X root and None map to the zero id.
func (m *idMap) fromXID(xid xproto.Window) platform.WindowID {
	if xid == 0 || xid == m.root {
		return platform.WindowID{}
	}
	if id, ok := m.xids[xid]; ok {
		return id
	}
	return platform.WindowID{Client: uint32(xid) &^ m.mask, Seq: uint32(xid) & m.mask}
}
