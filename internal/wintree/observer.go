package wintree

import (
	"slices"

	"github.com/1broseidon/treemirror/internal/platform"
)

// Observer receives notifications about the mirrored tree. Callbacks run on
// the client's goroutine and may add or remove observers. They must not
// complete changes synchronously.
type Observer interface {
	OnWindowCreated(w *Window)
	OnWindowDestroyed(id platform.WindowID)
	// OnPropertyChanged fires for bounds, visibility, opacity, cursor, modal
	// and named properties. key is only set for KindProperty.
	OnPropertyChanged(w *Window, kind Kind, key string)
	OnHierarchyChanged(w *Window, oldParent, newParent platform.WindowID)
	OnCaptureLost(id platform.WindowID)
	OnCaptureGained(id platform.WindowID)
	OnFocusLost(id platform.WindowID)
	OnFocusGained(id platform.WindowID)
	OnEmbed(root *Window)
	OnUnembed(root platform.WindowID)
	OnChangeRejected(ch Change)
	OnConnectionLost()
}

// BaseObserver implements Observer with no-ops so implementations only
// override what they need.
type BaseObserver struct{}

func (BaseObserver) OnWindowCreated(*Window)                                          {}
func (BaseObserver) OnWindowDestroyed(platform.WindowID)                              {}
func (BaseObserver) OnPropertyChanged(*Window, Kind, string)                          {}
func (BaseObserver) OnHierarchyChanged(*Window, platform.WindowID, platform.WindowID) {}
func (BaseObserver) OnCaptureLost(platform.WindowID)                                  {}
func (BaseObserver) OnCaptureGained(platform.WindowID)                                {}
func (BaseObserver) OnFocusLost(platform.WindowID)                                    {}
func (BaseObserver) OnFocusGained(platform.WindowID)                                  {}
func (BaseObserver) OnEmbed(*Window)                                                  {}
func (BaseObserver) OnUnembed(platform.WindowID)                                      {}
func (BaseObserver) OnChangeRejected(Change)                                          {}
func (BaseObserver) OnConnectionLost()                                                {}

// observerList is copy-on-write: every mutation installs a new slice, so a
// snapshot taken before notifying stays valid while callbacks edit the list.
type observerList struct {
	observers []Observer
}

func (l *observerList) add(o Observer) {
	if slices.Contains(l.observers, o) {
		return
	}
	next := slices.Clone(l.observers)
	l.observers = append(next, o)
}

func (l *observerList) remove(o Observer) {
	i := slices.Index(l.observers, o)
	if i < 0 {
		return
	}
	next := slices.Clone(l.observers)
	l.observers = slices.Delete(next, i, i+1)
}

func (l *observerList) each(fn func(Observer)) {
	for _, o := range l.observers {
		fn(o)
	}
}
