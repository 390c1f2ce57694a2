package daemon

import (
	"log/slog"

	"github.com/1broseidon/treemirror/internal/platform"
	"github.com/1broseidon/treemirror/internal/wintree"
)

// LogObserver logs every tree notification. It backs `treemirror watch`.
type LogObserver struct {
	wintree.BaseObserver
	logger *slog.Logger
}

func NewLogObserver(logger *slog.Logger) *LogObserver {
	return &LogObserver{logger: logger}
}

func (o *LogObserver) OnWindowCreated(w *wintree.Window) {
	o.logger.Info("window created",
		"window", w.ID(),
		"owned", w.Owned(),
		"bounds", w.Bounds(),
		"visible", w.Visible())
}

func (o *LogObserver) OnWindowDestroyed(id platform.WindowID) {
	o.logger.Info("window destroyed", "window", id)
}

func (o *LogObserver) OnPropertyChanged(w *wintree.Window, kind wintree.Kind, key string) {
	attrs := []any{"window", w.ID(), "kind", kind}
	switch kind {
	case wintree.KindBounds:
		attrs = append(attrs, "bounds", w.Bounds())
	case wintree.KindVisible:
		attrs = append(attrs, "visible", w.Visible())
	case wintree.KindOpacity:
		attrs = append(attrs, "opacity", w.Opacity())
	case wintree.KindCursor:
		attrs = append(attrs, "cursor", w.Cursor())
	case wintree.KindProperty:
		_, present := w.Property(key)
		attrs = append(attrs, "key", key, "present", present)
	}
	o.logger.Info("property changed", attrs...)
}

func (o *LogObserver) OnHierarchyChanged(w *wintree.Window, oldParent, newParent platform.WindowID) {
	o.logger.Info("hierarchy changed", "window", w.ID(), "old_parent", oldParent, "new_parent", newParent)
}

func (o *LogObserver) OnCaptureGained(id platform.WindowID) {
	o.logger.Info("capture gained", "window", id)
}

func (o *LogObserver) OnFocusGained(id platform.WindowID) {
	o.logger.Info("focus gained", "window", id)
}

func (o *LogObserver) OnEmbed(root *wintree.Window) {
	o.logger.Info("embedded", "root", root.ID(), "children", len(root.Children()))
}

func (o *LogObserver) OnUnembed(root platform.WindowID) {
	o.logger.Info("unembedded", "root", root)
}

func (o *LogObserver) OnChangeRejected(ch wintree.Change) {
	o.logger.Warn("change rejected", "change_id", ch.ID, "kind", ch.Kind, "window", ch.Window, "key", ch.Key)
}

func (o *LogObserver) OnConnectionLost() {
	o.logger.Warn("connection lost; mirror discarded")
}
