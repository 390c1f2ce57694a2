package config

import (
	"fmt"
	"maps"
	"slices"
)

type ValidationError struct {
	Path   string
	Source Source
	Err    error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Source.Kind == SourceFile && e.Source.File != "" && e.Source.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s: %v", e.Source.File, e.Source.Line, e.Source.Column, e.Path, e.Err)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// BuildEffectiveConfig layers raw over the defaults.
func BuildEffectiveConfig(raw RawConfig) *Config {
	cfg := DefaultConfig()

	if raw.Transport != nil {
		cfg.Transport = *raw.Transport
	}
	if ipc := raw.IPC; ipc != nil {
		setFrom(&cfg.IPC.Endpoint, ipc.Endpoint)
		setFrom(&cfg.IPC.TokenSecret, ipc.TokenSecret)
		setFrom(&cfg.IPC.DialTimeoutMS, ipc.DialTimeoutMS)
	}
	if x := raw.X11; x != nil {
		setFrom(&cfg.X11.Display, x.Display)
		setFrom(&cfg.X11.SnapshotDepth, x.SnapshotDepth)
	}
	if l := raw.Log; l != nil {
		setFrom(&cfg.Log.Level, l.Level)
		setFrom(&cfg.Log.Format, l.Format)
	}
	if r := raw.Reconciler; r != nil {
		setFrom(&cfg.Reconciler.IntervalSeconds, r.IntervalSeconds)
		setFrom(&cfg.Reconciler.StaleAfterSeconds, r.StaleAfterSeconds)
	}
	// Property types extend the defaults rather than replacing them.
	maps.Copy(cfg.Properties, raw.Properties)
	if a := raw.Authority; a != nil {
		setFrom(&cfg.Authority.Listen, a.Listen)
		setFrom(&cfg.Authority.DisplayWidth, a.DisplayWidth)
		setFrom(&cfg.Authority.DisplayHeight, a.DisplayHeight)
		if a.RejectOps != nil {
			cfg.Authority.RejectOps = slices.Clone(a.RejectOps)
		}
	}
	return cfg
}

func setFrom[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}
