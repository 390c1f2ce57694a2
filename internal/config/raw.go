package config

import (
	"fmt"
	"maps"

	"gopkg.in/yaml.v3"
)

// IncludeList supports either:
//
//	include: "/path/to/file.yaml"
//
// or:
//
//	include:
//	  - "/path/to/file.yaml"
//	  - "/path/to/dir"
type IncludeList []string

func (l *IncludeList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case 0:
		// Not present.
		*l = nil
		return nil
	case yaml.ScalarNode:
		if value.Tag != "!!str" {
			return fmt.Errorf("include must be a string or list of strings")
		}
		*l = []string{value.Value}
		return nil
	case yaml.SequenceNode:
		out := make([]string, 0, len(value.Content))
		for _, item := range value.Content {
			if item.Kind != yaml.ScalarNode || item.Tag != "!!str" {
				return fmt.Errorf("include entries must be strings")
			}
			out = append(out, item.Value)
		}
		*l = out
		return nil
	default:
		return fmt.Errorf("include must be a string or list of strings")
	}
}

type RawIPC struct {
	Endpoint      *string `yaml:"endpoint"`
	TokenSecret   *string `yaml:"token_secret"`
	DialTimeoutMS *int    `yaml:"dial_timeout_ms"`
}

type RawX11 struct {
	Display       *string `yaml:"display"`
	SnapshotDepth *int    `yaml:"snapshot_depth"`
}

type RawLog struct {
	Level  *string `yaml:"level"`
	Format *string `yaml:"format"`
}

type RawReconciler struct {
	IntervalSeconds   *int `yaml:"interval_seconds"`
	StaleAfterSeconds *int `yaml:"stale_after_seconds"`
}

type RawAuthority struct {
	Listen        *string  `yaml:"listen"`
	DisplayWidth  *int     `yaml:"display_width"`
	DisplayHeight *int     `yaml:"display_height"`
	RejectOps     []string `yaml:"reject_ops"`
}

// RawConfig is one file as written: every field is optional so that
// includes can be layered.
type RawConfig struct {
	Include    IncludeList       `yaml:"include"`
	Transport  *string           `yaml:"transport"`
	IPC        *RawIPC           `yaml:"ipc"`
	X11        *RawX11           `yaml:"x11"`
	Log        *RawLog           `yaml:"log"`
	Reconciler *RawReconciler    `yaml:"reconciler"`
	Properties map[string]string `yaml:"properties"`
	Authority  *RawAuthority     `yaml:"authority"`
}

func (c RawConfig) merge(overlay RawConfig) RawConfig {
	out := c

	if overlay.Transport != nil {
		out.Transport = overlay.Transport
	}
	if overlay.IPC != nil {
		base := RawIPC{}
		if out.IPC != nil {
			base = *out.IPC
		}
		mergePtr(&base.Endpoint, overlay.IPC.Endpoint)
		mergePtr(&base.TokenSecret, overlay.IPC.TokenSecret)
		mergePtr(&base.DialTimeoutMS, overlay.IPC.DialTimeoutMS)
		out.IPC = &base
	}
	if overlay.X11 != nil {
		base := RawX11{}
		if out.X11 != nil {
			base = *out.X11
		}
		mergePtr(&base.Display, overlay.X11.Display)
		mergePtr(&base.SnapshotDepth, overlay.X11.SnapshotDepth)
		out.X11 = &base
	}
	if overlay.Log != nil {
		base := RawLog{}
		if out.Log != nil {
			base = *out.Log
		}
		mergePtr(&base.Level, overlay.Log.Level)
		mergePtr(&base.Format, overlay.Log.Format)
		out.Log = &base
	}
	if overlay.Reconciler != nil {
		base := RawReconciler{}
		if out.Reconciler != nil {
			base = *out.Reconciler
		}
		mergePtr(&base.IntervalSeconds, overlay.Reconciler.IntervalSeconds)
		mergePtr(&base.StaleAfterSeconds, overlay.Reconciler.StaleAfterSeconds)
		out.Reconciler = &base
	}
	if overlay.Properties != nil {
		merged := make(map[string]string, len(out.Properties)+len(overlay.Properties))
		maps.Copy(merged, out.Properties)
		maps.Copy(merged, overlay.Properties)
		out.Properties = merged
	}
	if overlay.Authority != nil {
		base := RawAuthority{}
		if out.Authority != nil {
			base = *out.Authority
		}
		mergePtr(&base.Listen, overlay.Authority.Listen)
		mergePtr(&base.DisplayWidth, overlay.Authority.DisplayWidth)
		mergePtr(&base.DisplayHeight, overlay.Authority.DisplayHeight)
		if overlay.Authority.RejectOps != nil {
			base.RejectOps = overlay.Authority.RejectOps
		}
		out.Authority = &base
	}
	return out
}

func mergePtr[T any](dst **T, src *T) {
	if src != nil {
		*dst = src
	}
}
