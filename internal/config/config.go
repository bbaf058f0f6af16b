// Package config loads the declarative YAML description of a pipeline:
// which muxer to use, which sinks to open, and the timing/capacity knobs
// spec.md leaves as defaults (PSI cadence, segment duration, channel
// capacity, regulator bounds).
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/thibaultbee/streampack-go/internal/errs"
)

// MuxerKind selects which container the pipeline emits.
type MuxerKind string

// Supported muxer kinds.
const (
	MuxerTS   MuxerKind = "ts"
	MuxerFMP4 MuxerKind = "fmp4"
	MuxerFLV  MuxerKind = "flv"
)

// SinkKind selects which sink family a descriptor targets.
type SinkKind string

// Supported sink kinds.
const (
	SinkFile    SinkKind = "file"
	SinkContent SinkKind = "content"
	SinkSRT     SinkKind = "srt"
	SinkRTMP    SinkKind = "rtmp"
)

// SinkDescriptor mirrors spec.md §6's media descriptor: (type, uri,
// custom_data?).
type SinkDescriptor struct {
	Kind       SinkKind          `yaml:"kind"`
	URI        string            `yaml:"uri"`
	StreamID   string            `yaml:"stream_id,omitempty"`
	Passphrase string            `yaml:"passphrase,omitempty"`
	LatencyMs  int               `yaml:"latency_ms,omitempty"`
	Custom     map[string]string `yaml:"custom,omitempty"`
}

// RegulatorConfig carries the bitrate regulator's bounds and tick period
// (spec.md §4.7).
type RegulatorConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Period          time.Duration `yaml:"period"`
	MinVideoBitrate int           `yaml:"min_video_bitrate"`
	MaxVideoBitrate int           `yaml:"max_video_bitrate"`
	MinAudioBitrate int           `yaml:"min_audio_bitrate"`
	MaxAudioBitrate int           `yaml:"max_audio_bitrate"`
}

// PipelineConfig is the top-level document.
type PipelineConfig struct {
	Muxer MuxerKind `yaml:"muxer"`

	// Sinks is non-empty for a single endpoint, or has more than one entry
	// to build a combine endpoint (spec.md §4.6).
	Sinks []SinkDescriptor `yaml:"sinks"`

	ChannelCapacity  int             `yaml:"channel_capacity"`
	SegmentTargetMs  int             `yaml:"segment_target_ms"`
	PSICadenceMs     int             `yaml:"psi_cadence_ms"`
	PCRMaxIntervalMs int             `yaml:"pcr_max_interval_ms"`
	EnhancedFLV      bool            `yaml:"enhanced_flv"`
	Regulator        RegulatorConfig `yaml:"regulator"`
}

// Defaults returns the spec-mandated defaults (spec.md §4.2, §4.3, §4.7, §5).
func Defaults() PipelineConfig {
	return PipelineConfig{
		Muxer:            MuxerFMP4,
		ChannelCapacity:  20,
		SegmentTargetMs:  1000,
		PSICadenceMs:     500,
		PCRMaxIntervalMs: 100,
		Regulator: RegulatorConfig{
			Period:          500 * time.Millisecond,
			MinVideoBitrate: 500_000,
			MaxVideoBitrate: 5_000_000,
		},
	}
}

// Parse unmarshals a YAML document over Defaults() and validates it.
func Parse(data []byte) (PipelineConfig, error) {
	cfg := Defaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return PipelineConfig{}, errs.New(errs.BadParameter, "config.Parse", err)
	}
	if err := cfg.Validate(); err != nil {
		return PipelineConfig{}, err
	}
	return cfg, nil
}

// Validate checks the document is internally consistent.
func (c PipelineConfig) Validate() error {
	switch c.Muxer {
	case MuxerTS, MuxerFMP4, MuxerFLV:
	default:
		return errs.New(errs.BadParameter, "config.Validate",
			fmt.Errorf("unsupported muxer kind: %q", c.Muxer))
	}
	if len(c.Sinks) == 0 {
		return errs.New(errs.BadParameter, "config.Validate", fmt.Errorf("no sinks configured"))
	}
	for i, s := range c.Sinks {
		switch s.Kind {
		case SinkFile, SinkContent, SinkSRT, SinkRTMP:
		default:
			return errs.New(errs.BadParameter, "config.Validate",
				fmt.Errorf("sink %d: unsupported kind %q", i, s.Kind))
		}
		if s.URI == "" {
			return errs.New(errs.BadParameter, "config.Validate",
				fmt.Errorf("sink %d: empty uri", i))
		}
	}
	if c.ChannelCapacity <= 0 {
		return errs.New(errs.BadParameter, "config.Validate", fmt.Errorf("channel_capacity must be > 0"))
	}
	return nil
}
