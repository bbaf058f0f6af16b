// Command streampackd is a small demo composition root: it reads a raw
// Annex-B H.264 elementary stream from a file, paces it out as access units
// at a fixed frame rate, and drives a Pipeline built from a YAML config the
// same way nvr.Run builds an app from env.yaml — read the document, build
// the long-lived object, run it under a cancelable context, and shut down
// cleanly on SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/thibaultbee/streampack-go/internal/bitstream"
	"github.com/thibaultbee/streampack-go/internal/log"
	"github.com/thibaultbee/streampack-go/pkg/streampack"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "streampackd:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to a pipeline YAML config (defaults built in if empty)")
	inputPath := flag.String("input", "", "path to a raw Annex-B H.264 elementary stream")
	fps := flag.Float64("fps", 25, "frame rate to pace input at")
	flag.Parse()

	cfg := streampack.DefaultConfig()
	if *configPath != "" {
		data, err := os.ReadFile(*configPath)
		if err != nil {
			return fmt.Errorf("read config: %w", err)
		}
		cfg, err = streampack.ParseConfig(data)
		if err != nil {
			return fmt.Errorf("parse config: %w", err)
		}
	} else {
		cfg.Sinks = []streampack.SinkDescriptor{{Kind: streampack.SinkFile, URI: "streampackd-out.ts"}}
		cfg.Muxer = streampack.MuxerTS
	}

	var wg sync.WaitGroup
	logger := log.NewLogger(&wg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	logger.Start(ctx)
	go logger.LogToStdout(ctx)

	p, err := streampack.New(cfg, logger, nil, nil)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	id, err := p.AddStream(streampack.MimeH264, streampack.VideoConfig{Mime: streampack.MimeH264, FPS: *fps}, streampack.AudioConfig{})
	if err != nil {
		return fmt.Errorf("add stream: %w", err)
	}
	if err := p.StartStream(); err != nil {
		return fmt.Errorf("start stream: %w", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	fatal := make(chan error, 1)
	if *inputPath != "" {
		go func() { fatal <- feedInput(ctx, p, id, *inputPath, *fps) }()
	}

	select {
	case err = <-fatal:
	case <-stop:
		fmt.Println("streampackd: received signal, stopping")
	}

	if stopErr := p.StopStream(); stopErr != nil && err == nil {
		err = stopErr
	}
	if relErr := p.Release(); relErr != nil && err == nil {
		err = relErr
	}
	return err
}

// feedInput reads a raw Annex-B elementary stream, groups NAL units into
// access units at each slice NAL (type 1 or 5), and writes one Frame per
// access unit at the configured frame rate until ctx is canceled or the
// input is exhausted.
func feedInput(ctx context.Context, p *streampack.Pipeline, streamID int, path string, fps float64) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	nalus := bitstream.SplitAnnexB(data)

	period := time.Second
	if fps > 0 {
		period = time.Duration(float64(time.Second) / fps)
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	var pending [][]byte
	var ptsUs int64
	for _, n := range nalus {
		pending = append(pending, n)
		if !isSliceNALU(n) {
			continue
		}
		frame := streampack.NewFrame(streamID, streampack.MimeH264, bitstream.EncodeAnnexB(pending), ptsUs)
		frame.IsKey = isIDRSliceNALU(n)
		pending = nil

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if err := p.Write(frame); err != nil {
			return fmt.Errorf("write frame: %w", err)
		}
		ptsUs += period.Microseconds()
	}
	return nil
}

func isSliceNALU(n []byte) bool {
	if len(n) == 0 {
		return false
	}
	switch n[0] & 0x1F {
	case 1, 5:
		return true
	}
	return false
}

func isIDRSliceNALU(n []byte) bool {
	return len(n) > 0 && n[0]&0x1F == 5
}
