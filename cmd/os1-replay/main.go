// os1-replay feeds a raw OS1 packet dump through the decode pipeline and
// logs per-sweep statistics. The dump is a flat concatenation of 12608-byte
// lidar packets, already framed (for example recorded straight off the
// sensor's data stream by an external capture tool).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/os1-decoder/internal/os1"
	"github.com/banshee-data/os1-decoder/internal/os1/pipeline"
)

var (
	dumpFile   = flag.String("dump", "", "Path to raw OS1 lidar packet dump (required)")
	configFile = flag.String("config", "", "Optional YAML decoder config file")
	imageWidth = flag.Int("image-width", 0, "Override sweep width in columns (multiple of 16)")
	organized  = flag.Bool("organized", false, "Emit organized (grid-aligned) point clouds")
	mode       = flag.String("mode", "", "Override lidar mode (e.g. 1024x10)")
	debugLog   = flag.Bool("debug", false, "Enable verbose per-column decode diagnostics")
)

// sweepLogger counts published sweeps and logs their geometry.
type sweepLogger struct {
	sweeps int
	points int
}

func (s *sweepLogger) PublishSweep(sweep *os1.Sweep) {
	s.sweeps++
	valid := 0
	for _, p := range sweep.Cloud.Points {
		if !math.IsNaN(float64(p.X)) {
			valid++
		}
	}
	s.points += valid
	log.Printf("Sweep %s: image %dx%d, cloud %dx%d, %d valid points",
		sweep.ID, sweep.Image.Rows, sweep.Image.Cols, sweep.Cloud.Height, sweep.Cloud.Width, valid)
}

func main() {
	flag.Parse()
	if err := run(); err != nil {
		log.Fatalf("os1-replay: %v", err)
	}
}

func run() error {
	if *dumpFile == "" {
		return fmt.Errorf("missing required -dump flag")
	}

	if *debugLog {
		os1.SetDebugLogger(os.Stderr)
	}

	config, err := loadConfig()
	if err != nil {
		return err
	}

	cal := os1.DefaultCalibration()
	if *mode != "" {
		m, err := os1.ParseLidarMode(*mode)
		if err != nil {
			return err
		}
		cal.Mode = m
	}
	log.Printf("Calibration: hostname=%s mode=%s beams=%d", cal.Hostname, cal.Mode, len(cal.BeamAltitudeAngles))

	sink := &sweepLogger{}
	decoder := os1.NewDecoder(cal, config, sink)
	runner := pipeline.NewRunner(decoder, pipeline.Config{})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runnerDone := make(chan error, 1)
	go func() {
		runnerDone <- runner.Run(ctx)
	}()

	start := time.Now()
	packets, err := replayDump(ctx, *dumpFile, runner)
	if err != nil {
		return err
	}

	// Drain the mailbox so the final stats cover every delivered packet.
	if err := runner.Flush(ctx); err != nil {
		return err
	}
	stop()
	<-runnerDone

	stats := decoder.Stats()
	log.Printf("Replayed %d packets in %v: %d sweeps, %d valid points, %d malformed, %d buffered at EOF",
		packets, time.Since(start).Round(time.Millisecond),
		sink.sweeps, sink.points, stats.MalformedPackets, decoder.BufferedPackets())
	return nil
}

// loadConfig builds the decoder config from the optional YAML file, then
// applies explicit flag overrides on top.
func loadConfig() (os1.DecoderConfig, error) {
	config := os1.DefaultDecoderConfig()
	if *configFile != "" {
		loaded, err := os1.LoadDecoderConfig(*configFile)
		if err != nil {
			return config, err
		}
		config = loaded
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "image-width":
			config.ImageWidth = *imageWidth
		case "organized":
			config.Organized = *organized
		}
	})
	return config, nil
}

// replayDump streams fixed-size lidar packets from the dump file into the
// pipeline, blocking on back-pressure so nothing is dropped.
func replayDump(ctx context.Context, path string, runner *pipeline.Runner) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open dump: %w", err)
	}
	defer f.Close()

	buf := make([]byte, os1.LIDAR_PACKET_BYTES)
	packets := 0
	for {
		_, err := io.ReadFull(f, buf)
		if errors.Is(err, io.EOF) {
			return packets, nil
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			log.Printf("Dump ends with a truncated packet after %d packets, ignoring trailer", packets)
			return packets, nil
		}
		if err != nil {
			return packets, fmt.Errorf("failed to read dump: %w", err)
		}

		if err := runner.Deliver(ctx, pipeline.KindLidar, buf); err != nil {
			return packets, err
		}
		packets++
	}
}
