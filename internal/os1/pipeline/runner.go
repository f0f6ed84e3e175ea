// Package pipeline drives an os1.Decoder from a single goroutine. The
// decoder itself is lock-free and single-writer; the Runner turns packet
// deliveries and configuration updates into messages consumed by one loop,
// so no sweep ever mixes state from two configurations and no two entry
// points ever run concurrently.
package pipeline

import (
	"context"
	"sync/atomic"

	"github.com/banshee-data/os1-decoder/internal/monitoring"
	"github.com/banshee-data/os1-decoder/internal/os1"
)

// PacketKind tags a raw packet with its sensor stream.
type PacketKind int

const (
	// KindLidar is a ranging packet routed through the decode pipeline.
	KindLidar PacketKind = iota
	// KindImu is a motion/inertial packet; accepted but not decoded.
	KindImu
)

type packetMsg struct {
	kind PacketKind
	data []byte
	done chan struct{} // flush marker when non-nil
}

// Config contains configuration options for the Runner.
type Config struct {
	// PacketQueueDepth bounds the packet mailbox. Submissions beyond it are
	// dropped and counted rather than blocking the delivering transport.
	PacketQueueDepth int
	// ConfigQueueDepth bounds the configuration mailbox.
	ConfigQueueDepth int
}

// Runner owns an os1.Decoder exclusively and feeds it from mailbox channels.
type Runner struct {
	decoder *os1.Decoder
	packets chan packetMsg
	configs chan os1.DecoderConfig
	dropped atomic.Int64
}

// NewRunner creates a runner around the given decoder. The decoder must not
// be touched by any other goroutine once the runner starts.
func NewRunner(decoder *os1.Decoder, config Config) *Runner {
	if config.PacketQueueDepth <= 0 {
		config.PacketQueueDepth = 2048
	}
	if config.ConfigQueueDepth <= 0 {
		config.ConfigQueueDepth = 16
	}
	return &Runner{
		decoder: decoder,
		packets: make(chan packetMsg, config.PacketQueueDepth),
		configs: make(chan os1.DecoderConfig, config.ConfigQueueDepth),
	}
}

// Run consumes messages until ctx is cancelled. It is the only goroutine
// that touches the decoder.
func (r *Runner) Run(ctx context.Context) error {
	for {
		// Drain pending reconfigurations before touching more packets, so an
		// update is never applied after packets that were queued behind it.
		select {
		case config := <-r.configs:
			r.decoder.UpdateConfig(config)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			monitoring.Logf("Pipeline runner stopping: %v", ctx.Err())
			return ctx.Err()
		case config := <-r.configs:
			r.decoder.UpdateConfig(config)
		case msg := <-r.packets:
			if msg.done != nil {
				close(msg.done)
				continue
			}
			switch msg.kind {
			case KindLidar:
				r.decoder.HandleLidarPacket(msg.data)
			case KindImu:
				r.decoder.HandleImuPacket(msg.data)
			}
		}
	}
}

// SubmitLidarPacket queues a lidar packet for decoding. The packet bytes are
// copied, so the caller may reuse its buffer immediately. Returns false when
// the mailbox is full and the packet was dropped.
func (r *Runner) SubmitLidarPacket(data []byte) bool {
	return r.submit(KindLidar, data)
}

// SubmitImuPacket queues a motion packet. Returns false when dropped.
func (r *Runner) SubmitImuPacket(data []byte) bool {
	return r.submit(KindImu, data)
}

func (r *Runner) submit(kind PacketKind, data []byte) bool {
	buf := make([]byte, len(data))
	copy(buf, data)

	select {
	case r.packets <- packetMsg{kind: kind, data: buf}:
		return true
	default:
		// Mailbox full: drop rather than block the delivering transport.
		dropped := r.dropped.Add(1)
		if dropped == 1 || dropped%1000 == 0 {
			monitoring.Logf("Pipeline runner dropping packets: queue full (total dropped: %d)", dropped)
		}
		return false
	}
}

// Deliver queues a packet, blocking until there is mailbox space or ctx is
// cancelled. Replay and test drivers use this to avoid losing packets.
func (r *Runner) Deliver(ctx context.Context, kind PacketKind, data []byte) error {
	buf := make([]byte, len(data))
	copy(buf, data)

	select {
	case r.packets <- packetMsg{kind: kind, data: buf}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UpdateConfig queues a configuration update. The update is applied
// atomically with respect to the packet stream: packets queued after it see
// only the new configuration, and the sweep in progress is discarded.
func (r *Runner) UpdateConfig(ctx context.Context, config os1.DecoderConfig) error {
	select {
	case r.configs <- config:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flush blocks until every packet queued before the call has been processed,
// or ctx is cancelled. Replay drivers use this to drain the mailbox before
// reading final statistics.
func (r *Runner) Flush(ctx context.Context) error {
	done := make(chan struct{})
	select {
	case r.packets <- packetMsg{done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dropped returns the number of packets dropped due to mailbox back-pressure.
func (r *Runner) Dropped() int64 {
	return r.dropped.Load()
}
