package os1

import (
	"github.com/google/uuid"

	"github.com/banshee-data/os1-decoder/internal/monitoring"
)

// Sweep is the per-rotation output handed to the sink: the intermediate
// range image, the per-row beam altitude angles it was built against, and
// the projected point cloud. Ownership transfers to the sink.
type Sweep struct {
	ID             string
	Image          *RangeImage
	AltitudeAngles []float64
	Cloud          *PointCloud
}

// Sink receives one Sweep per completed accumulation. Called synchronously
// from the packet path; slow sinks stall packet handling.
type Sink interface {
	PublishSweep(*Sweep)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(*Sweep)

// PublishSweep calls f(s).
func (f SinkFunc) PublishSweep(s *Sweep) { f(s) }

// DecoderStats is a snapshot of decoder counters.
type DecoderStats struct {
	LidarPackets     int64 // well-formed lidar packets accumulated
	ImuPackets       int64 // motion packets accepted (not decoded)
	MalformedPackets int64 // lidar packets rejected for being short
	SweepsEmitted    int64 // completed sweeps handed to the sink
}

// Decoder accumulates lidar packets into sweeps and emits a range image and
// point cloud per completed sweep. It is the single owner of the packet
// buffer and configuration.
//
// Decoder is not safe for concurrent use: the owning transport or pipeline
// runner must serialise calls to HandleLidarPacket, HandleImuPacket and
// UpdateConfig. No call blocks or suspends; work is bounded by sweep size.
type Decoder struct {
	cal    *CalibrationInfo
	config DecoderConfig
	sink   Sink
	buffer [][]byte
	stats  DecoderStats
}

// NewDecoder creates a decoder with the given calibration, initial
// configuration (normalized on apply) and sink.
func NewDecoder(cal *CalibrationInfo, config DecoderConfig, sink Sink) *Decoder {
	d := &Decoder{cal: cal, sink: sink}
	d.applyConfig(config)
	return d
}

// HandleLidarPacket accepts one raw lidar packet. Short packets are counted
// and dropped without affecting the sweep in progress. When the accumulated
// width reaches the configured image width, the sweep is built, projected
// and published synchronously within this call, then the buffer resets.
func (d *Decoder) HandleLidarPacket(packet []byte) {
	if len(packet) < LIDAR_PACKET_BYTES {
		d.stats.MalformedPackets++
		debugf("[Decoder] Dropping short lidar packet: %d bytes, need %d", len(packet), LIDAR_PACKET_BYTES)
		return
	}

	// Copy: transports reuse their read buffers, the sweep buffer is ours.
	buf := make([]byte, LIDAR_PACKET_BYTES)
	copy(buf, packet)
	d.buffer = append(d.buffer, buf)
	d.stats.LidarPackets++

	if len(d.buffer)*COLUMNS_PER_BUFFER < d.config.ImageWidth {
		return
	}

	debugf("[Decoder] Got enough packets (%d), building sweep", len(d.buffer))
	d.emitSweep()
}

// HandleImuPacket accepts one raw motion/inertial packet. IMU decoding is
// out of scope for this pipeline; packets are counted and discarded.
func (d *Decoder) HandleImuPacket(packet []byte) {
	d.stats.ImuPackets++
}

// UpdateConfig replaces the decoder configuration after normalizing it. The
// sweep in progress is discarded so no sweep ever mixes geometry assumptions
// from two configurations.
func (d *Decoder) UpdateConfig(config DecoderConfig) {
	d.applyConfig(config)
}

// Config returns the active (normalized) configuration.
func (d *Decoder) Config() DecoderConfig {
	return d.config
}

// Stats returns a snapshot of the decoder counters.
func (d *Decoder) Stats() DecoderStats {
	return d.stats
}

// BufferedPackets returns the number of packets accumulated toward the
// current sweep.
func (d *Decoder) BufferedPackets() int {
	return len(d.buffer)
}

func (d *Decoder) applyConfig(config DecoderConfig) {
	config = config.Normalized()
	monitoring.Logf("Reconfigure request: %s", config)

	d.config = config
	d.buffer = d.buffer[:0]
	if cap(d.buffer) == 0 && config.ImageWidth > 0 {
		d.buffer = make([][]byte, 0, config.ImageWidth/COLUMNS_PER_BUFFER)
	}
}

func (d *Decoder) emitSweep() {
	img := BuildRangeImage(d.buffer, d.cal)
	cloud := ProjectCloud(img, d.cal.BeamAltitudeAngles, d.config.Organized)

	sweep := &Sweep{
		ID:             uuid.NewString(),
		Image:          img,
		AltitudeAngles: d.cal.BeamAltitudeAngles,
		Cloud:          cloud,
	}
	d.stats.SweepsEmitted++

	if d.sink != nil {
		d.sink.PublishSweep(sweep)
	}
	d.buffer = d.buffer[:0]
}
