package os1

import (
	"context"
	"embed"
	"encoding/csv"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/os1-decoder/internal/monitoring"
)

//go:embed sensor_configs/*.csv
var embeddedConfigs embed.FS

// LidarMode describes the sensor's configured horizontal resolution and
// rotation rate, e.g. 1024 columns per sweep at 10 Hz.
type LidarMode int

const (
	ModeUnknown LidarMode = iota
	Mode512x10
	Mode1024x10
	Mode2048x10
	Mode512x20
	Mode1024x20
)

var lidarModeStrings = map[LidarMode]string{
	Mode512x10:  "512x10",
	Mode1024x10: "1024x10",
	Mode2048x10: "2048x10",
	Mode512x20:  "512x20",
	Mode1024x20: "1024x20",
}

// ParseLidarMode converts a sensor-reported mode string (e.g. "1024x10")
// into a LidarMode.
func ParseLidarMode(s string) (LidarMode, error) {
	for mode, str := range lidarModeStrings {
		if str == s {
			return mode, nil
		}
	}
	return ModeUnknown, fmt.Errorf("unrecognised lidar mode %q", s)
}

// String returns the sensor-facing mode string.
func (m LidarMode) String() string {
	if s, ok := lidarModeStrings[m]; ok {
		return s
	}
	return "unknown"
}

// Columns returns the number of azimuth columns per full sweep in this mode.
func (m LidarMode) Columns() int {
	switch m {
	case Mode512x10, Mode512x20:
		return 512
	case Mode1024x10, Mode1024x20:
		return 1024
	case Mode2048x10:
		return 2048
	default:
		return 0
	}
}

// Frequency returns the rotation rate in Hz for this mode.
func (m LidarMode) Frequency() int {
	switch m {
	case Mode512x10, Mode1024x10, Mode2048x10:
		return 10
	case Mode512x20, Mode1024x20:
		return 20
	default:
		return 0
	}
}

// Transform is a rigid sensor extrinsic as a 4x4 row-major homogeneous
// matrix: m00,m01,m02,m03, m10,... The decode pipeline treats it as opaque
// metadata carried alongside the calibration.
type Transform [16]float64

// IdentityTransform returns the identity extrinsic.
func IdentityTransform() Transform {
	return Transform{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// CalibrationInfo holds the per-unit sensor calibration used by the decode
// pipeline. Angles are stored in radians; beam index 0 is the physically
// highest beam. Populated once at startup and immutable thereafter.
type CalibrationInfo struct {
	BeamAltitudeAngles []float64 // per-beam altitude angles (radians), top to bottom
	BeamAzimuthAngles  []float64 // per-beam azimuth offsets (radians)
	ImuToSensor        Transform // IMU frame → sensor frame extrinsic
	LidarToSensor      Transform // lidar frame → sensor frame extrinsic
	Mode               LidarMode // configured resolution and rotation rate
	Hostname           string    // sensor hostname, informational only
}

// Validate checks that both angle sequences carry exactly one entry per beam.
func (c *CalibrationInfo) Validate() error {
	if len(c.BeamAltitudeAngles) != PIXELS_PER_COLUMN {
		return fmt.Errorf("expected %d beam altitude angles, got %d", PIXELS_PER_COLUMN, len(c.BeamAltitudeAngles))
	}
	if len(c.BeamAzimuthAngles) != PIXELS_PER_COLUMN {
		return fmt.Errorf("expected %d beam azimuth angles, got %d", PIXELS_PER_COLUMN, len(c.BeamAzimuthAngles))
	}
	return nil
}

// SensorInfo is the raw response shape of the one-time calibration service.
// Angle sequences are in degrees as reported by the sensor; NewCalibrationInfo
// converts them to radians exactly once.
type SensorInfo struct {
	BeamAltitudeAngles []float64 // degrees, top to bottom
	BeamAzimuthAngles  []float64 // degrees
	ImuToSensor        Transform
	LidarToSensor      Transform
	LidarMode          string // e.g. "1024x10"
	Hostname           string
}

// CalibrationProvider retrieves sensor calibration at startup. Implementations
// wrap whatever transport reaches the sensor; the decode pipeline only ever
// calls it once.
type CalibrationProvider interface {
	SensorInfo(ctx context.Context) (SensorInfo, error)
}

// NewCalibrationInfo builds an immutable CalibrationInfo from a raw sensor
// response, converting angle units and validating beam counts.
func NewCalibrationInfo(si SensorInfo) (*CalibrationInfo, error) {
	mode, err := ParseLidarMode(si.LidarMode)
	if err != nil {
		return nil, err
	}
	cal := &CalibrationInfo{
		BeamAltitudeAngles: degreesToRadians(si.BeamAltitudeAngles),
		BeamAzimuthAngles:  degreesToRadians(si.BeamAzimuthAngles),
		ImuToSensor:        si.ImuToSensor,
		LidarToSensor:      si.LidarToSensor,
		Mode:               mode,
		Hostname:           si.Hostname,
	}
	if err := cal.Validate(); err != nil {
		return nil, err
	}
	return cal, nil
}

// FetchCalibration retrieves calibration from the provider, falling back to
// the built-in defaults when the provider is unavailable or returns bad data.
// Calibration failure is degraded operation, never fatal.
func FetchCalibration(ctx context.Context, provider CalibrationProvider) *CalibrationInfo {
	if provider == nil {
		monitoring.Logf("No calibration provider configured, using built-in default calibration")
		return DefaultCalibration()
	}

	si, err := provider.SensorInfo(ctx)
	if err != nil {
		monitoring.Logf("Calibration provider unavailable (%v), using built-in default calibration", err)
		return DefaultCalibration()
	}

	cal, err := NewCalibrationInfo(si)
	if err != nil {
		monitoring.Logf("Calibration provider returned invalid data (%v), using built-in default calibration", err)
		return DefaultCalibration()
	}

	monitoring.Logf("Sensor calibration loaded: hostname=%s mode=%s beams=%d",
		cal.Hostname, cal.Mode, len(cal.BeamAltitudeAngles))
	return cal
}

// DefaultCalibration returns the built-in OS1-64 calibration loaded from the
// embedded beam angle table: mode 1024x10, identity extrinsics, unknown host.
func DefaultCalibration() *CalibrationInfo {
	altitude, azimuth, err := loadEmbeddedBeamAngles()
	if err != nil {
		// The embedded table ships with the binary; failing to parse it is a
		// build defect, not a runtime condition.
		panic(fmt.Sprintf("embedded beam angle table invalid: %v", err))
	}
	return &CalibrationInfo{
		BeamAltitudeAngles: degreesToRadians(altitude),
		BeamAzimuthAngles:  degreesToRadians(azimuth),
		ImuToSensor:        IdentityTransform(),
		LidarToSensor:      IdentityTransform(),
		Mode:               Mode1024x10,
		Hostname:           "UNKNOWN",
	}
}

// loadEmbeddedBeamAngles reads the per-beam altitude/azimuth table (degrees)
// from the embedded CSV.
func loadEmbeddedBeamAngles() (altitude, azimuth []float64, err error) {
	file, err := embeddedConfigs.Open("sensor_configs/os1_64_beam_angles.csv")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open embedded beam angle file: %v", err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read embedded CSV: %v", err)
	}
	return parseBeamAngles(records)
}

// parseBeamAngles parses Channel,Altitude,Azimuth records into degree slices
// ordered by beam row (channel 1 first).
func parseBeamAngles(records [][]string) (altitude, azimuth []float64, err error) {
	if len(records) < 2 {
		return nil, nil, fmt.Errorf("insufficient data in beam angle file")
	}

	header := records[0]
	if len(header) != 3 ||
		strings.ToLower(header[0]) != "channel" ||
		strings.ToLower(header[1]) != "altitude" ||
		strings.ToLower(header[2]) != "azimuth" {
		return nil, nil, fmt.Errorf("invalid header in beam angle file, expected: Channel,Altitude,Azimuth")
	}

	altitude = make([]float64, PIXELS_PER_COLUMN)
	azimuth = make([]float64, PIXELS_PER_COLUMN)
	seen := make([]bool, PIXELS_PER_COLUMN)

	for i, record := range records[1:] {
		if len(record) != 3 {
			return nil, nil, fmt.Errorf("invalid record at line %d: expected 3 fields", i+2)
		}

		channel, err := strconv.Atoi(record[0])
		if err != nil {
			return nil, nil, fmt.Errorf("invalid channel number at line %d: %v", i+2, err)
		}
		if channel < 1 || channel > PIXELS_PER_COLUMN {
			return nil, nil, fmt.Errorf("channel number %d out of range (1-%d) at line %d", channel, PIXELS_PER_COLUMN, i+2)
		}

		alt, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid altitude at line %d: %v", i+2, err)
		}
		az, err := strconv.ParseFloat(record[2], 64)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid azimuth at line %d: %v", i+2, err)
		}

		altitude[channel-1] = alt
		azimuth[channel-1] = az
		seen[channel-1] = true
	}

	for i, ok := range seen {
		if !ok {
			return nil, nil, fmt.Errorf("missing beam angle entry for channel %d", i+1)
		}
	}
	return altitude, azimuth, nil
}

// degreesToRadians converts a sequence of angles from degrees to radians.
func degreesToRadians(degrees []float64) []float64 {
	radians := make([]float64, len(degrees))
	for i, deg := range degrees {
		radians[i] = deg * math.Pi / 180.0
	}
	return radians
}
