package os1

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// OS1 lidar packet structure constants.
// These define the fixed wire format of UDP packets sent by Ouster OS1 sensors.
const (
	PIXELS_PER_COLUMN  = 64 // Number of laser beams per azimuth column (OS1-64)
	COLUMNS_PER_BUFFER = 16 // Number of azimuth columns per lidar packet

	PIXEL_BYTES         = 12                                                                 // Pixel data size: range + reflectivity + signal + noise + padding
	COLUMN_HEADER_BYTES = 16                                                                 // Column header: timestamp + measurement id + frame id + encoder count
	COLUMN_STATUS_BYTES = 4                                                                  // Column status word trailing the pixel block
	COLUMN_BYTES        = COLUMN_HEADER_BYTES + PIXELS_PER_COLUMN*PIXEL_BYTES + COLUMN_STATUS_BYTES // 788 bytes per column
	LIDAR_PACKET_BYTES  = COLUMNS_PER_BUFFER * COLUMN_BYTES                                  // 12608 bytes per lidar packet
	IMU_PACKET_BYTES    = 48                                                                 // Motion/inertial packet size (accepted, not decoded)

	// Column header field offsets (little-endian)
	COLUMN_TIMESTAMP_OFFSET      = 0  // uint64 nanoseconds
	COLUMN_MEASUREMENT_ID_OFFSET = 8  // uint16 azimuth measurement index
	COLUMN_FRAME_ID_OFFSET       = 10 // uint16 rotation frame counter
	COLUMN_ENCODER_COUNT_OFFSET  = 12 // uint32 rotary encoder ticks

	// Pixel field offsets within a 12-byte pixel buffer
	PIXEL_RANGE_OFFSET          = 0 // uint32, low 20 bits are range in millimetres
	PIXEL_REFLECTIVITY_OFFSET   = 4 // uint16 raw reflectivity
	PIXEL_SIGNAL_PHOTONS_OFFSET = 6 // uint16 signal photon count
	PIXEL_NOISE_PHOTONS_OFFSET  = 8 // uint16 ambient noise photon count

	// Physical measurement conversion constants
	ENCODER_TICKS_PER_REV = 90112   // Rotary encoder ticks per full revolution
	RANGE_MASK            = 0xFFFFF // Range field uses the low 20 bits of its word
	COLUMN_STATUS_VALID   = 0xFFFFFFFF // Status word value marking a valid column

	// RANGE_SCALE_FACTOR converts raw range units (millimetres) to metres.
	RANGE_SCALE_FACTOR = 0.001
)

// ErrMalformedPacket reports a packet or column buffer shorter than the wire
// format requires. Callers skip the offending packet; it is never fatal.
var ErrMalformedPacket = errors.New("malformed os1 packet")

// ColumnAt returns a bounds-checked view of the nth azimuth column within a
// lidar packet buffer.
func ColumnAt(n int, packet []byte) ([]byte, error) {
	if n < 0 || n >= COLUMNS_PER_BUFFER {
		return nil, fmt.Errorf("column index %d out of range [0,%d): %w", n, COLUMNS_PER_BUFFER, ErrMalformedPacket)
	}
	if len(packet) < LIDAR_PACKET_BYTES {
		return nil, fmt.Errorf("packet too short: need %d bytes, have %d: %w", LIDAR_PACKET_BYTES, len(packet), ErrMalformedPacket)
	}
	off := n * COLUMN_BYTES
	return packet[off : off+COLUMN_BYTES], nil
}

// ColumnTimestamp returns the column's nanosecond timestamp.
func ColumnTimestamp(col []byte) (uint64, error) {
	if len(col) < COLUMN_TIMESTAMP_OFFSET+8 {
		return 0, shortColumn(len(col))
	}
	return binary.LittleEndian.Uint64(col[COLUMN_TIMESTAMP_OFFSET:]), nil
}

// ColumnMeasurementID returns the azimuth measurement index of the column.
func ColumnMeasurementID(col []byte) (uint16, error) {
	if len(col) < COLUMN_MEASUREMENT_ID_OFFSET+2 {
		return 0, shortColumn(len(col))
	}
	return binary.LittleEndian.Uint16(col[COLUMN_MEASUREMENT_ID_OFFSET:]), nil
}

// ColumnFrameID returns the rotation frame counter of the column.
func ColumnFrameID(col []byte) (uint16, error) {
	if len(col) < COLUMN_FRAME_ID_OFFSET+2 {
		return 0, shortColumn(len(col))
	}
	return binary.LittleEndian.Uint16(col[COLUMN_FRAME_ID_OFFSET:]), nil
}

// ColumnEncoderCount returns the raw rotary encoder tick count of the column.
func ColumnEncoderCount(col []byte) (uint32, error) {
	if len(col) < COLUMN_ENCODER_COUNT_OFFSET+4 {
		return 0, shortColumn(len(col))
	}
	return binary.LittleEndian.Uint32(col[COLUMN_ENCODER_COUNT_OFFSET:]), nil
}

// ColumnValid reports whether the column's status word carries the all-ones
// validity marker. Invalid columns also zero their measurement id, encoder
// count, range and reflectivity fields.
func ColumnValid(col []byte) (bool, error) {
	if len(col) < COLUMN_BYTES {
		return false, shortColumn(len(col))
	}
	status := binary.LittleEndian.Uint32(col[COLUMN_BYTES-COLUMN_STATUS_BYTES:])
	return status == COLUMN_STATUS_VALID, nil
}

// ColumnHorizontalAngle returns the absolute horizontal angle of the column in
// radians, derived from the rotary encoder count.
func ColumnHorizontalAngle(col []byte) (float64, error) {
	ticks, err := ColumnEncoderCount(col)
	if err != nil {
		return 0, err
	}
	return 2 * math.Pi * float64(ticks) / ENCODER_TICKS_PER_REV, nil
}

// PixelAt returns a bounds-checked view of the nth beam's pixel within a
// column buffer.
func PixelAt(n int, col []byte) ([]byte, error) {
	if n < 0 || n >= PIXELS_PER_COLUMN {
		return nil, fmt.Errorf("pixel index %d out of range [0,%d): %w", n, PIXELS_PER_COLUMN, ErrMalformedPacket)
	}
	if len(col) < COLUMN_BYTES {
		return nil, shortColumn(len(col))
	}
	off := COLUMN_HEADER_BYTES + n*PIXEL_BYTES
	return col[off : off+PIXEL_BYTES], nil
}

// PixelRange returns the raw range measurement in millimetres. Only the low
// 20 bits of the range word carry data; the rest are flags and padding.
func PixelRange(px []byte) (uint32, error) {
	if len(px) < PIXEL_RANGE_OFFSET+4 {
		return 0, shortPixel(len(px))
	}
	return binary.LittleEndian.Uint32(px[PIXEL_RANGE_OFFSET:]) & RANGE_MASK, nil
}

// PixelReflectivity returns the raw reflectivity value of the pixel.
func PixelReflectivity(px []byte) (uint16, error) {
	if len(px) < PIXEL_REFLECTIVITY_OFFSET+2 {
		return 0, shortPixel(len(px))
	}
	return binary.LittleEndian.Uint16(px[PIXEL_REFLECTIVITY_OFFSET:]), nil
}

// PixelSignalPhotons returns the signal photon count of the pixel.
func PixelSignalPhotons(px []byte) (uint16, error) {
	if len(px) < PIXEL_SIGNAL_PHOTONS_OFFSET+2 {
		return 0, shortPixel(len(px))
	}
	return binary.LittleEndian.Uint16(px[PIXEL_SIGNAL_PHOTONS_OFFSET:]), nil
}

// PixelNoisePhotons returns the ambient noise photon count of the pixel.
func PixelNoisePhotons(px []byte) (uint16, error) {
	if len(px) < PIXEL_NOISE_PHOTONS_OFFSET+2 {
		return 0, shortPixel(len(px))
	}
	return binary.LittleEndian.Uint16(px[PIXEL_NOISE_PHOTONS_OFFSET:]), nil
}

func shortColumn(have int) error {
	return fmt.Errorf("column buffer too short: need %d bytes, have %d: %w", COLUMN_BYTES, have, ErrMalformedPacket)
}

func shortPixel(have int) error {
	return fmt.Errorf("pixel buffer too short: need %d bytes, have %d: %w", PIXEL_BYTES, have, ErrMalformedPacket)
}
