package os1

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

// testColumn describes one synthetic azimuth column for fixture packets.
// Every pixel in the column carries the same range/reflectivity values.
type testColumn struct {
	timestamp     uint64
	measurementID uint16
	frameID       uint16
	encoderTicks  uint32
	valid         bool
	rangeMM       uint32
	reflectivity  uint16
	signal        uint16
	noise         uint16
}

// buildColumn encodes a testColumn at the documented wire offsets.
func buildColumn(tc testColumn) []byte {
	col := make([]byte, COLUMN_BYTES)
	binary.LittleEndian.PutUint64(col[COLUMN_TIMESTAMP_OFFSET:], tc.timestamp)
	binary.LittleEndian.PutUint16(col[COLUMN_MEASUREMENT_ID_OFFSET:], tc.measurementID)
	binary.LittleEndian.PutUint16(col[COLUMN_FRAME_ID_OFFSET:], tc.frameID)
	binary.LittleEndian.PutUint32(col[COLUMN_ENCODER_COUNT_OFFSET:], tc.encoderTicks)

	for i := 0; i < PIXELS_PER_COLUMN; i++ {
		off := COLUMN_HEADER_BYTES + i*PIXEL_BYTES
		binary.LittleEndian.PutUint32(col[off+PIXEL_RANGE_OFFSET:], tc.rangeMM)
		binary.LittleEndian.PutUint16(col[off+PIXEL_REFLECTIVITY_OFFSET:], tc.reflectivity)
		binary.LittleEndian.PutUint16(col[off+PIXEL_SIGNAL_PHOTONS_OFFSET:], tc.signal)
		binary.LittleEndian.PutUint16(col[off+PIXEL_NOISE_PHOTONS_OFFSET:], tc.noise)
	}

	if tc.valid {
		binary.LittleEndian.PutUint32(col[COLUMN_BYTES-COLUMN_STATUS_BYTES:], COLUMN_STATUS_VALID)
	}
	return col
}

// buildPacket concatenates 16 columns into a full lidar packet.
func buildPacket(cols [COLUMNS_PER_BUFFER]testColumn) []byte {
	packet := make([]byte, 0, LIDAR_PACKET_BYTES)
	for _, tc := range cols {
		packet = append(packet, buildColumn(tc)...)
	}
	return packet
}

// uniformPacket builds a packet whose 16 columns are all valid and share the
// same per-pixel values, with consecutive measurement ids starting at firstID.
func uniformPacket(firstID uint16, ticks uint32, rangeMM uint32, reflectivity uint16) []byte {
	var cols [COLUMNS_PER_BUFFER]testColumn
	for i := range cols {
		cols[i] = testColumn{
			measurementID: firstID + uint16(i),
			frameID:       1,
			encoderTicks:  ticks,
			valid:         true,
			rangeMM:       rangeMM,
			reflectivity:  reflectivity,
		}
	}
	return buildPacket(cols)
}

func TestColumnFieldRoundTrip(t *testing.T) {
	tc := testColumn{
		timestamp:     0x0102030405060708,
		measurementID: 513,
		frameID:       77,
		encoderTicks:  45056, // half a revolution
		valid:         true,
		rangeMM:       12345,
		reflectivity:  200,
		signal:        321,
		noise:         11,
	}
	packet := buildPacket([COLUMNS_PER_BUFFER]testColumn{3: tc})

	col, err := ColumnAt(3, packet)
	if err != nil {
		t.Fatalf("ColumnAt failed: %v", err)
	}

	if ts, _ := ColumnTimestamp(col); ts != tc.timestamp {
		t.Errorf("Expected timestamp %d, got %d", tc.timestamp, ts)
	}
	if id, _ := ColumnMeasurementID(col); id != tc.measurementID {
		t.Errorf("Expected measurement id %d, got %d", tc.measurementID, id)
	}
	if id, _ := ColumnFrameID(col); id != tc.frameID {
		t.Errorf("Expected frame id %d, got %d", tc.frameID, id)
	}
	if ticks, _ := ColumnEncoderCount(col); ticks != tc.encoderTicks {
		t.Errorf("Expected encoder count %d, got %d", tc.encoderTicks, ticks)
	}
	if valid, _ := ColumnValid(col); !valid {
		t.Error("Expected column to be valid")
	}

	// 45056 ticks is exactly half of 90112, so the angle is pi.
	angle, err := ColumnHorizontalAngle(col)
	if err != nil {
		t.Fatalf("ColumnHorizontalAngle failed: %v", err)
	}
	if math.Abs(angle-math.Pi) > 1e-12 {
		t.Errorf("Expected horizontal angle pi, got %v", angle)
	}

	// Column 0 was left zeroed, so it must read as invalid.
	col0, err := ColumnAt(0, packet)
	if err != nil {
		t.Fatalf("ColumnAt(0) failed: %v", err)
	}
	if valid, _ := ColumnValid(col0); valid {
		t.Error("Expected zeroed column to be invalid")
	}
}

func TestPixelFieldRoundTrip(t *testing.T) {
	tc := testColumn{
		valid:        true,
		rangeMM:      0x000FFFFF, // max representable range
		reflectivity: 65535,
		signal:       42,
		noise:        7,
	}
	col := buildColumn(tc)

	for _, beam := range []int{0, 31, PIXELS_PER_COLUMN - 1} {
		px, err := PixelAt(beam, col)
		if err != nil {
			t.Fatalf("PixelAt(%d) failed: %v", beam, err)
		}
		if r, _ := PixelRange(px); r != tc.rangeMM {
			t.Errorf("Beam %d: expected range %d, got %d", beam, tc.rangeMM, r)
		}
		if refl, _ := PixelReflectivity(px); refl != tc.reflectivity {
			t.Errorf("Beam %d: expected reflectivity %d, got %d", beam, tc.reflectivity, refl)
		}
		if s, _ := PixelSignalPhotons(px); s != tc.signal {
			t.Errorf("Beam %d: expected signal photons %d, got %d", beam, tc.signal, s)
		}
		if n, _ := PixelNoisePhotons(px); n != tc.noise {
			t.Errorf("Beam %d: expected noise photons %d, got %d", beam, tc.noise, n)
		}
	}
}

func TestPixelRangeMasksHighBits(t *testing.T) {
	col := buildColumn(testColumn{valid: true})
	// Write a range word with flag bits above bit 19 set.
	off := COLUMN_HEADER_BYTES + PIXEL_RANGE_OFFSET
	binary.LittleEndian.PutUint32(col[off:], 0xFFF00000|12345)

	px, err := PixelAt(0, col)
	if err != nil {
		t.Fatalf("PixelAt failed: %v", err)
	}
	r, err := PixelRange(px)
	if err != nil {
		t.Fatalf("PixelRange failed: %v", err)
	}
	if r != 12345 {
		t.Errorf("Expected masked range 12345, got %d", r)
	}
}

func TestColumnHorizontalAngleZeroTicks(t *testing.T) {
	col := buildColumn(testColumn{valid: true})
	angle, err := ColumnHorizontalAngle(col)
	if err != nil {
		t.Fatalf("ColumnHorizontalAngle failed: %v", err)
	}
	if angle != 0 {
		t.Errorf("Expected angle 0 for zero ticks, got %v", angle)
	}
}

func TestShortBuffersAreMalformed(t *testing.T) {
	short := make([]byte, LIDAR_PACKET_BYTES-1)
	if _, err := ColumnAt(0, short); !errors.Is(err, ErrMalformedPacket) {
		t.Errorf("Expected ErrMalformedPacket for short packet, got %v", err)
	}

	shortCol := make([]byte, COLUMN_BYTES-1)
	if _, err := ColumnValid(shortCol); !errors.Is(err, ErrMalformedPacket) {
		t.Errorf("Expected ErrMalformedPacket for short column, got %v", err)
	}
	if _, err := PixelAt(0, shortCol); !errors.Is(err, ErrMalformedPacket) {
		t.Errorf("Expected ErrMalformedPacket for short column pixel access, got %v", err)
	}

	tiny := make([]byte, 4)
	if _, err := ColumnMeasurementID(tiny); !errors.Is(err, ErrMalformedPacket) {
		t.Errorf("Expected ErrMalformedPacket for tiny column buffer, got %v", err)
	}
	if _, err := PixelReflectivity(tiny[:2]); !errors.Is(err, ErrMalformedPacket) {
		t.Errorf("Expected ErrMalformedPacket for tiny pixel buffer, got %v", err)
	}
}

func TestIndexBounds(t *testing.T) {
	packet := uniformPacket(0, 0, 1000, 1)
	if _, err := ColumnAt(COLUMNS_PER_BUFFER, packet); !errors.Is(err, ErrMalformedPacket) {
		t.Errorf("Expected error for column index out of range, got %v", err)
	}
	if _, err := ColumnAt(-1, packet); !errors.Is(err, ErrMalformedPacket) {
		t.Errorf("Expected error for negative column index, got %v", err)
	}

	col, _ := ColumnAt(0, packet)
	if _, err := PixelAt(PIXELS_PER_COLUMN, col); !errors.Is(err, ErrMalformedPacket) {
		t.Errorf("Expected error for pixel index out of range, got %v", err)
	}
}

func TestColumnAtOffsets(t *testing.T) {
	packet := make([]byte, LIDAR_PACKET_BYTES)
	for n := 0; n < COLUMNS_PER_BUFFER; n++ {
		packet[n*COLUMN_BYTES] = byte(n + 1) // marker at each column start
	}
	for n := 0; n < COLUMNS_PER_BUFFER; n++ {
		col, err := ColumnAt(n, packet)
		if err != nil {
			t.Fatalf("ColumnAt(%d) failed: %v", n, err)
		}
		if len(col) != COLUMN_BYTES {
			t.Errorf("Column %d: expected %d bytes, got %d", n, COLUMN_BYTES, len(col))
		}
		if col[0] != byte(n+1) {
			t.Errorf("Column %d: view does not start at documented offset", n)
		}
	}
}
