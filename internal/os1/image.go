package os1

import "math"

// Pixel is one cell of a RangeImage: range in metres, raw reflectivity, and
// the absolute azimuth angle of the cell in radians (column angle plus the
// beam's azimuth correction). An empty cell carries NaN in the Range channel.
type Pixel struct {
	Range        float32
	Reflectivity float32
	Azimuth      float32
}

// RangeImage is a row-major grid of decoded sweep measurements: rows are
// beams (row 0 is the physically highest beam), columns are azimuth steps.
// Built fresh for every completed sweep.
type RangeImage struct {
	Rows   int
	Cols   int
	Pixels []Pixel // row-major, len = Rows*Cols
}

// NewRangeImage allocates a rows × cols image with every cell empty (NaN).
func NewRangeImage(rows, cols int) *RangeImage {
	nan := float32(math.NaN())
	pixels := make([]Pixel, rows*cols)
	for i := range pixels {
		pixels[i] = Pixel{Range: nan, Reflectivity: nan, Azimuth: nan}
	}
	return &RangeImage{Rows: rows, Cols: cols, Pixels: pixels}
}

// At returns the cell at beam row r, azimuth column c.
func (im *RangeImage) At(r, c int) Pixel {
	return im.Pixels[r*im.Cols+c]
}

// Empty reports whether the cell at (r, c) carries no return.
func (im *RangeImage) Empty(r, c int) bool {
	return math.IsNaN(float64(im.Pixels[r*im.Cols+c].Range))
}

func (im *RangeImage) set(r, c int, px Pixel) {
	im.Pixels[r*im.Cols+c] = px
}

// BuildRangeImage lays a completed packet buffer out as a range image using
// the per-beam azimuth corrections from cal. Columns that fail the validity
// check are left empty; a packet shorter than the wire format requires is
// skipped whole. Output depends only on packet contents and calibration.
func BuildRangeImage(packets [][]byte, cal *CalibrationInfo) *RangeImage {
	cols := len(packets) * COLUMNS_PER_BUFFER
	img := NewRangeImage(PIXELS_PER_COLUMN, cols)

	for ibuf, packet := range packets {
		if len(packet) < LIDAR_PACKET_BYTES {
			debugf("[ImageBuilder] Skipping short packet %d: %d bytes", ibuf, len(packet))
			continue
		}

		for icol := 0; icol < COLUMNS_PER_BUFFER; icol++ {
			col, err := ColumnAt(icol, packet)
			if err != nil {
				debugf("[ImageBuilder] Column %d of packet %d unreadable: %v", icol, ibuf, err)
				continue
			}

			// Drop invalid columns in case of sensor dropouts or
			// misconfiguration; the column stays empty in the image.
			valid, err := ColumnValid(col)
			if err != nil || !valid {
				debugf("[ImageBuilder] Got invalid data column %d of packet %d", icol, ibuf)
				continue
			}

			theta0, err := ColumnHorizontalAngle(col)
			if err != nil {
				continue
			}
			c := ibuf*COLUMNS_PER_BUFFER + icol

			for ipx := 0; ipx < PIXELS_PER_COLUMN; ipx++ {
				px, err := PixelAt(ipx, col)
				if err != nil {
					continue
				}
				rng, err := PixelRange(px)
				if err != nil {
					continue
				}
				refl, err := PixelReflectivity(px)
				if err != nil {
					continue
				}

				img.set(ipx, c, Pixel{
					Range:        float32(rng) * RANGE_SCALE_FACTOR,
					Reflectivity: float32(refl),
					Azimuth:      float32(theta0 + cal.BeamAzimuthAngles[ipx]),
				})
			}
		}
	}

	return img
}
