package os1

import "math"

// Point is one projected lidar return in the sensor frame. In organized
// clouds a placeholder point carries NaN in every field.
type Point struct {
	X         float32
	Y         float32
	Z         float32
	Intensity float32
}

// PointCloud is the projected output of one sweep. Organized clouds keep the
// row/column shape of the source image (Height = image rows, Width = image
// columns, row-major order including placeholders); unorganized clouds are a
// flat list of valid points with Height = 1.
type PointCloud struct {
	Width  int
	Height int
	Points []Point
}

// Organized reports whether the cloud preserves the source image grid.
func (pc *PointCloud) Organized() bool {
	return pc.Height > 1
}

// ProjectCloud converts a range image into a point cloud using the per-row
// beam altitude angles (radians, index-aligned to image rows).
//
// For a cell with range d, altitude phi and azimuth theta:
//
//	x = d * cos(phi) * cos(theta)
//	y = -(d * cos(phi) * sin(theta))
//	z = d * sin(phi)
//
// The y sign flip matches the sensor's right-handed output convention.
// Configured min/max range bounds are not applied here; every valid return
// is emitted.
func ProjectCloud(img *RangeImage, altitudeAngles []float64, organized bool) *PointCloud {
	nan := float32(math.NaN())
	points := make([]Point, 0, img.Rows*img.Cols)

	for r := 0; r < img.Rows; r++ {
		// Row 0 is the highest beam; altitude angles are index-aligned.
		phi := altitudeAngles[r]
		cosPhi := math.Cos(phi)
		sinPhi := math.Sin(phi)

		for c := 0; c < img.Cols; c++ {
			px := img.At(r, c)

			if math.IsNaN(float64(px.Range)) {
				if organized {
					points = append(points, Point{X: nan, Y: nan, Z: nan, Intensity: nan})
				}
				continue
			}

			d := float64(px.Range)
			theta := float64(px.Azimuth)
			points = append(points, Point{
				X:         float32(d * cosPhi * math.Cos(theta)),
				Y:         float32(-(d * cosPhi * math.Sin(theta))),
				Z:         float32(d * sinPhi),
				Intensity: px.Reflectivity,
			})
		}
	}

	cloud := &PointCloud{Points: points}
	if organized {
		cloud.Width = img.Cols
		cloud.Height = img.Rows
	} else {
		cloud.Width = len(points)
		cloud.Height = 1
	}
	return cloud
}
