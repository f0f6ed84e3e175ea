// Package os1 decodes raw Ouster OS1 lidar packets into calibrated range
// images and 3D point clouds.
//
// PACKET STRUCTURE (12608 bytes total):
// ├── Azimuth columns (16 × 788 bytes) - one column per azimuth sampling instant
// │   └── Each column: 8-byte timestamp + 2-byte measurement id + 2-byte frame id
// │       + 4-byte encoder count + 64 pixels × 12 bytes + 4-byte status word
// └── Pixel (12 bytes): 4-byte range (20 bits used) + 2-byte reflectivity
//     + 2-byte signal photons + 2-byte noise photons + 2 unused bytes
//
// All multi-byte fields are little-endian. A column is valid only when its
// status word equals 0xFFFFFFFF; invalid columns carry zeroed measurements
// and are dropped during image building rather than reported as errors.
//
// DECODE PIPELINE:
//  1. Packet validation (size check; short packets are skipped, never fatal)
//  2. Sweep accumulation until the configured image width is reached
//  3. Range image layout (rows = beams, cols = azimuth steps, 3 channels)
//  4. Spherical → Cartesian projection using per-beam calibration angles
//
// The Decoder type owns the accumulation state machine. The field accessors
// (ColumnAt, PixelRange, ...) are pure functions over byte slices and are
// safe to call concurrently on distinct buffers.
package os1
