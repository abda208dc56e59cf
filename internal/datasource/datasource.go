// Package datasource defines the narrow collaborator interface a
// Generator pulls raw sensor chunks through. Sensor decoding (video
// frames, audio wav, radar bin-zip, imu npy) is external; this package
// only describes the paged byte-stream contract a concrete decoder would
// satisfy.
package datasource

import "context"

// Chunk is one raw data unit pulled from a source, with enough metadata
// for the Generator to stamp rate-control and file-path bookkeeping onto
// the Task it builds. Content decoding is out of scope — Payload is
// opaque bytes written verbatim to FilePath.
type Chunk struct {
	FilePath string
	Payload  []byte
	RawFPS   int
	Seq      int
}

// Source pulls successive chunks from one sensor endpoint. Concrete
// implementations (HTTP polling a camera/audio/radar/IMU endpoint) live
// outside this module.
type Source interface {
	// Next blocks until the next chunk is available or ctx is done.
	Next(ctx context.Context) (Chunk, error)
	// Close releases any held connection or file handle.
	Close() error
}
