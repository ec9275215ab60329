// Package source contains the interchangeable telemetry acquisition
// adapters. Each adapter owns its own acquisition goroutine and hands data
// to the pipeline through NextPayload; blocking I/O never runs on the
// pipeline goroutine.
package source

import (
	"context"

	"github.com/mangue-baja/telemetry-service-go/pkg/model"
)

// Payload is what an adapter delivers: either a raw packet that still needs
// decoding (serial, mqtt) or an already decoded sample (synthetic).
type Payload struct {
	Raw    []byte
	Sample *model.TelemetrySample
}

// Source is the capability set every adapter implements. Start spawns the
// acquisition goroutine (a failed serial open is reported here and the
// adapter stays stopped). NextPayload suspends the caller until data is
// available or ctx is cancelled. Stop cancels acquisition and releases the
// underlying I/O handle; it is idempotent.
type Source interface {
	Start(ctx context.Context) error
	Stop()
	NextPayload(ctx context.Context) (Payload, error)
}
