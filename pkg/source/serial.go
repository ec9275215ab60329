package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/mangue-baja/telemetry-service-go/log"
	"github.com/mangue-baja/telemetry-service-go/pkg/packet"
	"github.com/mangue-baja/telemetry-service-go/pkg/relay"
)

// relay depth for serial frames, matches the car-side sender cadence
const serialRelayDepth = 10

type SerialSource struct {
	portName   string
	baud       int
	packetSize int

	port     serial.Port
	relay    *relay.Relay[[]byte]
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
	l        *log.Logger
}

type SerialOption func(*SerialSource)

func WithSerialLogger(l *log.Logger) SerialOption {
	return func(s *SerialSource) { s.l = l }
}

func NewSerialSource(portName string, baud, packetSize int, opts ...SerialOption) *SerialSource {
	ret := &SerialSource{
		portName:   portName,
		baud:       baud,
		packetSize: packetSize,
		relay:      relay.New[[]byte](serialRelayDepth),
		done:       make(chan struct{}),
		l:          log.Default().Named("source.serial"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Start opens the port and spawns the read loop. Opening is attempted once:
// a failed open leaves the adapter stopped and is reported to the caller.
func (s *SerialSource) Start(ctx context.Context) error {
	port, err := serial.Open(s.portName, &serial.Mode{BaudRate: s.baud})
	if err != nil {
		close(s.done)
		return fmt.Errorf("open serial port %s: %w", s.portName, err)
	}
	// a read timeout turns a stalled sender into short reads instead of
	// blocking forever; short frames are discarded by the scanner
	if err := port.SetReadTimeout(time.Second); err != nil {
		port.Close()
		close(s.done)
		return fmt.Errorf("configure serial port %s: %w", s.portName, err)
	}
	s.port = port
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.l.Info("serial port opened",
		log.String("port", s.portName), log.Int("baud", s.baud))
	go s.readLoop(runCtx)
	return nil
}

func (s *SerialSource) readLoop(ctx context.Context) {
	defer close(s.done)
	scanner := newFrameScanner(s.port, packet.StartMarker, s.packetSize)
	for {
		if ctx.Err() != nil {
			return
		}
		frame, err := scanner.next()
		if err != nil {
			if ctx.Err() == nil {
				s.l.Error("serial read failed", log.ErrorField(err))
			}
			return
		}
		if frame == nil {
			continue // short frame, already discarded
		}
		s.relay.Put(frame)
	}
}

func (s *SerialSource) NextPayload(ctx context.Context) (Payload, error) {
	raw, err := s.relay.Get(ctx)
	if err != nil {
		return Payload{}, err
	}
	return Payload{Raw: raw}, nil
}

func (s *SerialSource) Stop() {
	s.stopOnce.Do(func() {
		if s.cancel == nil {
			return // open failed or never started
		}
		s.cancel()
		if s.port != nil {
			// unblocks a pending Read
			s.port.Close()
			s.l.Info("serial port closed", log.String("port", s.portName))
		}
		<-s.done
	})
}

// frameScanner finds frames in a byte stream: it slides a marker-sized
// window over the input and, on a marker match, reads exactly packetSize
// bytes. A short read is dropped without delivering anything.
type frameScanner struct {
	r          io.Reader
	marker     []byte
	packetSize int
	window     []byte
}

func newFrameScanner(r io.Reader, marker []byte, packetSize int) *frameScanner {
	return &frameScanner{
		r:          r,
		marker:     marker,
		packetSize: packetSize,
		window:     make([]byte, 0, len(marker)),
	}
}

// next returns the next complete frame, (nil, nil) when a frame had to be
// discarded, or an error when the stream is broken.
func (f *frameScanner) next() ([]byte, error) {
	one := make([]byte, 1)
	for {
		n, err := f.r.Read(one)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			continue // read timeout while scanning
		}
		if len(f.window) == len(f.marker) {
			copy(f.window, f.window[1:])
			f.window[len(f.window)-1] = one[0]
		} else {
			f.window = append(f.window, one[0])
		}
		if !bytes.Equal(f.window, f.marker) {
			continue
		}
		f.window = f.window[:0]
		frame, err := f.readFrame()
		if err != nil {
			return nil, err
		}
		if frame != nil {
			return frame, nil
		}
		// short frame: resume scanning
		return nil, nil
	}
}

// readFrame reads exactly packetSize bytes. A zero-byte read (timeout)
// before the frame is complete makes the whole frame invalid.
func (f *frameScanner) readFrame() ([]byte, error) {
	frame := make([]byte, f.packetSize)
	got := 0
	for got < f.packetSize {
		n, err := f.r.Read(frame[got:])
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, nil
		}
		got += n
	}
	return frame, nil
}
