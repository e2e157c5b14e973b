// Package scan probes frequencies for signal presence, either by sweeping a
// range incrementally or by walking a candidate list.
package scan

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cclabsInc/RFCrack/rfcat"
)

// CommonFrequencies is the built-in candidate table: garage doors, keyfobs,
// alarm sensors and the ISM bands they share.
var CommonFrequencies = []uint32{
	300000000,
	303875000,
	304250000,
	310000000,
	313850000,
	314000000,
	314350000,
	315000000,
	318000000,
	390000000,
	418000000,
	433000000,
	433420000,
	433920000,
	434775000,
	868350000,
	915000000,
}

// Probe is one signal-presence test result. Payload carries whatever bytes
// tripped the probe; it is informational only, not a stored capture.
type Probe struct {
	Frequency uint32
	Present   bool
	Payload   []byte
}

type Scanner struct {
	handle       *rfcat.Handle
	probeTimeout time.Duration
	log          *zap.Logger

	// err records the driver failure that terminated the current sequence.
	// Written only by the sequence goroutine; the channel close that ends
	// the caller's range loop orders the write before any Err() read.
	err error
}

func New(handle *rfcat.Handle, probeTimeout time.Duration, log *zap.Logger) *Scanner {
	return &Scanner{
		handle:       handle,
		probeTimeout: probeTimeout,
		log:          log,
	}
}

// Sweep probes start, start+step, ... up to and including end, strictly
// ascending, one result per probed frequency. The sequence is lazy: nothing
// is probed until the previous result is consumed. Cancelling the context
// just stops the sequence. Scan order is never reordered by hit heuristics;
// deterministic order keeps research results reproducible.
func (s *Scanner) Sweep(ctx context.Context, start, end, step uint32) <-chan Probe {
	out := make(chan Probe)
	s.err = nil
	go func() {
		defer close(out)
		if step == 0 || start > end {
			s.log.Warn("invalid sweep range",
				zap.Uint32("start", start), zap.Uint32("end", end), zap.Uint32("step", step))
			return
		}
		for freq := start; ; freq += step {
			if !s.emit(ctx, out, freq) {
				return
			}
			if step > end-freq {
				// next increment would pass end
				return
			}
		}
	}()
	return out
}

// ScanList probes the given candidate frequencies in exactly the given
// order, regardless of which of them report a hit.
func (s *Scanner) ScanList(ctx context.Context, freqs []uint32) <-chan Probe {
	out := make(chan Probe)
	s.err = nil
	go func() {
		defer close(out)
		for _, freq := range freqs {
			if !s.emit(ctx, out, freq) {
				return
			}
		}
	}()
	return out
}

func (s *Scanner) emit(ctx context.Context, out chan<- Probe, freq uint32) bool {
	if ctx.Err() != nil {
		return false
	}
	if err := s.handle.Configure(freq, s.handle.Modulation); err != nil {
		s.abort("configure", freq, err)
		return false
	}
	payload, err := s.handle.Receive(s.probeTimeout)
	if err != nil {
		s.abort("receive", freq, err)
		return false
	}
	p := Probe{Frequency: freq, Present: len(payload) > 0, Payload: payload}
	select {
	case out <- p:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Scanner) abort(op string, freq uint32, err error) {
	s.log.Error("scan aborted", zap.String("handle", s.handle.ID),
		zap.String("op", op), zap.Uint32("frequency", freq), zap.Error(err))
	s.err = fmt.Errorf("scan aborted on %s: %s at %d Hz: %w", s.handle.ID, op, freq, err)
}

// Err reports the driver failure that terminated the most recent sequence,
// nil when it ran to completion or was merely cancelled. Meaningful once the
// sequence's channel has been drained.
func (s *Scanner) Err() error {
	return s.err
}

// Hits filters a probe sequence down to frequencies with a signal present,
// the terse counterpart to the verbose every-frequency sequence.
func Hits(in <-chan Probe) <-chan Probe {
	out := make(chan Probe)
	go func() {
		defer close(out)
		for p := range in {
			if p.Present {
				out <- p
			}
		}
	}()
	return out
}
