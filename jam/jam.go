// Package jam drives one radio handle as a continuous-carrier jammer.
package jam

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/cclabsInc/RFCrack/rfcat"
)

// Jammer owns its handle for the lifetime of the attack. Start is
// non-blocking: the carrier runs on the dongle itself, and a watchdog
// goroutine guarantees the carrier is dropped when the session context is
// cancelled, so the spectrum is never left jammed by an aborted attack.
type Jammer struct {
	handle *rfcat.Handle

	// Variance offsets the jam carrier from the sniffed frequency so a
	// second dongle can still hear the remote through its channel filter
	// while the receiver is blinded.
	Variance uint32

	log *zap.Logger

	mu      sync.Mutex
	stopped chan struct{} // non-nil while jamming
}

func New(handle *rfcat.Handle, variance uint32, log *zap.Logger) *Jammer {
	return &Jammer{
		handle:   handle,
		Variance: variance,
		log:      log,
	}
}

// Start reconfigures the handle to frequency+variance and begins continuous
// transmission. Control returns to the caller immediately. Starting an
// already-jamming jammer is an error in sequencing, not a retune.
func (j *Jammer) Start(ctx context.Context, frequency uint32) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.stopped != nil {
		return rfcat.ErrBusy
	}

	target := frequency + j.Variance
	if err := j.handle.Configure(target, rfcat.ModASKOOK); err != nil {
		return err
	}
	if err := j.handle.StartJam(); err != nil {
		return err
	}

	stopped := make(chan struct{})
	j.stopped = stopped
	go func() {
		select {
		case <-ctx.Done():
			if err := j.Stop(); err != nil {
				j.log.Error("stopping jammer on cancel", zap.String("handle", j.handle.ID), zap.Error(err))
			}
		case <-stopped:
		}
	}()

	j.log.Info("jamming started",
		zap.String("handle", j.handle.ID),
		zap.Uint32("frequency", target))
	return nil
}

// Stop halts transmission and returns the handle to IDLE. Safe to call more
// than once; only the first call touches the hardware.
func (j *Jammer) Stop() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.stopped == nil {
		return nil
	}
	close(j.stopped)
	j.stopped = nil

	err := j.handle.StopJam()
	j.log.Info("jamming stopped", zap.String("handle", j.handle.ID))
	return err
}

func (j *Jammer) Active() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.stopped != nil
}
