package rfcat

import (
	"errors"
	"fmt"
	"time"
)

// Modulation selects the RF modulation scheme programmed into the dongle.
type Modulation byte

const (
	ModASKOOK Modulation = iota
	Mod2FSK
)

func (m Modulation) String() string {
	switch m {
	case ModASKOOK:
		return "MOD_ASK_OOK"
	case Mod2FSK:
		return "MOD_2FSK"
	default:
		return fmt.Sprintf("UNDEFINED MODULATION %02x", byte(m))
	}
}

func ParseModulation(s string) (Modulation, error) {
	switch s {
	case "MOD_ASK_OOK":
		return ModASKOOK, nil
	case "MOD_2FSK":
		return Mod2FSK, nil
	default:
		return 0, fmt.Errorf("unknown modulation %q (want MOD_ASK_OOK or MOD_2FSK)", s)
	}
}

// State of a radio handle. Transitions are driven by the single component
// that owns the handle, never by two components at once.
type State byte

const (
	StateIdle State = iota
	StateListening
	StateTransmitting
	StateJamming
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateListening:
		return "LISTENING"
	case StateTransmitting:
		return "TRANSMITTING"
	case StateJamming:
		return "JAMMING"
	default:
		return fmt.Sprintf("UNDEFINED STATE %02x", byte(s))
	}
}

var ErrBusy = errors.New("radio handle busy")

// Radio is the driver boundary. Implementations are synchronous: at most one
// in-flight operation per device, no internal queuing. A Receive that sees
// nothing within its timeout returns an empty payload and no error.
type Radio interface {
	Configure(frequency uint32, mod Modulation) error
	Transmit(data []byte) error
	StartContinuousTransmit() error
	StopContinuousTransmit() error
	Receive(timeout time.Duration) ([]byte, error)
	RSSI() (int, error)
	Close() error
}

// Handle owns one physical transceiver's current settings. Frequency and
// modulation live here explicitly and travel through every operation, they
// are never read back from the hardware as ambient state.
type Handle struct {
	ID         string
	Frequency  uint32
	Modulation Modulation

	state State
	radio Radio
}

func NewHandle(id string, r Radio) *Handle {
	return &Handle{ID: id, radio: r}
}

func (h *Handle) State() State {
	return h.state
}

func (h *Handle) Configure(frequency uint32, mod Modulation) error {
	if h.state != StateIdle {
		return fmt.Errorf("%s: configure while %s: %w", h.ID, h.state, ErrBusy)
	}
	if err := h.radio.Configure(frequency, mod); err != nil {
		return err
	}
	h.Frequency = frequency
	h.Modulation = mod
	return nil
}

func (h *Handle) Transmit(data []byte) error {
	if h.state != StateIdle {
		return fmt.Errorf("%s: transmit while %s: %w", h.ID, h.state, ErrBusy)
	}
	h.state = StateTransmitting
	defer func() { h.state = StateIdle }()
	return h.radio.Transmit(data)
}

// Receive listens for up to timeout on the handle's current frequency and
// modulation. An empty payload means no signal, not an error.
func (h *Handle) Receive(timeout time.Duration) ([]byte, error) {
	if h.state != StateIdle {
		return nil, fmt.Errorf("%s: receive while %s: %w", h.ID, h.state, ErrBusy)
	}
	h.state = StateListening
	defer func() { h.state = StateIdle }()
	return h.radio.Receive(timeout)
}

// StartJam begins continuous carrier transmission. The handle stays in
// JAMMING state until StopJam.
func (h *Handle) StartJam() error {
	if h.state != StateIdle {
		return fmt.Errorf("%s: jam while %s: %w", h.ID, h.state, ErrBusy)
	}
	if err := h.radio.StartContinuousTransmit(); err != nil {
		return err
	}
	h.state = StateJamming
	return nil
}

// StopJam halts continuous transmission. The handle always returns to IDLE,
// even when the strobe fails; the error still surfaces so the failure is
// never silent. Calling StopJam on a handle that is not jamming is a no-op.
func (h *Handle) StopJam() error {
	if h.state != StateJamming {
		return nil
	}
	err := h.radio.StopContinuousTransmit()
	h.state = StateIdle
	return err
}

func (h *Handle) RSSI() (int, error) {
	return h.radio.RSSI()
}

func (h *Handle) Close() error {
	return h.radio.Close()
}
