// Package rfcattest provides a scripted in-memory Radio for exercising the
// attack engines without hardware.
package rfcattest

import (
	"sync"
	"time"

	"github.com/cclabsInc/RFCrack/rfcat"
)

// Event is one recorded primitive call, timestamped relative to the fake's
// creation so tests can assert on sequencing envelopes.
type Event struct {
	Op   string // "configure", "transmit", "start-jam", "stop-jam", "receive"
	At   time.Duration
	Data []byte
	Freq uint32
}

// ScriptedReceive makes Receive yield Data once the fake is At old. Earlier
// receives block (up to their timeout) like a real dongle with a quiet band.
type ScriptedReceive struct {
	At   time.Duration
	Data []byte
}

type FakeRadio struct {
	mu       sync.Mutex
	start    time.Time
	events   []Event
	receives []ScriptedReceive
	jamming  bool

	// Rssi is reported by RSSI(); errors, when set, fail the matching op.
	Rssi         int
	ConfigureErr error
	TransmitErr  error
	ReceiveErr   error
	StartJamErr  error
	StopJamErr   error
}

var _ rfcat.Radio = (*FakeRadio)(nil)

func New(receives ...ScriptedReceive) *FakeRadio {
	return &FakeRadio{
		start:    time.Now(),
		receives: receives,
		Rssi:     -60,
	}
}

func (f *FakeRadio) record(op string, data []byte, freq uint32) {
	f.events = append(f.events, Event{Op: op, At: time.Since(f.start), Data: data, Freq: freq})
}

func (f *FakeRadio) Configure(frequency uint32, mod rfcat.Modulation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ConfigureErr != nil {
		return f.ConfigureErr
	}
	f.record("configure", nil, frequency)
	return nil
}

func (f *FakeRadio) Transmit(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.TransmitErr != nil {
		return f.TransmitErr
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	f.record("transmit", cp, 0)
	return nil
}

func (f *FakeRadio) StartContinuousTransmit() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.StartJamErr != nil {
		return f.StartJamErr
	}
	f.jamming = true
	f.record("start-jam", nil, 0)
	return nil
}

func (f *FakeRadio) StopContinuousTransmit() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.StopJamErr != nil {
		return f.StopJamErr
	}
	f.jamming = false
	f.record("stop-jam", nil, 0)
	return nil
}

func (f *FakeRadio) Receive(timeout time.Duration) ([]byte, error) {
	f.mu.Lock()
	if f.ReceiveErr != nil {
		err := f.ReceiveErr
		f.mu.Unlock()
		return nil, err
	}
	var next *ScriptedReceive
	if len(f.receives) > 0 {
		next = &f.receives[0]
	}
	f.mu.Unlock()

	if next == nil {
		time.Sleep(timeout)
		return []byte{}, nil
	}

	wait := time.Until(f.start.Add(next.At))
	if wait > timeout {
		time.Sleep(timeout)
		return []byte{}, nil
	}
	if wait > 0 {
		time.Sleep(wait)
	}

	f.mu.Lock()
	f.receives = f.receives[1:]
	f.record("receive", next.Data, 0)
	f.mu.Unlock()
	return next.Data, nil
}

func (f *FakeRadio) RSSI() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Rssi, nil
}

func (f *FakeRadio) Close() error {
	return nil
}

// Jamming reports whether a continuous transmit is active right now.
func (f *FakeRadio) Jamming() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.jamming
}

// Events returns a snapshot of every recorded primitive call.
func (f *FakeRadio) Events() []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Event, len(f.events))
	copy(out, f.events)
	return out
}

// EventsOf filters the recorded calls down to one op.
func (f *FakeRadio) EventsOf(op string) []Event {
	var out []Event
	for _, e := range f.Events() {
		if e.Op == op {
			out = append(out, e)
		}
	}
	return out
}
