package capture

import (
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/cclabsInc/RFCrack/rfcat"
)

var ErrEmptyPayload = errors.New("empty payload is not a capture")

// Capture is one recorded radio payload plus the settings it was received
// under. Immutable once created; Data is never empty (a zero-length receive
// is "no signal", not a capture).
type Capture struct {
	Data       []byte
	Frequency  uint32
	Modulation rfcat.Modulation
	Time       time.Time
}

func New(data []byte, frequency uint32, mod rfcat.Modulation) (*Capture, error) {
	if len(data) == 0 {
		return nil, ErrEmptyPayload
	}
	c := &Capture{
		Data:       make([]byte, len(data)),
		Frequency:  frequency,
		Modulation: mod,
		Time:       time.Now(),
	}
	copy(c.Data, data)
	return c, nil
}

func (c *Capture) Hex() string {
	return hex.EncodeToString(c.Data)
}

func (c *Capture) String() string {
	return fmt.Sprintf("%d Hz %s, %d bytes: %s", c.Frequency, c.Modulation, len(c.Data), c.Hex())
}
