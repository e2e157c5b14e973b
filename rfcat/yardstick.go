package rfcat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/gousb"
)

const USB_DEFAULT_TIMEOUT = time.Millisecond * 2500

// YardStick One (TI CC1111 running the RfCat firmware).
const (
	VENDOR_YARDSTICK  = 0x1d50
	PRODUCT_YARDSTICK = 0x605b
)

// RfCat application / command bytes understood by the firmware.
const (
	APP_SYSTEM byte = 0xff
	APP_NIC    byte = 0x42

	SYS_CMD_PING   byte = 0x82
	SYS_CMD_RFMODE byte = 0x85

	NIC_RECV        byte = 0x01
	NIC_XMIT        byte = 0x02
	NIC_SET_FREQ    byte = 0x05
	NIC_SET_MOD     byte = 0x07
	NIC_GET_RSSI    byte = 0x08
	NIC_SET_BAUD    byte = 0x09
	NIC_SET_CHANBW  byte = 0x0a
	NIC_SET_CHANSPC byte = 0x0b

	RFST_SRX   byte = 0xd3
	RFST_STX   byte = 0xd5
	RFST_SIDLE byte = 0xd6
)

// Device drives a single YardStick One over USB. All methods are strictly
// sequential, mirroring the one-in-flight-operation contract of the firmware.
type Device struct {
	ctx    *gousb.Context
	device *gousb.Device
	epOut  *gousb.OutEndpoint
	epIn   *gousb.InEndpoint

	settings Settings

	debug bool
}

// Open claims the idx-th YardStick One on the bus and programs the baseline
// radio configuration (data rate, channel bandwidth/spacing, max power, sync
// mode off for raw captures).
func Open(idx int, settings Settings) (res *Device, err error) {
	res = &Device{
		ctx:      gousb.NewContext(),
		settings: settings,
	}

	seen := -1
	devs, err := res.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if desc.Vendor == gousb.ID(VENDOR_YARDSTICK) && desc.Product == gousb.ID(PRODUCT_YARDSTICK) {
			seen++
			return seen == idx
		}
		return false
	})
	if err != nil {
		return nil, err
	}
	if len(devs) == 0 {
		return nil, fmt.Errorf("YardStick One idx %d not found", idx)
	}
	res.device = devs[0]

	res.device.Reset()
	res.device.SetAutoDetach(true)

	config, err := res.device.Config(1)
	if err != nil {
		return
	}

	// claim interface (idx 0, alt 0)
	iface, err := config.Interface(0, 0)
	if err != nil {
		return
	}

	res.epIn, err = iface.InEndpoint(5)
	if err != nil {
		return
	}
	res.epOut, err = iface.OutEndpoint(5)
	if err != nil {
		return
	}

	if err = res.setup(); err != nil {
		return nil, err
	}

	return res, err
}

func (d *Device) Close() error {
	d.device.Close()
	d.ctx.Close()
	return nil
}

func (d *Device) SetDebug(enable bool) {
	d.debug = enable
}

func (d *Device) read(buf []byte, timeout time.Duration) (n int, err error) {
	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	return d.epIn.ReadContext(ctx, buf)
}

func (d *Device) sendCommand(app byte, cmd byte, data []byte, timeout time.Duration) (err error) {
	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	dataRaw := []byte{app, cmd, byte(len(data) & 0xff), byte(len(data) >> 8)}
	dataRaw = append(dataRaw, data...)

	length := len(dataRaw)
	for length > 0 {
		n, err := d.epOut.WriteContext(ctx, dataRaw)
		if err != nil {
			return err
		}
		length -= n
	}

	return nil
}

// setup mirrors the listening profile the original tool programs before any
// attack: 4800 baud, lowball (wide-open packet filtering), sync mode off.
func (d *Device) setup() error {
	s := &d.settings
	if s.BaudRate == 0 {
		*s = DefaultSettings()
	}

	steps := []struct {
		cmd  byte
		data []byte
	}{
		{NIC_SET_BAUD, u32le(uint32(s.BaudRate))},
		{NIC_SET_CHANBW, u32le(uint32(s.ChannelBandwidth))},
		{NIC_SET_CHANSPC, u32le(uint32(s.ChannelSpacing))},
	}
	buf := make([]byte, 64)
	for _, step := range steps {
		if err := d.sendCommand(APP_NIC, step.cmd, step.data, USB_DEFAULT_TIMEOUT); err != nil {
			return err
		}
		if _, err := d.read(buf, USB_DEFAULT_TIMEOUT); err != nil {
			return err
		}
	}
	return nil
}

func u32le(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

func (d *Device) Configure(frequency uint32, mod Modulation) error {
	if err := d.sendCommand(APP_NIC, NIC_SET_FREQ, u32le(frequency), USB_DEFAULT_TIMEOUT); err != nil {
		return err
	}
	buf := make([]byte, 64)
	if _, err := d.read(buf, USB_DEFAULT_TIMEOUT); err != nil {
		return err
	}

	if err := d.sendCommand(APP_NIC, NIC_SET_MOD, []byte{byte(mod)}, USB_DEFAULT_TIMEOUT); err != nil {
		return err
	}
	_, err := d.read(buf, USB_DEFAULT_TIMEOUT)
	return err
}

func (d *Device) Transmit(data []byte) error {
	pay := []byte{byte(len(data) & 0xff), byte(len(data) >> 8)}
	pay = append(pay, data...)

	if err := d.sendCommand(APP_NIC, NIC_XMIT, pay, USB_DEFAULT_TIMEOUT); err != nil {
		return err
	}
	buf := make([]byte, 64)
	n, err := d.read(buf, USB_DEFAULT_TIMEOUT)
	if err != nil {
		return err
	}
	if n < 1 || buf[0] == 0 {
		return errors.New("transmit not acknowledged by dongle")
	}

	if d.debug {
		fmt.Printf("TX sent: % #x\n", data)
	}
	return nil
}

func (d *Device) StartContinuousTransmit() error {
	if err := d.sendCommand(APP_SYSTEM, SYS_CMD_RFMODE, []byte{RFST_STX}, USB_DEFAULT_TIMEOUT); err != nil {
		return err
	}
	buf := make([]byte, 64)
	_, err := d.read(buf, USB_DEFAULT_TIMEOUT)
	return err
}

func (d *Device) StopContinuousTransmit() error {
	if err := d.sendCommand(APP_SYSTEM, SYS_CMD_RFMODE, []byte{RFST_SIDLE}, USB_DEFAULT_TIMEOUT); err != nil {
		return err
	}
	buf := make([]byte, 64)
	_, err := d.read(buf, USB_DEFAULT_TIMEOUT)
	return err
}

// Receive blocks until one packet arrives or the timeout elapses. A timeout
// is not an error: the payload is simply empty, the caller decides whether
// that is a retry or a give-up.
func (d *Device) Receive(timeout time.Duration) ([]byte, error) {
	if err := d.sendCommand(APP_NIC, NIC_RECV, []byte{}, USB_DEFAULT_TIMEOUT); err != nil {
		return nil, err
	}

	buf := make([]byte, 512)
	n, err := d.read(buf, timeout)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return []byte{}, nil
		}
		return nil, err
	}

	return buf[0:n], nil
}

func (d *Device) RSSI() (int, error) {
	if err := d.sendCommand(APP_NIC, NIC_GET_RSSI, []byte{}, USB_DEFAULT_TIMEOUT); err != nil {
		return 0, err
	}
	buf := make([]byte, 64)
	n, err := d.read(buf, USB_DEFAULT_TIMEOUT)
	if err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, errors.New("error reading RSSI")
	}

	// CC1111 RSSI register, converted per the TI datasheet.
	raw := int(buf[0])
	if raw >= 128 {
		return (raw-256)/2 - 74, nil
	}
	return raw/2 - 74, nil
}
