package rfcat_test

import (
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/cclabsInc/RFCrack/rfcat"
	"github.com/cclabsInc/RFCrack/rfcat/rfcattest"
)

func TestHandleStates(t *testing.T) {
	Convey("A fresh handle is idle", t, func() {
		h := rfcat.NewHandle("yd0", rfcattest.New())
		So(h.State(), ShouldEqual, rfcat.StateIdle)
	})

	Convey("Configure records the explicit settings on the handle", t, func() {
		h := rfcat.NewHandle("yd0", rfcattest.New())
		So(h.Configure(433920000, rfcat.Mod2FSK), ShouldBeNil)
		So(h.Frequency, ShouldEqual, uint32(433920000))
		So(h.Modulation, ShouldEqual, rfcat.Mod2FSK)
	})

	Convey("Transmit and Receive return the handle to idle", t, func() {
		h := rfcat.NewHandle("yd0", rfcattest.New())
		So(h.Transmit([]byte{0x01}), ShouldBeNil)
		So(h.State(), ShouldEqual, rfcat.StateIdle)

		_, err := h.Receive(10 * time.Millisecond)
		So(err, ShouldBeNil)
		So(h.State(), ShouldEqual, rfcat.StateIdle)
	})

	Convey("Jamming excludes every other primitive on the same handle", t, func() {
		radio := rfcattest.New()
		h := rfcat.NewHandle("yd0", radio)
		So(h.StartJam(), ShouldBeNil)
		So(h.State(), ShouldEqual, rfcat.StateJamming)

		So(errors.Is(h.Transmit([]byte{0x01}), rfcat.ErrBusy), ShouldBeTrue)
		_, err := h.Receive(time.Millisecond)
		So(errors.Is(err, rfcat.ErrBusy), ShouldBeTrue)
		So(errors.Is(h.Configure(315000000, rfcat.ModASKOOK), rfcat.ErrBusy), ShouldBeTrue)
		So(errors.Is(h.StartJam(), rfcat.ErrBusy), ShouldBeTrue)

		So(h.StopJam(), ShouldBeNil)
		So(h.State(), ShouldEqual, rfcat.StateIdle)
		So(radio.Jamming(), ShouldBeFalse)
	})

	Convey("StopJam on an idle handle is a no-op", t, func() {
		radio := rfcattest.New()
		h := rfcat.NewHandle("yd0", radio)
		So(h.StopJam(), ShouldBeNil)
		So(radio.EventsOf("stop-jam"), ShouldBeEmpty)
	})
}

func TestParseModulation(t *testing.T) {
	Convey("Known names parse, unknown names do not", t, func() {
		m, err := rfcat.ParseModulation("MOD_ASK_OOK")
		So(err, ShouldBeNil)
		So(m, ShouldEqual, rfcat.ModASKOOK)

		m, err = rfcat.ParseModulation("MOD_2FSK")
		So(err, ShouldBeNil)
		So(m, ShouldEqual, rfcat.Mod2FSK)

		_, err = rfcat.ParseModulation("MOD_GFSK")
		So(err, ShouldNotBeNil)
	})
}
