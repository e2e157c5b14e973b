package attack

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/zap"

	"github.com/cclabsInc/RFCrack/capture"
	"github.com/cclabsInc/RFCrack/rfcat"
	"github.com/cclabsInc/RFCrack/rfcat/rfcattest"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	store, err := capture.NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return NewEngine(store, zap.NewNop())
}

func TestListenOnce(t *testing.T) {
	Convey("A packet arriving mid-timeout comes back as a capture", t, func() {
		radio := rfcattest.New(rfcattest.ScriptedReceive{
			At:   200 * time.Millisecond,
			Data: []byte{0x01, 0x02},
		})
		h := rfcat.NewHandle("yd0", radio)
		So(h.Configure(315000000, rfcat.ModASKOOK), ShouldBeNil)

		eng := testEngine(t)
		start := time.Now()
		c, err := eng.ListenOnce(h, time.Second)
		elapsed := time.Since(start)

		So(err, ShouldBeNil)
		So(c, ShouldNotBeNil)
		So(c.Data, ShouldResemble, []byte{0x01, 0x02})
		So(c.Frequency, ShouldEqual, uint32(315000000))
		So(elapsed, ShouldBeLessThan, time.Second)
	})

	Convey("A quiet band yields no signal at the timeout, handle back to idle", t, func() {
		h := rfcat.NewHandle("yd0", rfcattest.New())

		eng := testEngine(t)
		start := time.Now()
		c, err := eng.ListenOnce(h, 500*time.Millisecond)
		elapsed := time.Since(start)

		So(err, ShouldBeNil)
		So(c, ShouldBeNil)
		So(elapsed, ShouldBeGreaterThanOrEqualTo, 500*time.Millisecond)
		So(h.State(), ShouldEqual, rfcat.StateIdle)
	})

	Convey("A dead dongle is a driver error with handle and op context", t, func() {
		radio := rfcattest.New()
		radio.ReceiveErr = errors.New("usb endpoint gone")
		h := rfcat.NewHandle("yd9", radio)

		eng := testEngine(t)
		_, err := eng.ListenOnce(h, 10*time.Millisecond)
		var derr *DriverError
		So(errors.As(err, &derr), ShouldBeTrue)
		So(derr.Handle, ShouldEqual, "yd9")
		So(derr.Op, ShouldEqual, "receive")
	})
}

func TestListenContinuous(t *testing.T) {
	Convey("Every non-empty payload reaches the callback until cancel", t, func() {
		radio := rfcattest.New(
			rfcattest.ScriptedReceive{At: 20 * time.Millisecond, Data: []byte{0xaa}},
			rfcattest.ScriptedReceive{At: 60 * time.Millisecond, Data: []byte{0xbb}},
		)
		h := rfcat.NewHandle("yd0", radio)

		ctx, cancel := context.WithCancel(context.Background())
		var got []*capture.Capture
		eng := testEngine(t)
		err := eng.ListenContinuous(ctx, h, func(c *capture.Capture) {
			got = append(got, c)
			if len(got) == 2 {
				cancel()
			}
		})

		So(errors.Is(err, context.Canceled), ShouldBeTrue)
		So(len(got), ShouldEqual, 2)
		So(got[0].Data, ShouldResemble, []byte{0xaa})
		So(got[1].Data, ShouldResemble, []byte{0xbb})
	})
}

func TestReplay(t *testing.T) {
	Convey("Replay sends exactly repeat frames with the configured gap", t, func() {
		radio := rfcattest.New()
		h := rfcat.NewHandle("yd0", radio)
		c, _ := capture.New([]byte{0xde, 0xad}, 315000000, rfcat.ModASKOOK)

		eng := testEngine(t)
		So(eng.Replay(h, c, 3, 50*time.Millisecond), ShouldBeNil)

		sent := radio.EventsOf("transmit")
		So(len(sent), ShouldEqual, 3)
		for _, e := range sent {
			So(e.Data, ShouldResemble, []byte{0xde, 0xad})
		}
		So(sent[1].At-sent[0].At, ShouldBeGreaterThanOrEqualTo, 50*time.Millisecond)
		So(sent[2].At-sent[1].At, ShouldBeGreaterThanOrEqualTo, 50*time.Millisecond)
	})

	Convey("A jamming handle cannot replay", t, func() {
		h := rfcat.NewHandle("yd0", rfcattest.New())
		So(h.StartJam(), ShouldBeNil)
		defer h.StopJam()

		c, _ := capture.New([]byte{0x01}, 315000000, rfcat.ModASKOOK)
		err := testEngine(t).Replay(h, c, 1, 0)
		var terr *TransmitError
		So(errors.As(err, &terr), ShouldBeTrue)
	})
}

func TestReplayFromStore(t *testing.T) {
	Convey("A saved capture replays on fresh settings", t, func() {
		eng := testEngine(t)
		c, _ := capture.New([]byte{0x42, 0x43}, 315000000, rfcat.ModASKOOK)
		id, err := eng.Store().Save(c)
		So(err, ShouldBeNil)

		radio := rfcattest.New()
		h := rfcat.NewHandle("yd0", radio)
		So(eng.ReplayFromStore(h, id, 433920000, rfcat.Mod2FSK), ShouldBeNil)

		So(h.Frequency, ShouldEqual, uint32(433920000))
		So(h.Modulation, ShouldEqual, rfcat.Mod2FSK)
		sent := radio.EventsOf("transmit")
		So(len(sent), ShouldEqual, 1)
		So(sent[0].Data, ShouldResemble, []byte{0x42, 0x43})
	})

	Convey("A missing identifier surfaces NotFound", t, func() {
		eng := testEngine(t)
		h := rfcat.NewHandle("yd0", rfcattest.New())
		err := eng.ReplayFromStore(h, "ghost", 315000000, rfcat.ModASKOOK)
		So(errors.Is(err, capture.ErrNotFound), ShouldBeTrue)
	})
}

func TestSendDeBruijn(t *testing.T) {
	Convey("The packed sequence goes out in one transmission", t, func() {
		radio := rfcattest.New()
		h := rfcat.NewHandle("yd0", radio)

		So(testEngine(t).SendDeBruijn(h, 8), ShouldBeNil)
		sent := radio.EventsOf("transmit")
		So(len(sent), ShouldEqual, 1)
		// B(2,8) has 256 bits -> 32 bytes
		So(len(sent[0].Data), ShouldEqual, 32)
	})
}
