package scan

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/zap"

	"github.com/cclabsInc/RFCrack/rfcat"
	"github.com/cclabsInc/RFCrack/rfcat/rfcattest"
)

const probeTimeout = 5 * time.Millisecond

func collect(in <-chan Probe) []Probe {
	var out []Probe
	for p := range in {
		out = append(out, p)
	}
	return out
}

func frequencies(probes []Probe) []uint32 {
	out := make([]uint32, len(probes))
	for i, p := range probes {
		out[i] = p.Frequency
	}
	return out
}

func TestSweepDeterminism(t *testing.T) {
	Convey("A sweep probes start, start+step, ... <= end, strictly ascending", t, func() {
		s := New(rfcat.NewHandle("yd0", rfcattest.New()), probeTimeout, zap.NewNop())
		probes := collect(s.Sweep(context.Background(), 300000000, 302000000, 500000))
		So(frequencies(probes), ShouldResemble, []uint32{
			300000000, 300500000, 301000000, 301500000, 302000000,
		})
	})

	Convey("An end that is not on a step boundary is never overshot", t, func() {
		s := New(rfcat.NewHandle("yd0", rfcattest.New()), probeTimeout, zap.NewNop())
		probes := collect(s.Sweep(context.Background(), 100, 1050, 400))
		So(frequencies(probes), ShouldResemble, []uint32{100, 500, 900})
	})

	Convey("A zero step or inverted range yields nothing", t, func() {
		s := New(rfcat.NewHandle("yd0", rfcattest.New()), probeTimeout, zap.NewNop())
		So(collect(s.Sweep(context.Background(), 100, 200, 0)), ShouldBeEmpty)
		So(collect(s.Sweep(context.Background(), 200, 100, 10)), ShouldBeEmpty)
	})
}

func TestScanListOrder(t *testing.T) {
	Convey("List scans probe in exactly the given order, hits or not", t, func() {
		// a scripted payload makes the middle frequency a hit
		radio := rfcattest.New(rfcattest.ScriptedReceive{At: 0, Data: []byte{0xf0}})
		s := New(rfcat.NewHandle("yd0", radio), probeTimeout, zap.NewNop())

		list := []uint32{433000000, 314000000, 390000000}
		probes := collect(s.ScanList(context.Background(), list))
		So(frequencies(probes), ShouldResemble, list)
		So(probes[0].Present, ShouldBeTrue)
		So(probes[1].Present, ShouldBeFalse)
		So(probes[2].Present, ShouldBeFalse)
	})
}

func TestScanCancellation(t *testing.T) {
	Convey("Cancelling mid-sweep just stops the sequence", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		s := New(rfcat.NewHandle("yd0", rfcattest.New()), probeTimeout, zap.NewNop())

		seq := s.Sweep(ctx, 300000000, 400000000, 1000)
		var got []Probe
		for p := range seq {
			got = append(got, p)
			if len(got) == 3 {
				cancel()
			}
		}
		So(len(got), ShouldBeBetweenOrEqual, 3, 5)
	})
}

func TestScanDriverError(t *testing.T) {
	Convey("A driver failure terminates the sweep and surfaces from Err", t, func() {
		cause := errors.New("usb endpoint gone")
		radio := rfcattest.New()
		radio.ReceiveErr = cause
		s := New(rfcat.NewHandle("yd0", radio), probeTimeout, zap.NewNop())

		So(collect(s.Sweep(context.Background(), 100, 1000, 100)), ShouldBeEmpty)
		So(errors.Is(s.Err(), cause), ShouldBeTrue)
	})

	Convey("A list scan failure surfaces the same way", t, func() {
		cause := errors.New("usb endpoint gone")
		radio := rfcattest.New()
		radio.ReceiveErr = cause
		s := New(rfcat.NewHandle("yd0", radio), probeTimeout, zap.NewNop())

		So(collect(s.ScanList(context.Background(), []uint32{315000000, 433920000})), ShouldBeEmpty)
		So(errors.Is(s.Err(), cause), ShouldBeTrue)
	})

	Convey("A clean run and a cancelled run both report no error", t, func() {
		s := New(rfcat.NewHandle("yd0", rfcattest.New()), probeTimeout, zap.NewNop())
		collect(s.Sweep(context.Background(), 100, 300, 100))
		So(s.Err(), ShouldBeNil)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		collect(s.Sweep(ctx, 100, 1000, 100))
		So(s.Err(), ShouldBeNil)
	})
}

func TestHits(t *testing.T) {
	Convey("Hits filters the verbose sequence down to signals", t, func() {
		radio := rfcattest.New(rfcattest.ScriptedReceive{At: 0, Data: []byte{0xaa, 0xbb}})
		s := New(rfcat.NewHandle("yd0", radio), probeTimeout, zap.NewNop())

		probes := collect(Hits(s.ScanList(context.Background(), []uint32{315000000, 433920000})))
		So(len(probes), ShouldEqual, 1)
		So(probes[0].Frequency, ShouldEqual, uint32(315000000))
		So(probes[0].Payload, ShouldResemble, []byte{0xaa, 0xbb})
	})
}
