package rfcat

import (
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestSettingsTemplate(t *testing.T) {
	Convey("A tuned profile survives a save/load cycle", t, func() {
		s := DefaultSettings()
		s.Frequency = 314350000
		s.Modulation = Mod2FSK.String()
		s.UpperRSSI = -90

		path := filepath.Join(t.TempDir(), "keyfob.yaml")
		So(s.SaveTemplate(path), ShouldBeNil)

		got, err := LoadTemplate(path)
		So(err, ShouldBeNil)
		So(got, ShouldResemble, s)
	})

	Convey("A template with a bogus modulation is rejected", t, func() {
		s := DefaultSettings()
		s.Modulation = "MOD_PSK31"
		path := filepath.Join(t.TempDir(), "bad.yaml")
		So(s.SaveTemplate(path), ShouldBeNil)

		_, err := LoadTemplate(path)
		So(err, ShouldNotBeNil)
	})
}
