package quartz

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestGroupMatchers(t *testing.T) {
	Convey("Given the simple group matchers", t, func() {
		So(GroupEquals("reports").Matches("reports"), ShouldBeTrue)
		So(GroupEquals("reports").Matches("reports2"), ShouldBeFalse)

		So(GroupStartsWith("rep").Matches("reports"), ShouldBeTrue)
		So(GroupStartsWith("rep").Matches("billing"), ShouldBeFalse)

		So(GroupEndsWith("orts").Matches("reports"), ShouldBeTrue)
		So(GroupContains("epor").Matches("reports"), ShouldBeTrue)

		So(AnyGroup().Matches("anything"), ShouldBeTrue)
	})

	Convey("Given composed matchers", t, func() {
		a := GroupStartsWith("rep")
		b := GroupEndsWith("orts")

		Convey("Then And requires both", func() {
			m := And(a, b)

			So(m.Matches("reports"), ShouldBeTrue)
			So(m.Matches("reportx"), ShouldBeFalse)
		})

		Convey("Then Or requires either", func() {
			m := Or(GroupEquals("billing"), GroupEquals("reports"))

			So(m.Matches("reports"), ShouldBeTrue)
			So(m.Matches("billing"), ShouldBeTrue)
			So(m.Matches("other"), ShouldBeFalse)
		})

		Convey("Then Not inverts", func() {
			m := Not(GroupEquals("billing"))

			So(m.Matches("billing"), ShouldBeFalse)
			So(m.Matches("reports"), ShouldBeTrue)
		})
	})

	Convey("Given equalsFastPath", t, func() {
		Convey("Then it extracts the literal group from an EQUALS matcher", func() {
			group, ok := equalsFastPath(GroupEquals("reports"))

			So(ok, ShouldBeTrue)
			So(group, ShouldEqual, "reports")
		})

		Convey("Then it rejects other matcher kinds", func() {
			_, ok := equalsFastPath(GroupStartsWith("rep"))

			So(ok, ShouldBeFalse)

			_, ok = equalsFastPath(And(GroupEquals("a"), GroupEquals("b")))

			So(ok, ShouldBeFalse)
		})
	})
}
