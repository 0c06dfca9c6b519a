package trans

import (
	"errors"
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	. "github.com/smartystreets/goconvey/convey"
)

type runReq struct {
	Text   string `json:"text" binding:"required"`
	Labels int    `json:"labels" binding:"gte=1"`
}

func TestToZHErr(t *testing.T) {
	Convey("nil", t, func() {
		So(ToZHErr(nil), ShouldBeNil)
		So(ToZHErrMsg(nil), ShouldEqual, "")
	})

	Convey("register then translate", t, func() {
		So(RegisterZHTranslations(), ShouldBeNil)
		So(RegisterZHTranslations(), ShouldBeNil)

		err := binding.Validator.ValidateStruct(&runReq{})
		So(err, ShouldNotBeNil)

		zhErr := ToZHErr(err)
		var ze *ZHErr
		So(errors.As(zhErr, &ze), ShouldBeTrue)
		So(ze.Msg, ShouldContainSubstring, "Text为必填字段")
		So(ze.Msg, ShouldContainSubstring, "Labels")

		var ves validator.ValidationErrors
		So(errors.As(zhErr, &ves), ShouldBeTrue)
	})

	Convey("non validation error", t, func() {
		err := errors.New("plain")
		So(ToZHErr(err), ShouldEqual, err)
		So(ToZHErrMsg(err), ShouldEqual, "plain")
	})
}
