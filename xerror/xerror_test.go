package xerror

import (
	"errors"
	"fmt"
	"testing"

	. "github.com/bytedance/mockey"
	. "github.com/smartystreets/goconvey/convey"
)

func TestXInferError(t *testing.T) {
	PatchConvey("TestXInferError", t, func() {
		PatchConvey("Error", func() {
			So(New("xconfig", "init", errors.New("file not found")).Error(), ShouldEqual, "XInfer xconfig init failed, err=[file not found]")
			So(New("xgorm", "close", nil).Error(), ShouldEqual, "XInfer xgorm close failed")
		})

		PatchConvey("Newf", func() {
			err := Newf("xmodel", "load", "model=[%s] not found", "tagger")
			So(err.Module, ShouldEqual, "xmodel")
			So(err.Op, ShouldEqual, "load")
			So(err.Err.Error(), ShouldEqual, "model=[tagger] not found")
		})

		PatchConvey("Unwrap", func() {
			inner := errors.New("inner")
			So(errors.Is(New("xlog", "init", inner), inner), ShouldBeTrue)
		})

		PatchConvey("KeepsKind", func() {
			err := Newf("xmodel", "load", "model=[%s], %w", "onnx:///m.onnx", ModelUnavailable("file missing"))
			So(KindOf(err), ShouldEqual, KindModelUnavailable)
			So(errors.Is(err, ErrModelUnavailable), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "XInfer xmodel load failed, err=[model=[onnx:///m.onnx], ModelUnavailable: file missing]")

			var xe *XInferError
			So(errors.As(fmt.Errorf("recipe narrator: %w", err), &xe), ShouldBeTrue)
			So(xe.Module, ShouldEqual, "xmodel")
		})
	})
}

func TestKind(t *testing.T) {
	PatchConvey("TestKind", t, func() {
		So(KindModelUnavailable.String(), ShouldEqual, "ModelUnavailable")
		So(KindContractMismatch.String(), ShouldEqual, "ContractMismatch")
		So(KindInferenceFailure.String(), ShouldEqual, "InferenceFailure")
		So(KindAdaptation.String(), ShouldEqual, "AdaptationError")
		So(Kind(42).String(), ShouldEqual, "Unknown")
	})
}

func TestClassifiedError(t *testing.T) {
	PatchConvey("TestClassifiedError", t, func() {
		PatchConvey("Constructors", func() {
			So(errors.Is(ModelUnavailable("m"), ErrModelUnavailable), ShouldBeTrue)
			So(errors.Is(ContractMismatch("c"), ErrContractMismatch), ShouldBeTrue)
			So(errors.Is(InferenceFailure("i"), ErrInferenceFailure), ShouldBeTrue)
			So(errors.Is(Adaptation("a"), ErrAdaptation), ShouldBeTrue)
			So(errors.Is(Adaptation("a"), ErrContractMismatch), ShouldBeFalse)
		})

		PatchConvey("WrapKeepsCause", func() {
			cause := errors.New("onnx run failed")
			err := Wrap(KindInferenceFailure, cause, "stage=[tagger]")
			So(errors.Is(err, cause), ShouldBeTrue)
			So(errors.Is(err, ErrInferenceFailure), ShouldBeTrue)
			So(err.Error(), ShouldEqual, "InferenceFailure: stage=[tagger]: onnx run failed")
			So(Wrap(KindAdaptation, cause, "").Error(), ShouldEqual, "AdaptationError: onnx run failed")
			So(ContractMismatch("want %s", "audio").Error(), ShouldEqual, "ContractMismatch: want audio")
		})

		PatchConvey("KindOf", func() {
			So(KindOf(nil), ShouldEqual, KindUnknown)
			So(KindOf(errors.New("plain")), ShouldEqual, KindUnknown)
			So(KindOf(fmt.Errorf("ctx: %w", ModelUnavailable("x"))), ShouldEqual, KindModelUnavailable)
			So(KindOf(New("xmodel", "load", ModelUnavailable("x"))), ShouldEqual, KindModelUnavailable)
		})

		PatchConvey("KindOr", func() {
			So(KindOr(nil, KindInferenceFailure), ShouldBeNil)
			plain := errors.New("plain")
			So(KindOf(KindOr(plain, KindInferenceFailure)), ShouldEqual, KindInferenceFailure)
			classifiedErr := ContractMismatch("x")
			So(KindOr(classifiedErr, KindInferenceFailure), ShouldEqual, classifiedErr)
		})
	})
}
