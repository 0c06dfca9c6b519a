package xredis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xiaoshicae/xinfer/xconfig"
	"github.com/xiaoshicae/xinfer/xutil"

	. "github.com/bytedance/mockey"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigMergeDefault(t *testing.T) {
	PatchConvey("TestConfigMergeDefault", t, func() {
		c := configMergeDefault(nil)
		convey.So(c.Addr, convey.ShouldEqual, "localhost:6379")
		convey.So(c.KeyPrefix, convey.ShouldEqual, "xinfer:")
		convey.So(c.MinIdleConns, convey.ShouldEqual, 2)

		c = configMergeDefault(&Config{Addr: "redis:6380", KeyPrefix: "narrator:"})
		convey.So(c.Addr, convey.ShouldEqual, "redis:6380")
		convey.So(c.KeyPrefix, convey.ShouldEqual, "narrator:")
	})
}

func TestSanitize(t *testing.T) {
	PatchConvey("TestSanitize", t, func() {
		c := &Config{Password: "secret"}
		convey.So(sanitize(c).Password, convey.ShouldEqual, "***")
		convey.So(c.Password, convey.ShouldEqual, "secret")
	})
}

func TestKey(t *testing.T) {
	PatchConvey("TestKey", t, func() {
		convey.So(Key("stage", "abc"), convey.ShouldEqual, "xinfer:stage:abc")
	})
}

func TestNotConfigured(t *testing.T) {
	PatchConvey("TestNotConfigured", t, func() {
		Mock(xconfig.ContainKey).Return(false).Build()
		convey.So(initXRedis(), convey.ShouldBeNil)
		convey.So(C(), convey.ShouldBeNil)

		b, ok, err := GetBytes(context.Background(), "k")
		convey.So(err, convey.ShouldBeNil)
		convey.So(ok, convey.ShouldBeFalse)
		convey.So(b, convey.ShouldBeNil)
		convey.So(SetBytes(context.Background(), "k", []byte("v"), time.Minute), convey.ShouldBeNil)
		convey.So(closeXRedis(), convey.ShouldBeNil)
	})
}

func TestNewClientPingFailed(t *testing.T) {
	PatchConvey("TestNewClientPingFailed", t, func() {
		Mock(xutil.Retry).Return(errors.New("connection refused")).Build()
		_, err := newClient(configMergeDefault(&Config{Addr: "127.0.0.1:1"}))
		convey.So(err, convey.ShouldNotBeNil)
		convey.So(err.Error(), convey.ShouldContainSubstring, "ping failed")
	})
}
