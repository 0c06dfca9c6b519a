package xutil

import (
	"reflect"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// ToPtr 获取指针
func ToPtr[T any](t T) *T {
	return &t
}

// GetOrDefault 如果v为0值，则返回defaultV
func GetOrDefault[T any](v T, defaultV T) T {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.IsZero() {
		return defaultV
	}
	return v
}

// ToDuration 在 cast.ToDuration 的基础上兼容天，如 "7d"、"1d12h"
func ToDuration(i any) time.Duration {
	switch v := i.(type) {
	case nil:
		return 0
	case string:
		return parseDuration(v)
	case *string:
		if v == nil {
			return 0
		}
		return parseDuration(*v)
	default:
		return cast.ToDuration(i)
	}
}

func parseDuration(s string) time.Duration {
	day, rest, found := strings.Cut(s, "d")
	if !found {
		return cast.ToDuration(s)
	}
	days := cast.ToInt(day)
	return time.Duration(days)*24*time.Hour + cast.ToDuration(rest)
}
