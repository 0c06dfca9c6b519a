package xutil

import (
	"reflect"
	"runtime"
	"strings"
)

// GetFuncName 获取函数名称，传入 nil 或非函数类型时返回空字符串
func GetFuncName(fc any) string {
	_, _, name := GetFuncInfo(fc)
	return name
}

// GetFuncInfo 获取函数的源文件路径、行号和名称(不含包路径)
func GetFuncInfo(fc any) (file string, line int, name string) {
	if fc == nil {
		return "", 0, ""
	}
	f := reflect.ValueOf(fc)
	if f.Kind() != reflect.Func || f.IsNil() {
		return "", 0, ""
	}

	fn := runtime.FuncForPC(f.Pointer())
	if fn == nil {
		return "", 0, ""
	}

	full := fn.Name()
	if idx := strings.LastIndex(full, "/"); idx != -1 {
		full = full[idx+1:]
	}
	_, name, ok := strings.Cut(full, ".")
	if !ok {
		return "", 0, ""
	}
	file, line = fn.FileLine(f.Pointer())
	return file, line, name
}
