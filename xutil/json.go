package xutil

import "encoding/json"

// ToJsonString 转换为json字符串，失败返回空串
func ToJsonString(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// ToJsonStringIndent 转换为带缩进的json字符串
func ToJsonStringIndent(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		ErrorIfEnableDebug("ToJsonStringIndent failed, err=[%v]", err)
		return ""
	}
	return string(b)
}
