package xrecipe

import (
	"io"
	"os"
	"strings"

	"github.com/xiaoshicae/xinfer/xerror"
	"github.com/xiaoshicae/xinfer/xmedia"
)

// DecodeInput 按流水线的输入类型解码
func DecodeInput(input string, r io.Reader) (xmedia.Value, error) {
	switch input {
	case InputAudio:
		return xmedia.ReadWAV(r)
	case InputImage:
		return xmedia.DecodeImage(r)
	case InputText:
		b, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		text := strings.TrimSpace(string(b))
		if text == "" {
			return nil, xerror.ContractMismatch("text input is empty")
		}
		return xmedia.Prompt{Text: text}, nil
	default:
		return nil, xerror.ContractMismatch("unknown input %q", input)
	}
}

// DecodeFile 打开文件并解码
func DecodeFile(input, path string) (xmedia.Value, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return DecodeInput(input, f)
}
