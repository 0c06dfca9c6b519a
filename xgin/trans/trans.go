// Package trans 将 gin 请求参数校验错误翻译为中文
package trans

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/xiaoshicae/xinfer/xutil"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	zt "github.com/go-playground/validator/v10/translations/zh"
)

var (
	trans     ut.Translator
	transOnce sync.Once
)

// RegisterZHTranslations 注册中文翻译器，仅首次调用生效
func RegisterZHTranslations() error {
	var regErr error
	transOnce.Do(func() {
		zhTrans := zh.New()
		t, ok := ut.New(zhTrans, zhTrans).GetTranslator("zh")
		if !ok {
			regErr = errors.New("zh translator not found")
			return
		}

		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			regErr = errors.New("binding.Validator.Engine() is not *validator.Validate")
			return
		}

		if err := zt.RegisterDefaultTranslations(v, t); err != nil {
			regErr = err
			return
		}
		trans = t
		xutil.InfoIfEnableDebug("XInfer zh translations registered")
	})
	return regErr
}

// ToZHErrMsg 翻译错误信息，未启用翻译或非校验错误时原样返回
func ToZHErrMsg(err error) string {
	if err = ToZHErr(err); err != nil {
		return err.Error()
	}
	return ""
}

// ToZHErr 将 validator.ValidationErrors 翻译为中文，按字段名排序
func ToZHErr(err error) error {
	if err == nil || trans == nil {
		return err
	}

	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return err
	}

	byField := make(map[string][]string)
	for _, e := range ves {
		byField[e.Field()] = append(byField[e.Field()], e.Translate(trans))
	}

	fields := make([]string, 0, len(byField))
	for f := range byField {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	msgs := make([]string, 0, len(fields))
	for _, f := range fields {
		msgs = append(msgs, strings.Join(byField[f], ", "))
	}
	return &ZHErr{Msg: strings.Join(msgs, ", "), CauseErr: err}
}

type ZHErr struct {
	Msg      string
	CauseErr error
}

func (e *ZHErr) Error() string {
	return e.Msg
}

func (e *ZHErr) Unwrap() error {
	return e.CauseErr
}
