package xsink

import (
	"context"

	"github.com/xiaoshicae/xinfer/xerror"
	"github.com/xiaoshicae/xinfer/xgorm"
	"github.com/xiaoshicae/xinfer/xpipeline"

	"gorm.io/gorm"
)

// GormSink 将 RunRecord 写入数据库，DB 为 nil 时使用 xgorm 全局 client
type GormSink struct {
	DB *gorm.DB
}

func (s GormSink) Accept(ctx context.Context, r *xpipeline.RunResult) error {
	db := s.DB
	if db != nil {
		db = db.WithContext(ctx)
	} else {
		db = xgorm.CWithCtx(ctx)
	}
	if db == nil {
		return xerror.Newf("xsink", "GormSink", "xgorm not configured")
	}
	if err := db.Create(NewRecord(r)).Error; err != nil {
		return xerror.New("xsink", "gorm.Create", err)
	}
	return nil
}
