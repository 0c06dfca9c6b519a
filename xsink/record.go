package xsink

import (
	"encoding/json"
	"time"

	"github.com/xiaoshicae/xinfer/xgorm"
	"github.com/xiaoshicae/xinfer/xpipeline"
)

func init() {
	xgorm.RegisterModel(&RunRecord{})
}

// RunRecord 一次运行的持久化记录，JSON 文件与数据库共用
type RunRecord struct {
	ID         uint64                 `json:"-" gorm:"primaryKey;autoIncrement"`
	RunID      string                 `json:"run_id" gorm:"size:36;uniqueIndex"`
	Pipeline   string                 `json:"pipeline" gorm:"size:128;index"`
	State      string                 `json:"state" gorm:"size:16"`
	OutputKind string                 `json:"output_kind,omitempty" gorm:"size:16"`
	Output     string                 `json:"output,omitempty" gorm:"type:text"`
	FailedStep int                    `json:"failed_step,omitempty"`
	FailedName string                 `json:"failed_name,omitempty" gorm:"size:128"`
	ErrKind    string                 `json:"err_kind,omitempty" gorm:"size:32"`
	Err        string                 `json:"err,omitempty" gorm:"type:text"`
	DurationMs int64                  `json:"duration_ms"`
	Steps      []xpipeline.StepTiming `json:"steps" gorm:"-"`
	StepsJSON  string                 `json:"-" gorm:"column:steps;type:text"`
	StartedAt  time.Time              `json:"started_at"`
	CreatedAt  time.Time              `json:"-"`
}

func (RunRecord) TableName() string {
	return "xinfer_run_record"
}

// NewRecord 输出按 Render 转为文本
func NewRecord(r *xpipeline.RunResult) *RunRecord {
	rec := &RunRecord{
		RunID:      r.RunID,
		Pipeline:   r.Pipeline,
		State:      r.State.String(),
		DurationMs: r.Duration.Milliseconds(),
		Steps:      r.Steps,
		StartedAt:  r.StartedAt,
	}
	if r.Output != nil {
		rec.OutputKind = r.Output.Kind().String()
		rec.Output = Render(r.Output)
	}
	if r.Err != nil {
		rec.FailedStep = r.Err.Index
		rec.FailedName = r.Err.StepName
		rec.ErrKind = r.Err.Kind.String()
		rec.Err = r.Err.Err.Error()
	}
	if b, err := json.Marshal(r.Steps); err == nil {
		rec.StepsJSON = string(b)
	}
	return rec
}
