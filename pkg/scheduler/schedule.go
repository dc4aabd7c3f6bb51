// Package scheduler 按 cron 计划定时触发 Agent
package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// parser 支持秒级的 6 字段格式和 @every 等描述符
var parser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ScheduleParseError cron 表达式无效
type ScheduleParseError struct {
	Expr string
	Err  error
}

func (e *ScheduleParseError) Error() string {
	return fmt.Sprintf("invalid cron expression %q: %v", e.Expr, e.Err)
}

func (e *ScheduleParseError) Unwrap() error {
	return e.Err
}

// ParseSchedule 解析 cron 表达式
func ParseSchedule(expr string) (cron.Schedule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, &ScheduleParseError{Expr: expr, Err: fmt.Errorf("empty expression")}
	}
	schedule, err := parser.Parse(expr)
	if err != nil {
		return nil, &ScheduleParseError{Expr: expr, Err: err}
	}
	return schedule, nil
}

// ValidateSchedule 校验 cron 表达式，设置计划时调用
func ValidateSchedule(expr string) error {
	_, err := ParseSchedule(expr)
	return err
}

// NextRun 计算 from 之后的下次触发时间
func NextRun(expr string, from time.Time) (time.Time, error) {
	schedule, err := ParseSchedule(expr)
	if err != nil {
		return time.Time{}, err
	}
	return schedule.Next(from), nil
}
