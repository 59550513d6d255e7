package service

import (
	"errors"
	"fmt"
	"io"
	"time"

	"SpeedwaySync/internal/model"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sirupsen/logrus"
)

// RunSummary 一次入库任务的汇总：计数 + 分类后的错误
type RunSummary struct {
	StartedAt  time.Time
	FinishedAt time.Time
	DryRun     bool

	Files     int // 本批次文件数
	Read      int // 成功读出的记录数
	Validated int // 通过校验的记录数
	Written   int // 成功提交的记录数
	Skipped   int // 校验失败跳过的记录数
	Failed    int // 写库最终失败的记录数

	ReadErrors int  // 无法解析的文件数
	Retries    int  // 瞬时错误的重试总次数
	Archived   int  // 已归档的文件数
	EmptyBatch bool // 没有读到任何记录

	Errors []error // *model.ReadError / *model.ValidationError / *model.WriteError，按发生顺序
}

func newRunSummary(dryRun bool) *RunSummary {
	return &RunSummary{StartedAt: time.Now(), DryRun: dryRun}
}

// Succeeded 没有写库失败即视为成功；校验跳过和文件解析失败不影响结果
func (s *RunSummary) Succeeded() bool {
	return s.Failed == 0
}

func (s *RunSummary) addError(err error) {
	s.Errors = append(s.Errors, err)
}

// Fields 用于日志
func (s *RunSummary) Fields() logrus.Fields {
	return logrus.Fields{
		"files":       s.Files,
		"read":        s.Read,
		"validated":   s.Validated,
		"written":     s.Written,
		"skipped":     s.Skipped,
		"failed":      s.Failed,
		"read_errors": s.ReadErrors,
		"retries":     s.Retries,
		"archived":    s.Archived,
		"dry_run":     s.DryRun,
		"duration":    s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond).String(),
	}
}

// Render 输出人可读的汇总表，错误只展示前 maxErrors 条（<=0 表示全部）
func (s *RunSummary) Render(w io.Writer, maxErrors int) {
	counts := table.NewWriter()
	counts.SetOutputMirror(w)
	counts.SetStyle(table.StyleRounded)
	counts.SetTitle("入库汇总")
	counts.AppendHeader(table.Row{"read", "validated", "written", "skipped", "failed", "read errors", "retries", "archived"})
	counts.AppendRow(table.Row{s.Read, s.Validated, s.Written, s.Skipped, s.Failed, s.ReadErrors, s.Retries, s.Archived})
	result := "成功"
	if !s.Succeeded() {
		result = "失败"
	}
	if s.EmptyBatch {
		result += "（空批次）"
	}
	if s.DryRun {
		result += "（dry-run，未写库）"
	}
	counts.AppendFooter(table.Row{"结果", result})
	counts.Render()

	if len(s.Errors) == 0 {
		return
	}

	shown := s.Errors
	if maxErrors > 0 && len(shown) > maxErrors {
		shown = shown[:maxErrors]
	}
	errs := table.NewWriter()
	errs.SetOutputMirror(w)
	errs.SetStyle(table.StyleRounded)
	errs.SetTitle(fmt.Sprintf("错误明细（%d/%d）", len(shown), len(s.Errors)))
	errs.AppendHeader(table.Row{"#", "类型", "位置", "详情"})
	for i, err := range shown {
		kind, location, detail := describeError(err)
		errs.AppendRow(table.Row{i + 1, kind, location, detail})
	}
	errs.Render()
}

func describeError(err error) (kind, location, detail string) {
	var (
		readErr  *model.ReadError
		valErr   *model.ValidationError
		writeErr *model.WriteError
	)
	switch {
	case errors.As(err, &readErr):
		return "ReadError", readErr.File, fmt.Sprint(readErr.Cause)
	case errors.As(err, &valErr):
		detail = valErr.Field + ": " + valErr.Reason
		if valErr.Detail != "" {
			detail += " (" + valErr.Detail + ")"
		}
		return "ValidationError", fmt.Sprintf("%s#%d", valErr.File, valErr.Index), detail
	case errors.As(err, &writeErr):
		kind = "WriteError(permanent)"
		if writeErr.Transient {
			kind = "WriteError(transient)"
		}
		return kind, fmt.Sprintf("%s#%d %s", writeErr.File, writeErr.Index, writeErr.MatchKey), fmt.Sprint(writeErr.Cause)
	default:
		return "Error", "", err.Error()
	}
}
