package model

import (
	"errors"
	"fmt"
)

// ErrEmptyBatch 本次运行没有读到任何记录（提示性，不算失败）
var ErrEmptyBatch = errors.New("本批次没有任何比赛记录")

// 校验失败原因
const (
	ReasonMissing       = "missing"
	ReasonWrongType     = "wrong type"
	ReasonInvalidFormat = "invalid format"
)

// ReadError 源文件不可读或无法解析；该文件的记录全部跳过，其余文件继续
type ReadError struct {
	File  string
	Cause error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("读取文件 %s 失败: %v", e.File, e.Cause)
}

func (e *ReadError) Unwrap() error { return e.Cause }

// ValidationError 记录结构不合法，跳过该记录
type ValidationError struct {
	File   string
	Index  int
	Field  string
	Reason string
	Detail string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("记录 %s#%d 字段 %s 校验失败: %s", e.File, e.Index, e.Field, e.Reason)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

// WriteError 写库失败；Transient 表示已按瞬时错误重试过
type WriteError struct {
	MatchKey  string
	File      string
	Index     int
	Attempts  int
	Transient bool
	Cause     error
}

func (e *WriteError) Error() string {
	kind := "永久"
	if e.Transient {
		kind = "瞬时"
	}
	return fmt.Sprintf("比赛 %s (%s#%d) 写入失败[%s错误, 尝试 %d 次]: %v",
		e.MatchKey, e.File, e.Index, kind, e.Attempts, e.Cause)
}

func (e *WriteError) Unwrap() error { return e.Cause }
