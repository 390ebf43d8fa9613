package model

import (
	"errors"
	"fmt"
)

// ErrZeroVariance 两组样本方差均为0，t 统计量无定义
var ErrZeroVariance = errors.New("both samples have zero variance")

// MalformedInputError 缺少必需列或字段无法解析
type MalformedInputError struct {
	Source string // 文件路径或数据集名称
	Column string
	Row    int // 数据行号(从1开始，不含表头)；0 表示表头问题
	Value  string
	Err    error
}

func (e *MalformedInputError) Error() string {
	if e.Row == 0 {
		return fmt.Sprintf("malformed input %s: missing column %q", e.Source, e.Column)
	}
	msg := fmt.Sprintf("malformed input %s: row %d column %q value %q", e.Source, e.Row, e.Column, e.Value)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedInputError) Unwrap() error { return e.Err }

// InsufficientDataError 某一组观测少于2个，无法进行 t 检验
type InsufficientDataError struct {
	Bad  int
	Good int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for t-test: Bad=%d Good=%d (need at least 2 in each group)", e.Bad, e.Good)
}

// StageError 标记失败的流水线阶段
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
