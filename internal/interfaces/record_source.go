package interfaces

import (
	"context"

	"SpeedwaySync/internal/model"
)

// RecordSource 原始记录来源（爬虫输出目录），一次性、顺序读取
type RecordSource interface {
	// Next 返回下一条记录；读完返回 io.EOF；某个文件损坏时返回 *model.ReadError，调用方可继续调用 Next
	Next(ctx context.Context) (*model.RawMatchRecord, error)
	Files() []string // 本批次涉及的文件（完整路径）
	Close() error
}
