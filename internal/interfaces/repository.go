package interfaces

import (
	"context"

	"SpeedwaySync/internal/model"
)

// MatchRepository 单条比赛的幂等写入（一条记录一个事务）
type MatchRepository interface {
	// UpsertMatch 写入比赛及其依赖行，返回 matches.id
	UpsertMatch(ctx context.Context, m *model.NormalizedMatch) (uint64, error)
}

// ErrorClassifier 判断写库错误是否可重试
type ErrorClassifier func(err error) bool
