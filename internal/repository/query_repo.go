package repository

import (
	"context"
	"strings"
	"time"

	"SpeedwaySync/internal/model"

	"gorm.io/gorm"
)

// MatchFilter 比赛列表筛选条件
type MatchFilter struct {
	Competition string     // 赛事名称（精确匹配）
	Team        string     // 球队缩写或全名，主客队任一方匹配即可（不区分大小写）
	FromTime    *time.Time // 比赛时间起
	ToTime      *time.Time // 比赛时间止
}

// MatchRow 比赛列表行（已关联赛事、球队、场地、裁判名称）
type MatchRow struct {
	MatchID       uint64
	MatchKey      string
	MatchURL      *string
	Competition   string
	RoundType     *string
	RoundName     *string
	MatchDatetime time.Time
	Attendance    *int
	Arena         *string
	Referee       *string
	HomeTeamID    uint64
	HomeTeamCode  *string
	HomeTeamName  *string
	AwayTeamID    uint64
	AwayTeamCode  *string
	AwayTeamName  *string
	HomeScore     int
	AwayScore     int
	UpdatedAt     time.Time
}

// QueryRepository 只读查询仓储，供 HTTP 接口使用
type QueryRepository interface {
	// ListMatches 按条件分页查询，按比赛时间倒序
	ListMatches(ctx context.Context, filter MatchFilter, page, pageSize int) ([]*MatchRow, int64, error)
	// GetMatchByKey 通过 match_key 查询
	GetMatchByKey(ctx context.Context, matchKey string) (*MatchRow, error)
	// ListHeats 某场比赛的全部轮次（按顺序）
	ListHeats(ctx context.Context, matchID uint64) ([]*model.Heat, error)
	// ListHeatParticipants 批量查询轮次成绩
	ListHeatParticipants(ctx context.Context, heatIDs []uint64) ([]*model.HeatParticipant, error)
	// ListTeamInfo 某场比赛双方的教练组信息
	ListTeamInfo(ctx context.Context, matchID uint64) ([]*model.MatchTeamInfo, error)
	// Ping 数据库连通性
	Ping(ctx context.Context) error
}

type queryRepository struct {
	db *gorm.DB
}

func NewQueryRepository(db *gorm.DB) QueryRepository {
	return &queryRepository{db: db}
}

const matchRowColumns = `m.match_id AS match_id, m.match_key AS match_key, m.match_url AS match_url,
	c.name AS competition, m.round_type AS round_type, m.round_name AS round_name,
	m.match_datetime AS match_datetime, m.attendance AS attendance,
	a.name AS arena, rf.name AS referee,
	m.home_team_id AS home_team_id, home_t.team_code AS home_team_code, home_t.full_name AS home_team_name,
	m.away_team_id AS away_team_id, away_t.team_code AS away_team_code, away_t.full_name AS away_team_name,
	m.home_score AS home_score, m.away_score AS away_score, m.updated_at AS updated_at`

// matchQuery 每次返回新的查询链，Count 与 Scan 互不影响
func (r *queryRepository) matchQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Table("matches AS m").
		Joins("JOIN competitions c ON c.competition_id = m.competition_id").
		Joins("JOIN teams home_t ON home_t.team_id = m.home_team_id").
		Joins("JOIN teams away_t ON away_t.team_id = m.away_team_id").
		Joins("LEFT JOIN arenas a ON a.arena_id = m.arena_id").
		Joins("LEFT JOIN referees rf ON rf.referee_id = m.referee_id")
}

func applyMatchFilter(db *gorm.DB, filter MatchFilter) *gorm.DB {
	if filter.Competition != "" {
		db = db.Where("c.name = ?", filter.Competition)
	}
	if team := strings.ToLower(strings.TrimSpace(filter.Team)); team != "" {
		db = db.Where(`(LOWER(home_t.team_code) = ? OR LOWER(home_t.full_name) = ?
			OR LOWER(away_t.team_code) = ? OR LOWER(away_t.full_name) = ?)`, team, team, team, team)
	}
	if filter.FromTime != nil {
		db = db.Where("m.match_datetime >= ?", *filter.FromTime)
	}
	if filter.ToTime != nil {
		db = db.Where("m.match_datetime <= ?", *filter.ToTime)
	}
	return db
}

func (r *queryRepository) ListMatches(ctx context.Context, filter MatchFilter, page, pageSize int) ([]*MatchRow, int64, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	var total int64
	if err := applyMatchFilter(r.matchQuery(ctx), filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var list []*MatchRow
	if err := applyMatchFilter(r.matchQuery(ctx), filter).
		Select(matchRowColumns).
		Order("m.match_datetime DESC, m.match_id DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Scan(&list).Error; err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (r *queryRepository) GetMatchByKey(ctx context.Context, matchKey string) (*MatchRow, error) {
	var rows []*MatchRow
	if err := r.matchQuery(ctx).Select(matchRowColumns).
		Where("m.match_key = ?", matchKey).Limit(1).Scan(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return rows[0], nil
}

func (r *queryRepository) ListHeats(ctx context.Context, matchID uint64) ([]*model.Heat, error) {
	var heats []*model.Heat
	if err := r.db.WithContext(ctx).Where("match_id = ?", matchID).
		Order("heat_sequence_in_match ASC").Find(&heats).Error; err != nil {
		return nil, err
	}
	return heats, nil
}

func (r *queryRepository) ListHeatParticipants(ctx context.Context, heatIDs []uint64) ([]*model.HeatParticipant, error) {
	if len(heatIDs) == 0 {
		return []*model.HeatParticipant{}, nil
	}
	var list []*model.HeatParticipant
	if err := r.db.WithContext(ctx).Where("heat_id IN ?", heatIDs).
		Order("heat_id ASC, starting_gate ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *queryRepository) ListTeamInfo(ctx context.Context, matchID uint64) ([]*model.MatchTeamInfo, error) {
	var list []*model.MatchTeamInfo
	if err := r.db.WithContext(ctx).Where("match_id = ?", matchID).Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *queryRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
