package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"SpeedwaySync/internal/interfaces"
	"SpeedwaySync/internal/model"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MatchRepository 比赛写入仓储：一条记录（比赛 + 查找表 + 球队 + 明细）一个事务
type MatchRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewMatchRepository(db *gorm.DB, logger *logrus.Logger) interfaces.MatchRepository {
	return &MatchRepository{db: db, logger: logger}
}

// matches 冲突时整行覆盖的列（created_at 保留首次写入时间）
var matchUpdateColumns = []string{
	"match_url", "source_system", "competition_id", "round_type", "round_name",
	"match_datetime", "attendance", "referee_id", "track_commissioner_id", "arena_id",
	"home_team_id", "away_team_id", "home_score", "away_score", "telemetry_data", "updated_at",
}

// UpsertMatch 按 match_key 插入或更新比赛（last-write-wins），依赖行先于比赛写入
func (r *MatchRepository) UpsertMatch(ctx context.Context, m *model.NormalizedMatch) (matchID uint64, err error) {
	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return 0, fmt.Errorf("开启事务失败: %w", tx.Error)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			matchID, err = 0, fmt.Errorf("写入比赛 %s 时发生panic: %v", m.MatchKey, p)
		}
	}()

	matchID, err = r.upsertInTx(tx, m)
	if err != nil {
		tx.Rollback()
		return 0, err
	}

	if err := tx.Commit().Error; err != nil {
		return 0, fmt.Errorf("提交事务失败: %w", err)
	}
	return matchID, nil
}

func (r *MatchRepository) upsertInTx(tx *gorm.DB, m *model.NormalizedMatch) (uint64, error) {
	// 1. 查找表
	competitionID, err := ensureNamed(tx, &model.Competition{}, "competition_id", m.Competition)
	if err != nil {
		return 0, fmt.Errorf("保存赛事失败: %w, name: %s", err, m.Competition)
	}
	arenaID, err := ensureNamed(tx, &model.Arena{}, "arena_id", m.Arena)
	if err != nil {
		return 0, fmt.Errorf("保存场地失败: %w, name: %s", err, m.Arena)
	}
	refereeID, err := ensureNamed(tx, &model.Referee{}, "referee_id", m.Referee)
	if err != nil {
		return 0, fmt.Errorf("保存裁判失败: %w, name: %s", err, m.Referee)
	}
	commissionerID, err := ensureNamed(tx, &model.TrackCommissioner{}, "commissioner_id", m.TrackCommissioner)
	if err != nil {
		return 0, fmt.Errorf("保存赛道专员失败: %w, name: %s", err, m.TrackCommissioner)
	}

	// 2. 球队（场地只归属主队）
	homeTeamID, err := resolveTeam(tx, m.Home, arenaID)
	if err != nil {
		return 0, fmt.Errorf("保存主队失败: %w, team: %s", err, m.Home.Key())
	}
	awayTeamID, err := resolveTeam(tx, m.Away, nil)
	if err != nil {
		return 0, fmt.Errorf("保存客队失败: %w, team: %s", err, m.Away.Key())
	}

	// 3. 比赛
	row := &model.Match{
		MatchKey:            m.MatchKey,
		MatchURL:            nullable(m.MatchURL),
		SourceSystem:        nullable(m.Source),
		CompetitionID:       *competitionID,
		RoundType:           nullable(m.RoundType),
		RoundName:           nullable(m.RoundName),
		MatchDatetime:       m.MatchTime,
		Attendance:          m.Attendance,
		RefereeID:           refereeID,
		TrackCommissionerID: commissionerID,
		ArenaID:             arenaID,
		HomeTeamID:          homeTeamID,
		AwayTeamID:          awayTeamID,
		HomeScore:           m.HomeScore,
		AwayScore:           m.AwayScore,
		TelemetryRaw:        datatypes.JSON(m.TelemetryRaw),
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "match_key"}},
		DoUpdates: clause.AssignmentColumns(matchUpdateColumns),
	}).Create(row).Error; err != nil {
		return 0, fmt.Errorf("保存比赛失败: %w, match_key: %s", err, m.MatchKey)
	}
	// 冲突更新时驱动回填的自增 ID 不可靠，统一按唯一键回查
	matchID, err := pluckID(tx.Model(&model.Match{}).Where("match_key = ?", m.MatchKey), "match_id")
	if err != nil {
		return 0, fmt.Errorf("查询比赛ID失败: %w, match_key: %s", err, m.MatchKey)
	}

	// 4. 比赛明细
	if err := upsertTeamInfo(tx, matchID, homeTeamID, m.HomeLineup); err != nil {
		return 0, err
	}
	if err := upsertTeamInfo(tx, matchID, awayTeamID, m.AwayLineup); err != nil {
		return 0, err
	}

	statIDs := make(map[string]uint64)
	if err := upsertRiderStats(tx, matchID, homeTeamID, m.HomeLineup, statIDs); err != nil {
		return 0, err
	}
	if err := upsertRiderStats(tx, matchID, awayTeamID, m.AwayLineup, statIDs); err != nil {
		return 0, err
	}

	for i := range m.Heats {
		if err := r.upsertHeat(tx, m, matchID, &m.Heats[i], statIDs); err != nil {
			return 0, err
		}
	}
	return matchID, nil
}

// ensureNamed 按唯一 name 取查找表 ID，不存在则插入；name 为空返回 nil
func ensureNamed(tx *gorm.DB, table interface{}, idColumn, name string) (*uint64, error) {
	if name == "" {
		return nil, nil
	}
	if err := tx.Model(table).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(map[string]interface{}{"name": name}).Error; err != nil {
		return nil, err
	}
	id, err := pluckID(tx.Model(table).Where("name = ?", name), idColumn)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// resolveTeam 先按缩写找，再按全名找，找到则用 COALESCE 补齐缺失字段；都找不到则新建
func resolveTeam(tx *gorm.DB, ref model.TeamRef, arenaID *uint64) (uint64, error) {
	if ref.Code != "" {
		var team model.Team
		err := tx.Where("team_code = ?", ref.Code).Take(&team).Error
		if err == nil {
			return team.ID, tx.Model(&model.Team{}).Where("team_id = ?", team.ID).Updates(map[string]interface{}{
				"full_name": gorm.Expr("COALESCE(full_name, ?)", nullable(ref.Name)),
				"arena_id":  gorm.Expr("COALESCE(arena_id, ?)", arenaID),
			}).Error
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, err
		}
	}

	if ref.Name != "" {
		var team model.Team
		err := tx.Where("full_name = ?", ref.Name).Order("team_id").Take(&team).Error
		if err == nil {
			return team.ID, tx.Model(&model.Team{}).Where("team_id = ?", team.ID).Updates(map[string]interface{}{
				"team_code": gorm.Expr("COALESCE(team_code, ?)", nullable(ref.Code)),
				"arena_id":  gorm.Expr("COALESCE(arena_id, ?)", arenaID),
			}).Error
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, err
		}
	}

	team := &model.Team{
		TeamCode: nullable(ref.Code),
		FullName: nullable(ref.Name),
		ArenaID:  arenaID,
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "team_code"}},
		DoNothing: true,
	}).Create(team).Error; err != nil {
		return 0, err
	}
	if ref.Code != "" {
		return pluckID(tx.Model(&model.Team{}).Where("team_code = ?", ref.Code), "team_id")
	}
	return team.ID, nil
}

func upsertTeamInfo(tx *gorm.DB, matchID, teamID uint64, l *model.TeamLineup) error {
	if l == nil {
		return nil
	}
	row := &model.MatchTeamInfo{
		MatchID:               matchID,
		TeamID:                teamID,
		MatchSpecificTeamName: nullable(l.MatchTeamName),
		ManagerName:           nullable(l.Manager),
		CoachName:             nullable(l.Coach),
		HeadOfTeamName:        nullable(l.HeadOfTeam),
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "match_id"}, {Name: "team_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"match_specific_team_name", "manager_name", "coach_name", "head_of_team_name"}),
	}).Create(row).Error; err != nil {
		return fmt.Errorf("保存球队比赛信息失败: %w, team_id: %d", err, teamID)
	}
	return nil
}

// upsertRiderStats 写入车手单场统计，并记录 车手名 → match_rider_stat_id 供轮次明细使用
func upsertRiderStats(tx *gorm.DB, matchID, teamID uint64, l *model.TeamLineup, statIDs map[string]uint64) error {
	if l == nil {
		return nil
	}
	for _, rider := range l.Riders {
		riderID, err := ensureNamed(tx, &model.Rider{}, "rider_id", rider.Name)
		if err != nil {
			return fmt.Errorf("保存车手失败: %w, name: %s", err, rider.Name)
		}
		row := &model.MatchRiderStat{
			MatchID:            matchID,
			TeamID:             teamID,
			RiderID:            *riderID,
			RiderNumberInMatch: nullable(rider.Number),
			TotalSumPoints:     rider.Sum,
			TotalBonusPoints:   rider.Bonus,
			RawScores:          datatypes.JSON(rider.RawScores),
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "match_id"}, {Name: "team_id"}, {Name: "rider_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"rider_number_in_match", "total_sum_points", "total_bonus_points", "raw_scores_array"}),
		}).Create(row).Error; err != nil {
			return fmt.Errorf("保存车手统计失败: %w, rider: %s", err, rider.Name)
		}
		statID, err := pluckID(tx.Model(&model.MatchRiderStat{}).
			Where("match_id = ? AND team_id = ? AND rider_id = ?", matchID, teamID, *riderID), "match_rider_stat_id")
		if err != nil {
			return fmt.Errorf("查询车手统计ID失败: %w, rider: %s", err, rider.Name)
		}
		statIDs[riderKey(rider.Name)] = statID
	}
	return nil
}

func (r *MatchRepository) upsertHeat(tx *gorm.DB, m *model.NormalizedMatch, matchID uint64, h *model.NormalizedHeat, statIDs map[string]uint64) error {
	row := &model.Heat{
		MatchID:                 matchID,
		HeatSequenceInMatch:     h.Sequence,
		HeatDisplayNumber:       h.DisplayNumber,
		HomeHeatScore:           h.HomeHeatScore,
		AwayHeatScore:           h.AwayHeatScore,
		HomeMatchScoreAfterHeat: h.HomeMatchScoreAfterHeat,
		AwayMatchScoreAfterHeat: h.AwayMatchScoreAfterHeat,
	}
	if err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "match_id"}, {Name: "heat_sequence_in_match"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"heat_display_number", "hometeam_heat_score", "awayteam_heat_score",
			"hometeam_current_match_score_after_heat", "awayteam_current_match_score_after_heat",
		}),
	}).Create(row).Error; err != nil {
		return fmt.Errorf("保存轮次失败: %w, heat: %s", err, h.DisplayNumber)
	}
	heatID, err := pluckID(tx.Model(&model.Heat{}).
		Where("match_id = ? AND heat_sequence_in_match = ?", matchID, h.Sequence), "heat_id")
	if err != nil {
		return fmt.Errorf("查询轮次ID失败: %w, heat: %s", err, h.DisplayNumber)
	}

	for _, p := range h.Riders {
		statID, ok := statIDs[riderKey(p.RiderName)]
		if !ok {
			r.logger.WithFields(logrus.Fields{
				"match_key": m.MatchKey,
				"heat":      h.DisplayNumber,
				"rider":     p.RiderName,
			}).Warn("车手不在阵容中，跳过该轮次成绩")
			continue
		}
		row := &model.HeatParticipant{
			HeatID:               heatID,
			MatchRiderStatID:     statID,
			RiderName:            p.RiderName,
			SubstitutedRiderName: nullable(p.SubstitutedRider),
			StartingGate:         nullable(p.StartingGate),
			HelmetColor:          nullable(p.HelmetColor),
			ScoreRaw:             p.Score.Raw,
			Score:                p.Score.Points,
			WithBonus:            p.Score.WithBonus,
			Accident:             nullable(p.Score.Accident),
			WithWarning:          p.WithWarning,
		}
		if t := p.Telemetry; t != nil {
			row.LapTimeSeconds = t.LapTimeSeconds
			row.DistanceMeters = t.DistanceMeters
			row.VmaxKmh = t.VmaxKmh
			row.Lap1TimeSeconds = t.Lap1TimeSeconds
			row.Lap2TimeSeconds = t.Lap2TimeSeconds
			row.Lap3TimeSeconds = t.Lap3TimeSeconds
			row.Lap4TimeSeconds = t.Lap4TimeSeconds
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "heat_id"}, {Name: "match_rider_stat_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"rider_name", "substituted_rider_name", "starting_gate", "helmet_color",
				"score_raw", "score", "with_bonus", "accident", "with_warning",
				"lap_time_seconds", "distance_meters", "vmax_kmh",
				"lap1_time_seconds", "lap2_time_seconds", "lap3_time_seconds", "lap4_time_seconds",
			}),
		}).Create(row).Error; err != nil {
			return fmt.Errorf("保存轮次成绩失败: %w, heat: %s, rider: %s", err, h.DisplayNumber, p.RiderName)
		}
	}
	return nil
}

// pluckID 取单个 ID 列，找不到返回 gorm.ErrRecordNotFound
func pluckID(q *gorm.DB, column string) (uint64, error) {
	var ids []uint64
	if err := q.Limit(1).Pluck(column, &ids).Error; err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, gorm.ErrRecordNotFound
	}
	return ids[0], nil
}

func riderKey(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
