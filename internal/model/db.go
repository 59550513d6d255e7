package model

import (
	"time"

	"gorm.io/datatypes"
)

// 以下模型对应生产库中已存在的表结构；生产环境不做迁移，测试里用 AutoMigrate 建表。

// Competition 赛事（联赛/杯赛），按名称唯一
type Competition struct {
	ID   uint64 `gorm:"column:competition_id;primaryKey;autoIncrement"`
	Name string `gorm:"column:name;type:varchar(256);uniqueIndex:uq_competitions_name;not null"`
}

// Arena 场地
type Arena struct {
	ID   uint64 `gorm:"column:arena_id;primaryKey;autoIncrement"`
	Name string `gorm:"column:name;type:varchar(256);uniqueIndex:uq_arenas_name;not null"`
}

// Referee 裁判
type Referee struct {
	ID   uint64 `gorm:"column:referee_id;primaryKey;autoIncrement"`
	Name string `gorm:"column:name;type:varchar(256);uniqueIndex:uq_referees_name;not null"`
}

// TrackCommissioner 赛道专员
type TrackCommissioner struct {
	ID   uint64 `gorm:"column:commissioner_id;primaryKey;autoIncrement"`
	Name string `gorm:"column:name;type:varchar(256);uniqueIndex:uq_track_commissioners_name;not null"`
}

// Rider 车手，按全名唯一
type Rider struct {
	ID   uint64 `gorm:"column:rider_id;primaryKey;autoIncrement"`
	Name string `gorm:"column:name;type:varchar(256);uniqueIndex:uq_riders_name;not null"`
}

// Team 球队：team_code（缩写）为自然键，可能暂缺，此时按 full_name 识别
type Team struct {
	ID        uint64    `gorm:"column:team_id;primaryKey;autoIncrement"`
	TeamCode  *string   `gorm:"column:team_code;type:varchar(64);uniqueIndex:uq_teams_code"`
	FullName  *string   `gorm:"column:full_name;type:varchar(256);index:idx_teams_full_name"`
	ArenaID   *uint64   `gorm:"column:arena_id;type:bigint"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// Match 比赛主表，match_key 为确定性派生的唯一键
type Match struct {
	ID                  uint64         `gorm:"column:match_id;primaryKey;autoIncrement"`
	MatchKey            string         `gorm:"column:match_key;type:varchar(64);uniqueIndex:uq_matches_key;not null"`
	MatchURL            *string        `gorm:"column:match_url;type:varchar(512)"`
	SourceSystem        *string        `gorm:"column:source_system;type:varchar(128)"`
	CompetitionID       uint64         `gorm:"column:competition_id;type:bigint;not null;index:idx_matches_competition"`
	RoundType           *string        `gorm:"column:round_type;type:varchar(128)"`
	RoundName           *string        `gorm:"column:round_name;type:varchar(128)"`
	MatchDatetime       time.Time      `gorm:"column:match_datetime;type:timestamp;not null"`
	Attendance          *int           `gorm:"column:attendance;type:int"`
	RefereeID           *uint64        `gorm:"column:referee_id;type:bigint"`
	TrackCommissionerID *uint64        `gorm:"column:track_commissioner_id;type:bigint"`
	ArenaID             *uint64        `gorm:"column:arena_id;type:bigint"`
	HomeTeamID          uint64         `gorm:"column:home_team_id;type:bigint;not null"`
	AwayTeamID          uint64         `gorm:"column:away_team_id;type:bigint;not null"`
	HomeScore           int            `gorm:"column:home_score;type:int;not null"`
	AwayScore           int            `gorm:"column:away_score;type:int;not null"`
	TelemetryRaw        datatypes.JSON `gorm:"column:telemetry_data;type:jsonb"`
	CreatedAt           time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

// MatchTeamInfo 某场比赛中球队的教练组信息
type MatchTeamInfo struct {
	ID                    uint64  `gorm:"column:match_team_info_id;primaryKey;autoIncrement"`
	MatchID               uint64  `gorm:"column:match_id;type:bigint;not null;uniqueIndex:uq_match_team_info"`
	TeamID                uint64  `gorm:"column:team_id;type:bigint;not null;uniqueIndex:uq_match_team_info"`
	MatchSpecificTeamName *string `gorm:"column:match_specific_team_name;type:varchar(256)"`
	ManagerName           *string `gorm:"column:manager_name;type:varchar(256)"`
	CoachName             *string `gorm:"column:coach_name;type:varchar(256)"`
	HeadOfTeamName        *string `gorm:"column:head_of_team_name;type:varchar(256)"`
}

// MatchRiderStat 车手单场统计
type MatchRiderStat struct {
	ID                 uint64         `gorm:"column:match_rider_stat_id;primaryKey;autoIncrement"`
	MatchID            uint64         `gorm:"column:match_id;type:bigint;not null;uniqueIndex:uq_match_rider_stats"`
	TeamID             uint64         `gorm:"column:team_id;type:bigint;not null;uniqueIndex:uq_match_rider_stats"`
	RiderID            uint64         `gorm:"column:rider_id;type:bigint;not null;uniqueIndex:uq_match_rider_stats"`
	RiderNumberInMatch *string        `gorm:"column:rider_number_in_match;type:varchar(16)"`
	TotalSumPoints     *int           `gorm:"column:total_sum_points;type:int"`
	TotalBonusPoints   *int           `gorm:"column:total_bonus_points;type:int"`
	RawScores          datatypes.JSON `gorm:"column:raw_scores_array;type:jsonb"`
}

// Heat 单场比赛中的一轮（heat），heat_sequence_in_match 为文件内顺序号
type Heat struct {
	ID                      uint64 `gorm:"column:heat_id;primaryKey;autoIncrement"`
	MatchID                 uint64 `gorm:"column:match_id;type:bigint;not null;uniqueIndex:uq_heats_sequence"`
	HeatSequenceInMatch     int    `gorm:"column:heat_sequence_in_match;type:int;not null;uniqueIndex:uq_heats_sequence"`
	HeatDisplayNumber       string `gorm:"column:heat_display_number;type:varchar(16);not null"`
	HomeHeatScore           *int   `gorm:"column:hometeam_heat_score;type:int"`
	AwayHeatScore           *int   `gorm:"column:awayteam_heat_score;type:int"`
	HomeMatchScoreAfterHeat *int   `gorm:"column:hometeam_current_match_score_after_heat;type:int"`
	AwayMatchScoreAfterHeat *int   `gorm:"column:awayteam_current_match_score_after_heat;type:int"`
}

// HeatParticipant 单轮中一名车手的成绩与遥测
type HeatParticipant struct {
	ID                   uint64   `gorm:"column:heat_participant_id;primaryKey;autoIncrement"`
	HeatID               uint64   `gorm:"column:heat_id;type:bigint;not null;uniqueIndex:uq_heat_participants"`
	MatchRiderStatID     uint64   `gorm:"column:match_rider_stat_id;type:bigint;not null;uniqueIndex:uq_heat_participants"`
	RiderName            string   `gorm:"column:rider_name;type:varchar(256);not null"`
	SubstitutedRiderName *string  `gorm:"column:substituted_rider_name;type:varchar(256)"`
	StartingGate         *string  `gorm:"column:starting_gate;type:varchar(8)"`
	HelmetColor          *string  `gorm:"column:helmet_color;type:varchar(16)"`
	ScoreRaw             string   `gorm:"column:score_raw;type:varchar(16)"`
	Score                int      `gorm:"column:score;type:int;not null"`
	WithBonus            bool     `gorm:"column:with_bonus;type:boolean;not null"`
	Accident             *string  `gorm:"column:accident;type:varchar(16)"`
	WithWarning          bool     `gorm:"column:with_warning;type:boolean;not null"`
	LapTimeSeconds       *float64 `gorm:"column:lap_time_seconds;type:numeric(8,3)"`
	DistanceMeters       *float64 `gorm:"column:distance_meters;type:numeric(8,2)"`
	VmaxKmh              *float64 `gorm:"column:vmax_kmh;type:numeric(6,2)"`
	Lap1TimeSeconds      *float64 `gorm:"column:lap1_time_seconds;type:numeric(8,3)"`
	Lap2TimeSeconds      *float64 `gorm:"column:lap2_time_seconds;type:numeric(8,3)"`
	Lap3TimeSeconds      *float64 `gorm:"column:lap3_time_seconds;type:numeric(8,3)"`
	Lap4TimeSeconds      *float64 `gorm:"column:lap4_time_seconds;type:numeric(8,3)"`
}

func (Competition) TableName() string       { return "competitions" }
func (Arena) TableName() string             { return "arenas" }
func (Referee) TableName() string           { return "referees" }
func (TrackCommissioner) TableName() string { return "track_commissioners" }
func (Rider) TableName() string             { return "riders" }
func (Team) TableName() string              { return "teams" }
func (Match) TableName() string             { return "matches" }
func (MatchTeamInfo) TableName() string     { return "match_team_info" }
func (MatchRiderStat) TableName() string    { return "match_rider_stats" }
func (Heat) TableName() string              { return "heats" }
func (HeatParticipant) TableName() string   { return "heat_participants" }

// AllTables 按依赖顺序列出全部表模型（测试建表、文档用）
func AllTables() []interface{} {
	return []interface{}{
		&Competition{},
		&Arena{},
		&Referee{},
		&TrackCommissioner{},
		&Rider{},
		&Team{},
		&Match{},
		&MatchTeamInfo{},
		&MatchRiderStat{},
		&Heat{},
		&HeatParticipant{},
	}
}
