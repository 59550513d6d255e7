package service

import (
	"context"

	"SpeedwaySync/internal/model"
	"SpeedwaySync/internal/repository"

	"github.com/sirupsen/logrus"
)

// MatchQueryService 面向查询接口的比赛数据组装
type MatchQueryService struct {
	repo   repository.QueryRepository
	logger *logrus.Logger
}

// NewMatchQueryService 创建 MatchQueryService
func NewMatchQueryService(repo repository.QueryRepository, logger *logrus.Logger) *MatchQueryService {
	return &MatchQueryService{repo: repo, logger: logger}
}

// TeamSummary 球队简要信息
type TeamSummary struct {
	Code  string `json:"code,omitempty"`
	Name  string `json:"name,omitempty"`
	Score int    `json:"score"`
}

// MatchSummary 列表页单场比赛
type MatchSummary struct {
	MatchKey    string      `json:"match_key"`
	MatchURL    string      `json:"match_url,omitempty"`
	Competition string      `json:"competition"`
	RoundType   string      `json:"round_type,omitempty"`
	RoundName   string      `json:"round_name,omitempty"`
	MatchTime   int64       `json:"match_time"` // 开赛时间戳（毫秒）
	Arena       string      `json:"arena,omitempty"`
	Referee     string      `json:"referee,omitempty"`
	Attendance  *int        `json:"attendance,omitempty"`
	Home        TeamSummary `json:"home"`
	Away        TeamSummary `json:"away"`
	UpdatedAt   int64       `json:"updated_at"`
}

// MatchListResult 列表返回
type MatchListResult struct {
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
	Total    int64          `json:"total"`
	Items    []MatchSummary `json:"items"`
}

// TeamStaff 单场比赛中一方的教练组
type TeamStaff struct {
	Side          string `json:"side"` // home/away
	MatchTeamName string `json:"match_team_name,omitempty"`
	Manager       string `json:"manager,omitempty"`
	Coach         string `json:"coach,omitempty"`
	HeadOfTeam    string `json:"head_of_team,omitempty"`
}

// HeatRider 一轮中一名车手的成绩
type HeatRider struct {
	RiderName        string   `json:"rider_name"`
	SubstitutedRider string   `json:"substituted_rider,omitempty"`
	StartingGate     string   `json:"starting_gate,omitempty"`
	HelmetColor      string   `json:"helmet_color,omitempty"`
	ScoreRaw         string   `json:"score_raw"`
	Score            int      `json:"score"`
	WithBonus        bool     `json:"with_bonus"`
	Accident         string   `json:"accident,omitempty"`
	WithWarning      bool     `json:"with_warning"`
	LapTimeSeconds   *float64 `json:"lap_time_seconds,omitempty"`
	VmaxKmh          *float64 `json:"vmax_kmh,omitempty"`
}

// HeatDetail 一轮
type HeatDetail struct {
	Sequence  int         `json:"sequence"`
	Number    string      `json:"number"`
	HomeScore *int        `json:"home_score,omitempty"`
	AwayScore *int        `json:"away_score,omitempty"`
	HomeAfter *int        `json:"home_after,omitempty"`
	AwayAfter *int        `json:"away_after,omitempty"`
	Riders    []HeatRider `json:"riders"`
}

// MatchDetail 详情页：比赛 + 教练组 + 逐轮成绩
type MatchDetail struct {
	MatchSummary
	Teams []TeamStaff  `json:"teams"`
	Heats []HeatDetail `json:"heats"`
}

// ListMatches 按条件分页返回比赛列表
func (s *MatchQueryService) ListMatches(ctx context.Context, filter repository.MatchFilter, page, pageSize int) (*MatchListResult, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	rows, total, err := s.repo.ListMatches(ctx, filter, page, pageSize)
	if err != nil {
		return nil, err
	}
	items := make([]MatchSummary, 0, len(rows))
	for _, r := range rows {
		items = append(items, toMatchSummary(r))
	}
	return &MatchListResult{Page: page, PageSize: pageSize, Total: total, Items: items}, nil
}

// GetMatchDetail 按 match_key 查询详情，不存在时返回 gorm.ErrRecordNotFound
func (s *MatchQueryService) GetMatchDetail(ctx context.Context, matchKey string) (*MatchDetail, error) {
	row, err := s.repo.GetMatchByKey(ctx, matchKey)
	if err != nil {
		return nil, err
	}
	detail := &MatchDetail{MatchSummary: toMatchSummary(row), Teams: []TeamStaff{}, Heats: []HeatDetail{}}

	infos, err := s.repo.ListTeamInfo(ctx, row.MatchID)
	if err != nil {
		return nil, err
	}
	for _, info := range infos {
		side := "away"
		if info.TeamID == row.HomeTeamID {
			side = "home"
		}
		detail.Teams = append(detail.Teams, TeamStaff{
			Side:          side,
			MatchTeamName: deref(info.MatchSpecificTeamName),
			Manager:       deref(info.ManagerName),
			Coach:         deref(info.CoachName),
			HeadOfTeam:    deref(info.HeadOfTeamName),
		})
	}

	heats, err := s.repo.ListHeats(ctx, row.MatchID)
	if err != nil {
		return nil, err
	}
	heatIDs := make([]uint64, 0, len(heats))
	for _, h := range heats {
		heatIDs = append(heatIDs, h.ID)
	}
	participants, err := s.repo.ListHeatParticipants(ctx, heatIDs)
	if err != nil {
		return nil, err
	}
	byHeat := make(map[uint64][]HeatRider, len(heats))
	for _, p := range participants {
		byHeat[p.HeatID] = append(byHeat[p.HeatID], toHeatRider(p))
	}
	for _, h := range heats {
		riders := byHeat[h.ID]
		if riders == nil {
			riders = []HeatRider{}
		}
		detail.Heats = append(detail.Heats, HeatDetail{
			Sequence:  h.HeatSequenceInMatch,
			Number:    h.HeatDisplayNumber,
			HomeScore: h.HomeHeatScore,
			AwayScore: h.AwayHeatScore,
			HomeAfter: h.HomeMatchScoreAfterHeat,
			AwayAfter: h.AwayMatchScoreAfterHeat,
			Riders:    riders,
		})
	}
	return detail, nil
}

// Ping 健康检查
func (s *MatchQueryService) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

func toMatchSummary(r *repository.MatchRow) MatchSummary {
	return MatchSummary{
		MatchKey:    r.MatchKey,
		MatchURL:    deref(r.MatchURL),
		Competition: r.Competition,
		RoundType:   deref(r.RoundType),
		RoundName:   deref(r.RoundName),
		MatchTime:   r.MatchDatetime.UnixMilli(),
		Arena:       deref(r.Arena),
		Referee:     deref(r.Referee),
		Attendance:  r.Attendance,
		Home:        TeamSummary{Code: deref(r.HomeTeamCode), Name: deref(r.HomeTeamName), Score: r.HomeScore},
		Away:        TeamSummary{Code: deref(r.AwayTeamCode), Name: deref(r.AwayTeamName), Score: r.AwayScore},
		UpdatedAt:   r.UpdatedAt.UnixMilli(),
	}
}

func toHeatRider(p *model.HeatParticipant) HeatRider {
	return HeatRider{
		RiderName:        p.RiderName,
		SubstitutedRider: deref(p.SubstitutedRiderName),
		StartingGate:     deref(p.StartingGate),
		HelmetColor:      deref(p.HelmetColor),
		ScoreRaw:         p.ScoreRaw,
		Score:            p.Score,
		WithBonus:        p.WithBonus,
		Accident:         deref(p.Accident),
		WithWarning:      p.WithWarning,
		LapTimeSeconds:   p.LapTimeSeconds,
		VmaxKmh:          p.VmaxKmh,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
