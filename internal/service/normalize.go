package service

import (
	"encoding/json"
	"strings"
	"time"

	"SpeedwaySync/internal/model"

	"github.com/sirupsen/logrus"
)

// match_date 可接受的格式（爬虫页面为 "DD.MM.YYYY HH:MM"，个别页面只有日期）
var matchDateLayouts = []string{"02.01.2006 15:04", "02.01.2006"}

// Normalizer 校验原始记录并转换为 NormalizedMatch。
// 必填字段缺失或类型不对返回 *model.ValidationError；可选字段形状不对只告警并丢弃。
type Normalizer struct {
	loc    *time.Location
	logger *logrus.Logger
}

func NewNormalizer(loc *time.Location, logger *logrus.Logger) *Normalizer {
	if loc == nil {
		loc = time.UTC
	}
	return &Normalizer{loc: loc, logger: logger}
}

// Normalize 校验 + 转换 + 派生 match_key
func (n *Normalizer) Normalize(raw *model.RawMatchRecord) (*model.NormalizedMatch, error) {
	invalid := func(field, reason, detail string) error {
		return &model.ValidationError{File: raw.File, Index: raw.Index, Field: field, Reason: reason, Detail: detail}
	}

	if raw.NotObject {
		return nil, invalid(model.FieldRecord, model.ReasonWrongType, "记录不是 JSON 对象")
	}

	// 1. 赛事
	competition, err := n.requiredString(raw, model.FieldCompetition)
	if err != nil {
		return nil, err
	}

	// 2. 比赛时间
	dateStr, err := n.requiredString(raw, model.FieldMatchDate)
	if err != nil {
		return nil, err
	}
	matchTime, ok := n.parseMatchDate(dateStr)
	if !ok {
		return nil, invalid(model.FieldMatchDate, model.ReasonInvalidFormat, dateStr)
	}

	// 3. 主客队（缩写优先，其次 team1/team2.team_name）
	homeLineup := n.lineup(raw, model.FieldTeam1)
	awayLineup := n.lineup(raw, model.FieldTeam2)
	home, err := n.teamRef(raw, model.FieldHomeTeamCode, homeLineup)
	if err != nil {
		return nil, err
	}
	away, err := n.teamRef(raw, model.FieldAwayTeamCode, awayLineup)
	if err != nil {
		return nil, err
	}

	// 4. 比分
	homeScore, err := n.requiredCount(raw, model.FieldHomeScore)
	if err != nil {
		return nil, err
	}
	awayScore, err := n.requiredCount(raw, model.FieldAwayScore)
	if err != nil {
		return nil, err
	}

	m := &model.NormalizedMatch{
		MatchKey:          DeriveMatchKey(competition, matchTime, home.Key(), away.Key()),
		File:              raw.File,
		Index:             raw.Index,
		Source:            n.optionalString(raw, model.FieldSource),
		MatchURL:          n.optionalString(raw, model.FieldMatchURL),
		Competition:       competition,
		RoundType:         n.optionalString(raw, model.FieldRoundType),
		RoundName:         n.optionalString(raw, model.FieldRound),
		MatchTime:         matchTime,
		Attendance:        optionalCount(raw.Get(model.FieldAttendance)),
		Referee:           n.optionalString(raw, model.FieldReferee),
		TrackCommissioner: n.optionalString(raw, model.FieldTrackCommissioner),
		Arena:             n.optionalString(raw, model.FieldArena),
		Home:              home,
		Away:              away,
		HomeLineup:        homeLineup,
		AwayLineup:        awayLineup,
		HomeScore:         homeScore,
		AwayScore:         awayScore,
	}

	telemetry := n.telemetry(raw, m)
	m.Heats = n.heats(raw, telemetry)
	return m, nil
}

func (n *Normalizer) parseMatchDate(s string) (time.Time, bool) {
	for _, layout := range matchDateLayouts {
		if t, err := time.ParseInLocation(layout, s, n.loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func (n *Normalizer) requiredString(raw *model.RawMatchRecord, field string) (string, error) {
	s, ok := stringValue(raw.Get(field))
	if !ok {
		return "", &model.ValidationError{File: raw.File, Index: raw.Index, Field: field, Reason: model.ReasonWrongType}
	}
	if s == "" {
		return "", &model.ValidationError{File: raw.File, Index: raw.Index, Field: field, Reason: model.ReasonMissing}
	}
	return s, nil
}

func (n *Normalizer) requiredCount(raw *model.RawMatchRecord, field string) (int, error) {
	v, present, typeOK, valid := countValue(raw.Get(field))
	switch {
	case !typeOK:
		return 0, &model.ValidationError{File: raw.File, Index: raw.Index, Field: field, Reason: model.ReasonWrongType}
	case !present:
		return 0, &model.ValidationError{File: raw.File, Index: raw.Index, Field: field, Reason: model.ReasonMissing}
	case !valid:
		s, _ := stringValue(raw.Get(field))
		return 0, &model.ValidationError{File: raw.File, Index: raw.Index, Field: field, Reason: model.ReasonInvalidFormat, Detail: s}
	}
	return v, nil
}

func (n *Normalizer) teamRef(raw *model.RawMatchRecord, codeField string, lineup *model.TeamLineup) (model.TeamRef, error) {
	code, ok := stringValue(raw.Get(codeField))
	if !ok {
		return model.TeamRef{}, &model.ValidationError{File: raw.File, Index: raw.Index, Field: codeField, Reason: model.ReasonWrongType}
	}
	ref := model.TeamRef{Code: code}
	if lineup != nil {
		ref.Name = lineup.MatchTeamName
	}
	if ref.Code == "" && ref.Name == "" {
		return ref, &model.ValidationError{File: raw.File, Index: raw.Index, Field: codeField, Reason: model.ReasonMissing}
	}
	return ref, nil
}

func (n *Normalizer) optionalString(raw *model.RawMatchRecord, field string) string {
	s, ok := stringValue(raw.Get(field))
	if !ok {
		n.warnDropped(raw, field)
		return ""
	}
	return s
}

func (n *Normalizer) warnDropped(raw *model.RawMatchRecord, field string) {
	n.logger.WithFields(logrus.Fields{
		"file":  raw.File,
		"index": raw.Index,
		"field": field,
	}).Warn("可选字段格式不符，已忽略")
}

// lineup team1/team2：对象才解析，"Not available" 等其他形态忽略
func (n *Normalizer) lineup(raw *model.RawMatchRecord, field string) *model.TeamLineup {
	v := raw.Get(field)
	if v == nil {
		return nil
	}
	obj, ok := objectValue(v)
	if !ok {
		n.warnDropped(raw, field)
		return nil
	}

	l := &model.TeamLineup{
		MatchTeamName: str(obj, "team_name"),
		Manager:       str(obj, "manager"),
		Coach:         str(obj, "coach"),
		HeadOfTeam:    str(obj, "head_of_team"),
	}

	riders, ok := arrayValue(obj["riders"])
	if !ok {
		if obj["riders"] != nil {
			n.warnDropped(raw, field+".riders")
		}
		return l
	}
	for _, item := range riders {
		r, ok := objectValue(item)
		if !ok {
			n.warnDropped(raw, field+".riders[]")
			continue
		}
		name := str(r, "name")
		if name == "" {
			continue
		}
		line := model.RiderLine{
			Number: strings.TrimSuffix(str(r, "number"), "."),
			Name:   name,
			Sum:    optionalCount(r["sum"]),
			Bonus:  optionalCount(r["bonus"]),
		}
		scores, ok := arrayValue(r["scores"])
		if !ok && r["scores"] != nil {
			n.warnDropped(raw, field+".riders[].scores")
		}
		line.Scores = make([]string, 0, len(scores))
		for _, s := range scores {
			v, _ := stringValue(s)
			line.Scores = append(line.Scores, v)
		}
		line.RawScores, _ = json.Marshal(line.Scores)
		l.Riders = append(l.Riders, line)
	}
	return l
}

// heats match_details：序号按出现顺序从 1 开始，缺少 heat_number 的轮次跳过（序号仍占位）
func (n *Normalizer) heats(raw *model.RawMatchRecord, telemetry telemetryIndex) []model.NormalizedHeat {
	v := raw.Get(model.FieldHeats)
	if v == nil {
		return nil
	}
	items, ok := arrayValue(v)
	if !ok {
		n.warnDropped(raw, model.FieldHeats)
		return nil
	}

	var heats []model.NormalizedHeat
	for i, item := range items {
		h, ok := objectValue(item)
		if !ok {
			n.warnDropped(raw, model.FieldHeats+"[]")
			continue
		}
		display := str(h, "heat_number")
		if display == "" {
			n.logger.WithFields(logrus.Fields{
				"file":  raw.File,
				"index": raw.Index,
				"heat":  i + 1,
			}).Warn("轮次缺少 heat_number，跳过")
			continue
		}
		heat := model.NormalizedHeat{
			Sequence:                i + 1,
			DisplayNumber:           display,
			HomeHeatScore:           optionalCount(h["hometeam_heat_score"]),
			AwayHeatScore:           optionalCount(h["awayteam_heat_score"]),
			HomeMatchScoreAfterHeat: optionalCount(h["hometeam_current_match_score"]),
			AwayMatchScoreAfterHeat: optionalCount(h["awayteam_current_match_score"]),
		}

		riders, _ := arrayValue(h["riders"])
		for _, ri := range riders {
			p, ok := objectValue(ri)
			if !ok {
				continue
			}
			name := str(p, "rider")
			if name == "" {
				continue
			}
			heat.Riders = append(heat.Riders, model.NormalizedHeatRider{
				StartingGate:     str(p, "starting_field"),
				HelmetColor:      str(p, "helmet_color"),
				RiderName:        name,
				SubstitutedRider: str(p, "substituted_rider"),
				Score:            ParseRiderScore(str(p, "rider_score")),
				WithWarning:      str(p, "warning") != "",
				Telemetry:        telemetry.lookup(name, display),
			})
		}
		heats = append(heats, heat)
	}
	return heats
}
