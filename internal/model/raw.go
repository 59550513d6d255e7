package model

// RawMatchRecord 爬虫输出的一条原始比赛记录（未校验，字段类型不可信）
// Fields 由 json.Decoder.UseNumber() 解码，数字为 json.Number
type RawMatchRecord struct {
	File      string                 // 来源文件名（不含目录）
	Index     int                    // 文件内序号，从 0 开始
	Fields    map[string]interface{} // 原始字段
	NotObject bool                   // JSON 值不是对象，此时 Fields 为 nil
}

// FieldRecord 整条记录（记录本身不是对象时用于 ValidationError.Field）
const FieldRecord = "(record)"

// 爬虫写出的字段名
const (
	FieldSource            = "source"
	FieldMatchURL          = "match_url"
	FieldCompetition       = "competition"
	FieldRoundType         = "round_type"
	FieldRound             = "round"
	FieldMatchDate         = "match_date"
	FieldAttendance        = "attendance_summary"
	FieldReferee           = "referee"
	FieldTrackCommissioner = "track_commissioner"
	FieldArena             = "arena"
	FieldHomeTeamCode      = "home_team_details"
	FieldAwayTeamCode      = "away_team_details"
	FieldHomeScore         = "home_score_details"
	FieldAwayScore         = "away_score_details"
	FieldTeam1             = "team1"
	FieldTeam2             = "team2"
	FieldHeats             = "match_details"
	FieldTelemetry         = "telemetry_data"
)

// Get 取字段，不存在返回 nil
func (r *RawMatchRecord) Get(key string) interface{} {
	if r == nil || r.Fields == nil {
		return nil
	}
	return r.Fields[key]
}
