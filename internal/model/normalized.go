package model

import "time"

// TeamRef 球队自然键：优先 Code，缺失时用 Name
type TeamRef struct {
	Code string
	Name string
}

// Key 返回用于派生比赛 ID 的球队标识
func (t TeamRef) Key() string {
	if t.Code != "" {
		return t.Code
	}
	return t.Name
}

// RiderLine 阵容中一名车手的整场数据
type RiderLine struct {
	Number    string
	Name      string
	Scores    []string // 每轮原始得分，如 "3", "2'", "w", "-"
	Sum       *int
	Bonus     *int
	RawScores []byte // scores 数组原样 JSON
}

// TeamLineup 单场比赛中一方的教练组与阵容（team1/team2 可能缺失）
type TeamLineup struct {
	MatchTeamName string
	Manager       string
	Coach         string
	HeadOfTeam    string
	Riders        []RiderLine
}

// LapTelemetry 一名车手在某一轮的遥测数据（已转为数值）
type LapTelemetry struct {
	LapTimeSeconds  *float64
	DistanceMeters  *float64
	VmaxKmh         *float64
	Lap1TimeSeconds *float64
	Lap2TimeSeconds *float64
	Lap3TimeSeconds *float64
	Lap4TimeSeconds *float64
}

// RiderScore 解析后的单轮得分
type RiderScore struct {
	Raw       string
	Points    int
	WithBonus bool
	Accident  string // 空表示无事故代码
}

// NormalizedHeatRider 一轮中一名车手
type NormalizedHeatRider struct {
	StartingGate     string
	HelmetColor      string
	RiderName        string
	SubstitutedRider string
	Score            RiderScore
	WithWarning      bool
	Telemetry        *LapTelemetry
}

// NormalizedHeat 一轮（heat）
type NormalizedHeat struct {
	Sequence                int    // 文件内顺序，从 1 开始
	DisplayNumber           string // 页面展示的轮次号，如 "1." 或 "15"
	HomeHeatScore           *int
	AwayHeatScore           *int
	HomeMatchScoreAfterHeat *int
	AwayMatchScoreAfterHeat *int
	Riders                  []NormalizedHeatRider
}

// NormalizedMatch 校验通过后的强类型比赛，写库只依赖它
type NormalizedMatch struct {
	MatchKey          string // 确定性派生的比赛 ID
	File              string
	Index             int
	Source            string
	MatchURL          string
	Competition       string
	RoundType         string
	RoundName         string
	MatchTime         time.Time
	Attendance        *int
	Referee           string
	TrackCommissioner string
	Arena             string
	Home              TeamRef
	Away              TeamRef
	HomeLineup        *TeamLineup
	AwayLineup        *TeamLineup
	HomeScore         int
	AwayScore         int
	Heats             []NormalizedHeat
	TelemetryRaw      []byte // telemetry_data 原样 JSON（可能是错误字符串）
}
