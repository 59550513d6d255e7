package service

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"SpeedwaySync/internal/model"
	"SpeedwaySync/internal/testutil"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cest = time.FixedZone("CEST", 2*3600)

func intPtr(v int) *int { return &v }

func f64(v float64) *float64 { return &v }

func newTestNormalizer() *Normalizer {
	return NewNormalizer(cest, testutil.NewLogger())
}

func TestNormalize_FullRecord(t *testing.T) {
	raw := decodeRecord(t, "round1.json", 0, matchJSON("52", "38"))

	m, err := newTestNormalizer().Normalize(raw)
	require.NoError(t, err)

	assert.Equal(t, "round1.json", m.File)
	assert.Equal(t, "PGE Ekstraliga", m.Competition)
	assert.Equal(t, "Runda zasadnicza", m.RoundType)
	assert.Equal(t, "Runda 1", m.RoundName)
	assert.True(t, m.MatchTime.Equal(time.Date(2024, 4, 7, 16, 30, 0, 0, cest)), m.MatchTime)
	require.NotNil(t, m.Attendance)
	assert.Equal(t, 12000, *m.Attendance)
	assert.Equal(t, model.TeamRef{Code: "WRO", Name: "Betard Sparta Wrocław"}, m.Home)
	assert.Equal(t, model.TeamRef{Code: "LUB", Name: "Orlen Oil Motor Lublin"}, m.Away)
	assert.Equal(t, 52, m.HomeScore)
	assert.Equal(t, 38, m.AwayScore)
	assert.Equal(t, DeriveMatchKey("PGE Ekstraliga", m.MatchTime, "WRO", "LUB"), m.MatchKey)

	require.NotNil(t, m.HomeLineup)
	assert.Equal(t, "Andrzej Rusko", m.HomeLineup.Manager)
	require.Len(t, m.HomeLineup.Riders, 2)
	woffinden := m.HomeLineup.Riders[0]
	assert.Equal(t, "9", woffinden.Number)
	assert.Equal(t, []string{"3", "2'"}, woffinden.Scores)
	assert.Equal(t, intPtr(5), woffinden.Sum)
	assert.Equal(t, intPtr(1), woffinden.Bonus)
	assert.JSONEq(t, `["3","2'"]`, string(woffinden.RawScores))
	assert.Nil(t, m.HomeLineup.Riders[1].Bonus, "空字符串的 bonus 视为缺失")

	want := []model.NormalizedHeat{
		{
			Sequence:                1,
			DisplayNumber:           "1.",
			HomeHeatScore:           intPtr(5),
			AwayHeatScore:           intPtr(1),
			HomeMatchScoreAfterHeat: intPtr(5),
			AwayMatchScoreAfterHeat: intPtr(1),
			Riders: []model.NormalizedHeatRider{
				{StartingGate: "A", HelmetColor: "red", RiderName: "Tai Woffinden", Score: model.RiderScore{Raw: "3", Points: 3},
					Telemetry: &model.LapTelemetry{LapTimeSeconds: f64(61.843), DistanceMeters: f64(245), VmaxKmh: f64(78.2), Lap1TimeSeconds: f64(15.2)}},
				{StartingGate: "B", HelmetColor: "blue", RiderName: "Bartosz Zmarzlik", Score: model.RiderScore{Raw: "1", Points: 1}},
				{StartingGate: "C", HelmetColor: "white", RiderName: "Maciej Janowski", Score: model.RiderScore{Raw: "2", Points: 2}},
				{StartingGate: "D", HelmetColor: "yellow", RiderName: "Dominik Kubera", Score: model.RiderScore{Raw: "0"}},
			},
		},
		{
			// 第二轮缺少 heat_number 被跳过，但序号仍然占位
			Sequence:      3,
			DisplayNumber: "3.",
			HomeHeatScore: intPtr(2),
			AwayHeatScore: intPtr(0),
			Riders: []model.NormalizedHeatRider{
				{StartingGate: "A", RiderName: "Tai Woffinden", Score: model.RiderScore{Raw: "2'", Points: 2, WithBonus: true}},
				{StartingGate: "B", RiderName: "Bartosz Zmarzlik", Score: model.RiderScore{Raw: "w", Accident: "W"}, WithWarning: true},
			},
		},
	}
	if diff := cmp.Diff(want, m.Heats); diff != "" {
		t.Errorf("heats mismatch (-want +got):\n%s", diff)
	}

	var telemetry []map[string]interface{}
	require.NoError(t, json.Unmarshal(m.TelemetryRaw, &telemetry))
	require.Len(t, telemetry, 1)
	assert.Equal(t, "Tai Woffinden", telemetry[0]["rider_name"])
}

func TestNormalize_ValidationErrors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(f map[string]interface{})
		field  string
		reason string
	}{
		{"缺少赛事", func(f map[string]interface{}) { delete(f, model.FieldCompetition) }, model.FieldCompetition, model.ReasonMissing},
		{"赛事为空白", func(f map[string]interface{}) { f[model.FieldCompetition] = "   " }, model.FieldCompetition, model.ReasonMissing},
		{"缺少比赛日期", func(f map[string]interface{}) { delete(f, model.FieldMatchDate) }, model.FieldMatchDate, model.ReasonMissing},
		{"日期格式不对", func(f map[string]interface{}) { f[model.FieldMatchDate] = "2024-04-07" }, model.FieldMatchDate, model.ReasonInvalidFormat},
		{"日期类型不对", func(f map[string]interface{}) { f[model.FieldMatchDate] = []interface{}{} }, model.FieldMatchDate, model.ReasonWrongType},
		{"主队缺失", func(f map[string]interface{}) {
			delete(f, model.FieldHomeTeamCode)
			delete(f, model.FieldTeam1)
		}, model.FieldHomeTeamCode, model.ReasonMissing},
		{"客队类型不对", func(f map[string]interface{}) { f[model.FieldAwayTeamCode] = map[string]interface{}{} }, model.FieldAwayTeamCode, model.ReasonWrongType},
		{"主队比分缺失", func(f map[string]interface{}) { delete(f, model.FieldHomeScore) }, model.FieldHomeScore, model.ReasonMissing},
		{"客队比分非数字", func(f map[string]interface{}) { f[model.FieldAwayScore] = "38a" }, model.FieldAwayScore, model.ReasonInvalidFormat},
		{"客队比分为负", func(f map[string]interface{}) { f[model.FieldAwayScore] = json.Number("-1") }, model.FieldAwayScore, model.ReasonInvalidFormat},
		{"主队比分类型不对", func(f map[string]interface{}) { f[model.FieldHomeScore] = true }, model.FieldHomeScore, model.ReasonWrongType},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw := decodeRecord(t, "bad.json", 3, matchJSON("52", "38"))
			tc.mutate(raw.Fields)

			m, err := newTestNormalizer().Normalize(raw)
			assert.Nil(t, m)

			var valErr *model.ValidationError
			require.True(t, errors.As(err, &valErr), "want ValidationError, got %v", err)
			assert.Equal(t, "bad.json", valErr.File)
			assert.Equal(t, 3, valErr.Index)
			assert.Equal(t, tc.field, valErr.Field)
			assert.Equal(t, tc.reason, valErr.Reason)
		})
	}
}

func TestNormalize_NotObjectRecord(t *testing.T) {
	raw := &model.RawMatchRecord{File: "batch.json", Index: 1, NotObject: true}

	m, err := newTestNormalizer().Normalize(raw)
	assert.Nil(t, m)

	var valErr *model.ValidationError
	require.True(t, errors.As(err, &valErr), "want ValidationError, got %v", err)
	assert.Equal(t, 1, valErr.Index)
	assert.Equal(t, model.FieldRecord, valErr.Field)
	assert.Equal(t, model.ReasonWrongType, valErr.Reason)
}

func TestNormalize_TeamFallbacks(t *testing.T) {
	n := newTestNormalizer()

	t.Run("缩写缺失时用 team_name", func(t *testing.T) {
		raw := decodeRecord(t, "a.json", 0, matchJSON("45", "45"))
		delete(raw.Fields, model.FieldHomeTeamCode)

		m, err := n.Normalize(raw)
		require.NoError(t, err)
		assert.Equal(t, "", m.Home.Code)
		assert.Equal(t, "Betard Sparta Wrocław", m.Home.Key())
		assert.Equal(t, DeriveMatchKey("PGE Ekstraliga", m.MatchTime, "Betard Sparta Wrocław", "LUB"), m.MatchKey)
	})

	t.Run("阵容为 Not available", func(t *testing.T) {
		raw := decodeRecord(t, "a.json", 0, matchJSON("45", "45"))
		raw.Fields[model.FieldTeam1] = "Not available"

		m, err := n.Normalize(raw)
		require.NoError(t, err)
		assert.Nil(t, m.HomeLineup)
		assert.Equal(t, model.TeamRef{Code: "WRO"}, m.Home)
		assert.NotNil(t, m.AwayLineup)
	})
}

func TestNormalize_LenientOptionalFields(t *testing.T) {
	raw := decodeRecord(t, "a.json", 0, matchJSON("50", "40"))
	raw.Fields[model.FieldMatchDate] = "07.04.2024"
	raw.Fields[model.FieldReferee] = map[string]interface{}{"name": "x"}
	raw.Fields[model.FieldAttendance] = "brak danych"
	raw.Fields[model.FieldTelemetry] = "Telemetry data not available"
	delete(raw.Fields, model.FieldArena)
	raw.Fields[model.FieldHeats] = "n/a"

	m, err := newTestNormalizer().Normalize(raw)
	require.NoError(t, err)

	assert.True(t, m.MatchTime.Equal(time.Date(2024, 4, 7, 0, 0, 0, 0, cest)))
	assert.Equal(t, "", m.Referee)
	assert.Equal(t, "", m.Arena)
	assert.Nil(t, m.Attendance)
	assert.Empty(t, m.Heats)
	assert.JSONEq(t, `"Telemetry data not available"`, string(m.TelemetryRaw))

	// 只有日期和带开赛时间的同一场比赛得到相同的 match_key
	full, err := newTestNormalizer().Normalize(decodeRecord(t, "b.json", 0, matchJSON("50", "40")))
	require.NoError(t, err)
	assert.Equal(t, full.MatchKey, m.MatchKey)
}

func TestNormalize_TimezoneFromLocation(t *testing.T) {
	raw := decodeRecord(t, "a.json", 0, matchJSON("50", "40"))

	utc, err := NewNormalizer(nil, testutil.NewLogger()).Normalize(raw)
	require.NoError(t, err)
	local, err := newTestNormalizer().Normalize(raw)
	require.NoError(t, err)

	assert.Equal(t, 2*time.Hour, utc.MatchTime.Sub(local.MatchTime))
}
