package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"

	"SpeedwaySync/internal/model"

	"github.com/stretchr/testify/require"
)

// matchJSON 一条完整的爬虫输出记录
func matchJSON(homeScore, awayScore string) string {
	return fmt.Sprintf(`{
  "source": "ekstraliga.pl",
  "match_url": "https://ekstraliga.pl/mecz/1",
  "competition": "PGE Ekstraliga",
  "round_type": "Runda zasadnicza",
  "round": "Runda 1",
  "match_date": "07.04.2024 16:30",
  "attendance_summary": "12000",
  "referee": "Artur Kuśmierz",
  "track_commissioner": "Leszek Demski",
  "arena": "Stadion Olimpijski",
  "home_team_details": "WRO",
  "away_team_details": "LUB",
  "home_score_details": %q,
  "away_score_details": %q,
  "team1": {
    "team_name": "Betard Sparta Wrocław",
    "manager": "Andrzej Rusko",
    "coach": "Dariusz Śledź",
    "riders": [
      {"number": "9.", "name": "Tai Woffinden", "scores": ["3", "2'"], "sum": "5", "bonus": "1"},
      {"number": "10.", "name": "Maciej Janowski", "scores": ["2"], "sum": "2", "bonus": ""}
    ]
  },
  "team2": {
    "team_name": "Orlen Oil Motor Lublin",
    "riders": [
      {"number": "1.", "name": "Bartosz Zmarzlik", "scores": ["1", "w"], "sum": "1"},
      {"number": "2.", "name": "Dominik Kubera", "scores": ["0"], "sum": "0"}
    ]
  },
  "match_details": [
    {
      "heat_number": "1.",
      "hometeam_heat_score": "5",
      "awayteam_heat_score": "1",
      "hometeam_current_match_score": "5",
      "awayteam_current_match_score": "1",
      "riders": [
        {"starting_field": "A", "helmet_color": "red", "rider": "Tai Woffinden", "rider_score": "3"},
        {"starting_field": "B", "helmet_color": "blue", "rider": "Bartosz Zmarzlik", "rider_score": "1"},
        {"starting_field": "C", "helmet_color": "white", "rider": "Maciej Janowski", "rider_score": "2"},
        {"starting_field": "D", "helmet_color": "yellow", "rider": "Dominik Kubera", "rider_score": "0"}
      ]
    },
    {
      "heat_number": "",
      "riders": []
    },
    {
      "heat_number": "3.",
      "hometeam_heat_score": "2",
      "awayteam_heat_score": "0",
      "riders": [
        {"starting_field": "A", "rider": "Tai Woffinden", "rider_score": "2'"},
        {"starting_field": "B", "rider": "Bartosz Zmarzlik", "rider_score": "w", "warning": "T"}
      ]
    }
  ],
  "telemetry_data": [
    {
      "rider_name": "Tai Woffinden",
      "detailed_telemetry": [
        {"heat_number": "1", "lap_time": "61.843 s", "distance": "245 m", "vmax_lap": "78.2 km/h", "lap1_time": "15.2 s"}
      ]
    }
  ]
}`, homeScore, awayScore)
}

// decodeRecord 与 reader 一样用 UseNumber 解码
func decodeRecord(t testing.TB, file string, index int, js string) *model.RawMatchRecord {
	t.Helper()
	dec := json.NewDecoder(bytes.NewReader([]byte(js)))
	dec.UseNumber()
	var fields map[string]interface{}
	require.NoError(t, dec.Decode(&fields))
	return &model.RawMatchRecord{File: file, Index: index, Fields: fields}
}
