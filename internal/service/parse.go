package service

import (
	"encoding/json"
	"strconv"
	"strings"

	"SpeedwaySync/internal/model"
)

// ParseRiderScore 解析单轮得分：数字为积分，带 ' 表示获得加分，非数字视为事故代码（记 0 分）
func ParseRiderScore(raw string) model.RiderScore {
	res := model.RiderScore{Raw: raw}
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return res
	}
	if strings.Contains(s, "'") {
		res.WithBonus = true
		s = strings.ReplaceAll(s, "'", "")
	}
	if n, err := strconv.Atoi(s); err == nil {
		res.Points = n
		return res
	}
	res.Accident = s
	return res
}

var telemetryUnits = []string{"km/h", "s", "m"}

// ParseTelemetryValue 解析遥测值（"61.843 s"、"245 m"、"78.2 km/h"），无法解析返回 nil
func ParseTelemetryValue(v interface{}) *float64 {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case json.Number:
		s = t.String()
	default:
		return nil
	}
	s = strings.TrimSpace(s)
	for _, unit := range telemetryUnits {
		if strings.HasSuffix(strings.ToLower(s), unit) {
			s = strings.TrimSpace(s[:len(s)-len(unit)])
			break
		}
	}
	s = strings.Replace(s, ",", ".", 1)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

// ========== 原始字段取值工具 ==========

// stringValue 字符串（去首尾空白）；json.Number 也接受。ok=false 表示类型不对
func stringValue(v interface{}) (s string, ok bool) {
	switch t := v.(type) {
	case nil:
		return "", true
	case string:
		return strings.TrimSpace(t), true
	case json.Number:
		return t.String(), true
	default:
		return "", false
	}
}

// countValue 非负整数：纯数字字符串或 JSON 整数。
// present=false 表示缺失或空白，valid=false 表示有值但格式不对
func countValue(v interface{}) (n int, present, typeOK, valid bool) {
	switch t := v.(type) {
	case nil:
		return 0, false, true, false
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false, true, false
		}
		if !isDigits(s) {
			return 0, true, true, false
		}
		n, err := strconv.Atoi(s)
		return n, true, true, err == nil
	case json.Number:
		i, err := t.Int64()
		if err != nil || i < 0 {
			return 0, true, true, false
		}
		return int(i), true, true, true
	default:
		return 0, true, false, false
	}
}

// optionalCount 可选整数，缺失或格式不对都返回 nil
func optionalCount(v interface{}) *int {
	n, present, _, valid := countValue(v)
	if !present || !valid {
		return nil
	}
	return &n
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func objectValue(v interface{}) (map[string]interface{}, bool) {
	m, ok := v.(map[string]interface{})
	return m, ok
}

func arrayValue(v interface{}) ([]interface{}, bool) {
	a, ok := v.([]interface{})
	return a, ok
}

// str 从对象取字符串字段，类型不对按空处理
func str(obj map[string]interface{}, key string) string {
	s, _ := stringValue(obj[key])
	return s
}
