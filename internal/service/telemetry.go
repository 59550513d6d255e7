package service

import (
	"encoding/json"
	"strings"

	"SpeedwaySync/internal/model"
)

// telemetryIndex 车手名（大写）→ 轮次号（去掉点）→ 遥测
type telemetryIndex map[string]map[string]*model.LapTelemetry

func (idx telemetryIndex) lookup(rider, heat string) *model.LapTelemetry {
	if idx == nil {
		return nil
	}
	byHeat := idx[strings.ToUpper(strings.TrimSpace(rider))]
	if byHeat == nil {
		return nil
	}
	return byHeat[heatKey(heat)]
}

func heatKey(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), ".", "")
}

// telemetry 保存 telemetry_data 原文（列表或错误说明字符串），并按车手/轮次建立索引
func (n *Normalizer) telemetry(raw *model.RawMatchRecord, m *model.NormalizedMatch) telemetryIndex {
	v := raw.Get(model.FieldTelemetry)
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		// 爬虫拿不到遥测时写入的是一段说明文字
		m.TelemetryRaw, _ = json.Marshal(t)
		return nil
	case []interface{}:
		m.TelemetryRaw, _ = json.Marshal(t)
	default:
		n.warnDropped(raw, model.FieldTelemetry)
		return nil
	}

	idx := make(telemetryIndex)
	for _, item := range v.([]interface{}) {
		entry, ok := objectValue(item)
		if !ok {
			continue
		}
		rider := strings.ToUpper(str(entry, "rider_name"))
		if rider == "" {
			continue
		}
		details, ok := arrayValue(entry["detailed_telemetry"])
		if !ok {
			if entry["detailed_telemetry"] != nil {
				n.warnDropped(raw, model.FieldTelemetry+"[].detailed_telemetry")
			}
			continue
		}
		// 同名车手只取第一条
		if _, exists := idx[rider]; exists {
			continue
		}
		byHeat := make(map[string]*model.LapTelemetry)
		for _, d := range details {
			lap, ok := objectValue(d)
			if !ok {
				continue
			}
			key := heatKey(str(lap, "heat_number"))
			if key == "" {
				continue
			}
			if _, exists := byHeat[key]; exists {
				continue
			}
			byHeat[key] = &model.LapTelemetry{
				LapTimeSeconds:  ParseTelemetryValue(lap["lap_time"]),
				DistanceMeters:  ParseTelemetryValue(lap["distance"]),
				VmaxKmh:         ParseTelemetryValue(lap["vmax_lap"]),
				Lap1TimeSeconds: ParseTelemetryValue(lap["lap1_time"]),
				Lap2TimeSeconds: ParseTelemetryValue(lap["lap2_time"]),
				Lap3TimeSeconds: ParseTelemetryValue(lap["lap3_time"]),
				Lap4TimeSeconds: ParseTelemetryValue(lap["lap4_time"]),
			}
		}
		idx[rider] = byHeat
	}
	return idx
}
