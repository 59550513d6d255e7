package service

import (
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// matchKeyNamespace 固定命名空间，改动会使所有已入库比赛的 match_key 失效
var matchKeyNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("speedway-sync/match"))

// DeriveMatchKey 赛事 + 比赛日期 + 主客队 → UUIDv5。
// 只取日期不取开赛时刻：同一天内改了开赛时间仍然是同一场比赛。
func DeriveMatchKey(competition string, matchDate time.Time, home, away string) string {
	data := strings.Join([]string{
		normalizeKey(competition),
		matchDate.Format("2006-01-02"),
		normalizeKey(home),
		normalizeKey(away),
	}, "|")
	return uuid.NewSHA1(matchKeyNamespace, []byte(data)).String()
}

// normalizeKey 小写，非字母数字视为分隔符并压缩为单个空格
func normalizeKey(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	b.Grow(len(s))

	prevSpace := true
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			prevSpace = false
			continue
		}
		if !prevSpace {
			b.WriteByte(' ')
			prevSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}
