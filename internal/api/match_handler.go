package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"SpeedwaySync/internal/repository"
	"SpeedwaySync/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// 查询参数 from/to 接受的格式
const dateParamLayout = "2006-01-02"

var timeParamLayouts = []string{time.RFC3339, dateParamLayout}

// MatchHandler 已入库比赛的只读查询接口
type MatchHandler struct {
	queryService *service.MatchQueryService
	logger       *logrus.Logger
}

// NewMatchHandler 创建 MatchHandler
func NewMatchHandler(db *gorm.DB, logger *logrus.Logger) *MatchHandler {
	repo := repository.NewQueryRepository(db)
	return &MatchHandler{
		queryService: service.NewMatchQueryService(repo, logger),
		logger:       logger,
	}
}

// ListMatches 比赛列表接口
// GET /api/matches?competition=PGE%20Ekstraliga&team=WRO&from=2024-04-01&to=2024-09-30&page=1&page_size=20
func (h *MatchHandler) ListMatches(c *gin.Context) {
	filter := repository.MatchFilter{
		Competition: c.Query("competition"),
		Team:        c.Query("team"),
	}
	var err error
	if filter.FromTime, err = parseTimeParam(c.Query("from"), false); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from 参数格式错误，应为 RFC3339 或 YYYY-MM-DD"})
		return
	}
	if filter.ToTime, err = parseTimeParam(c.Query("to"), true); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "to 参数格式错误，应为 RFC3339 或 YYYY-MM-DD"})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	result, err := h.queryService.ListMatches(c.Request.Context(), filter, page, pageSize)
	if err != nil {
		h.logger.WithError(err).Error("ListMatches failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetMatch 比赛详情（含教练组与逐轮成绩）
// GET /api/matches/:match_key
func (h *MatchHandler) GetMatch(c *gin.Context) {
	matchKey := c.Param("match_key")
	if matchKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "match_key is required"})
		return
	}

	result, err := h.queryService.GetMatchDetail(c.Request.Context(), matchKey)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "match not found"})
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("match_key", matchKey).Error("GetMatch failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// Healthz 数据库连通即健康
// GET /healthz
func (h *MatchHandler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.queryService.Ping(ctx); err != nil {
		h.logger.WithError(err).Warn("健康检查失败")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// parseTimeParam 解析 from/to；endOfDay 为 true 时只有日期的 to 取当天最后一刻，整天都包含在内
func parseTimeParam(s string, endOfDay bool) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	var lastErr error
	for _, layout := range timeParamLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			if endOfDay && layout == dateParamLayout {
				t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
			}
			return &t, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
