package api

import (
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// NewRouter 注册查询接口；withPprof 为 true 时挂载 /debug/pprof
func NewRouter(db *gorm.DB, logger *logrus.Logger, withPprof bool) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	if withPprof {
		// 注册ppof 方便调试和监测性能问题
		pprof.Register(r)
	}

	matchHandler := NewMatchHandler(db, logger)
	r.GET("/healthz", matchHandler.Healthz)
	r.GET("/api/matches", matchHandler.ListMatches)
	r.GET("/api/matches/:match_key", matchHandler.GetMatch)
	return r
}

// requestLogger 请求日志走 logrus，和入库任务的日志格式保持一致
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		logger.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"status": c.Writer.Status(),
		}).Debug("http request")
	}
}
