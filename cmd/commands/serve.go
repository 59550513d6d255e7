package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"SpeedwaySync/internal/api"
	"SpeedwaySync/internal/config"
	"SpeedwaySync/internal/database"
	"SpeedwaySync/internal/logging"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "启动只读查询接口（/api/matches、/healthz、/debug/pprof）。",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return fail(exitConfigError, "加载配置文件失败: %v", err)
		}
		logger, closer, err := logging.New(cfg.Log)
		if err != nil {
			return fail(exitConfigError, "初始化日志失败: %v", err)
		}
		defer closer.Close()

		db, err := database.Open(ctx, cfg, logger)
		if err != nil {
			return fail(exitFailure, "%v", err)
		}
		defer database.Close(db)

		// 配置Gin运行模式（从配置读取：debug/release）
		gin.SetMode(cfg.Server.Mode)
		logger.Infof("Gin运行模式: %s", cfg.Server.Mode)

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           api.NewRouter(db, logger, true),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Infof("服务启动成功，端口：%d", cfg.Server.Port)
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fail(exitFailure, "启动服务失败: %v", err)
			}
			return nil
		case <-ctx.Done():
		}

		logger.Info("收到退出信号，正在关闭服务…")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fail(exitFailure, "关闭服务失败: %v", err)
		}
		return nil
	},
}
