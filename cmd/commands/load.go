package commands

import (
	"os"

	"SpeedwaySync/internal/config"
	"SpeedwaySync/internal/database"
	"SpeedwaySync/internal/interfaces"
	"SpeedwaySync/internal/logging"
	"SpeedwaySync/internal/reader"
	"SpeedwaySync/internal/repository"
	"SpeedwaySync/internal/service"

	"github.com/spf13/cobra"
)

var loadFlags struct {
	sourceDir  string
	archiveDir string
	dryRun     bool
}

func init() {
	loadCmd.Flags().StringVar(&loadFlags.sourceDir, "source-dir", "", "爬虫输出目录（覆盖配置）")
	loadCmd.Flags().StringVar(&loadFlags.archiveDir, "archive-dir", "", "处理完成后的归档目录（覆盖配置）")
	loadCmd.Flags().BoolVar(&loadFlags.dryRun, "dry-run", false, "只校验和转换，不写库也不归档")
	rootCmd.AddCommand(loadCmd)
}

var loadCmd = &cobra.Command{
	Use:   "load [--source-dir <dir>] [--archive-dir <dir>] [--dry-run]",
	Short: "读取源目录下的比赛文件并写入数据库，结束时输出汇总。",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		// 1. 加载配置文件
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return fail(exitConfigError, "加载配置文件失败: %v", err)
		}
		if loadFlags.sourceDir != "" {
			cfg.Loader.SourceDir = loadFlags.sourceDir
		}
		if loadFlags.archiveDir != "" {
			cfg.Loader.ArchiveDir = loadFlags.archiveDir
		}

		// 2. 初始化日志
		logger, closer, err := logging.New(cfg.Log)
		if err != nil {
			return fail(exitConfigError, "初始化日志失败: %v", err)
		}
		defer closer.Close()
		logger.WithField("dry_run", loadFlags.dryRun).Info("配置文件加载成功")

		// 3. 数据库（dry-run 不连接）
		var repo interfaces.MatchRepository
		if !loadFlags.dryRun {
			db, err := database.Open(ctx, cfg, logger)
			if err != nil {
				logger.WithError(err).Error("数据库不可用，任务终止")
				return fail(exitFailure, "%v", err)
			}
			defer database.Close(db)
			repo = repository.NewMatchRepository(db, logger)
		}

		// 4. 数据源
		src, err := reader.NewDirReader(cfg.Loader.SourceDir, logger)
		if err != nil {
			logger.WithError(err).Error("源目录不可读，任务终止")
			return fail(exitFailure, "%v", err)
		}
		defer src.Close()

		opts := service.LoadOptions{
			Location:             cfg.Loader.Location(),
			DryRun:               loadFlags.dryRun,
			MaxRetries:           cfg.Loader.MaxRetries,
			RetryInitialInterval: cfg.Loader.RetryInitialInterval,
			RetryMaxInterval:     cfg.Loader.RetryMaxInterval,
		}
		if cfg.Loader.ArchiveDir != "" {
			opts.Archiver = service.NewArchiver(cfg.Loader.ArchiveDir, logger)
		}

		// 5. 执行
		summary, runErr := service.NewLoadService(src, repo, opts, logger).Run(ctx)
		summary.Render(os.Stdout, cfg.Loader.MaxReportedErrors)
		logger.WithFields(summary.Fields()).Info("入库任务结束")

		if runErr != nil {
			logger.WithError(runErr).Warn("入库任务被中断")
			return fail(exitFailure, "入库任务被中断: %v", runErr)
		}
		if !summary.Succeeded() {
			return fail(exitFailure, "%d 条比赛写入失败", summary.Failed)
		}
		return nil
	},
}
