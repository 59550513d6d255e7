package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// 退出码
const (
	exitFailure     = 1 // 写库失败 / 数据库不可用 / 任务被中断
	exitConfigError = 2 // 配置无效
)

// exitError 携带退出码的错误，由 ExecuteContext 统一处理
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

func fail(code int, format string, args ...interface{}) error {
	return &exitError{code: code, err: fmt.Errorf(format, args...)}
}

var configPath string

var rootCmd = &cobra.Command{
	Use:           "speedway-sync",
	Short:         "speedway-sync 把爬虫输出的比赛 JSON 幂等地导入 PostgreSQL，并提供只读查询接口。",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "配置文件路径（默认 ./config/config.yaml）")
}

// ExecuteContext 执行命令，出错时按 exitError 的退出码退出
func ExecuteContext(ctx context.Context) {
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, err)

	var ee *exitError
	if errors.As(err, &ee) {
		os.Exit(ee.code)
	}
	os.Exit(exitFailure)
}
