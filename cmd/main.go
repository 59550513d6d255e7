package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata" // 精简镜像里没有系统时区库

	"SpeedwaySync/cmd/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	commands.ExecuteContext(ctx)
}
