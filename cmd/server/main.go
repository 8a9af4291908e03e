package main

import (
	"expvar"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gowvp/sentinel/internal/app"
	"github.com/gowvp/sentinel/internal/conf"
	"github.com/ixugo/goddd/pkg/system"
)

// 构建时通过 -ldflags 注入
var (
	buildVersion = "dev"
	gitBranch    = "unknown"
	gitHash      = "unknown"
)

func main() {
	configPath := flag.String("config", filepath.Join(system.Getwd(), "configs", "config.toml"), "配置文件路径")
	flag.Parse()

	expvar.NewString("git_branch").Set(gitBranch)
	expvar.NewString("git_hash").Set(gitHash)

	bc := conf.SetupConfig(*configPath)
	bc.BuildVersion = buildVersion

	level := slog.LevelInfo
	if bc.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	slog.Info("starting sentinel server",
		"version", buildVersion,
		"config", *configPath,
		"addr", bc.Server.HTTP.Addr(),
	)

	cleanup, err := app.Run(bc)
	if err != nil {
		slog.Error("failed to start server", "err", err)
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("received shutdown signal", "signal", sig.String())

	cleanup()
	slog.Info("bye")
}
