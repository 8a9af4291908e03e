package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gowvp/sentinel/internal/conf"
	"github.com/gowvp/sentinel/internal/core/sentinel"
	"github.com/gowvp/sentinel/internal/core/session"
	"github.com/gowvp/sentinel/internal/edge"
	"github.com/gowvp/sentinel/internal/web/camapi"
	"github.com/ixugo/goddd/pkg/system"
)

func main() {
	configPath := flag.String("config", filepath.Join(system.Getwd(), "configs", "config.toml"), "配置文件路径")
	flag.Parse()

	bc := conf.SetupConfig(*configPath)
	level := slog.LevelInfo
	if bc.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	cfg := bc.Camera
	slog.Info("starting sentinel camera",
		"camera_id", cfg.ID,
		"input", cfg.Input,
		"offer_url", cfg.OfferURL,
	)

	agent, err := edge.NewAgent(cfg)
	if err != nil {
		slog.Error("failed to build agent", "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := agent.Start(ctx); err != nil {
		slog.Error("failed to start agent", "err", err)
		os.Exit(1)
	}
	defer agent.Stop()

	peer := session.NewPeerSession(session.NewSignaler(cfg.OfferURL, cfg.ID), agent.IVF(), cfg.FPS)
	go func() {
		// 送帧协程全程只有一个，轨道随重连热替换
		if err := peer.StartFeeding(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("media feed ended", "err", err)
			cancel()
		}
	}()

	// 本机配置/状态接口
	apiSvr := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.APIPort),
		Handler:           camapi.NewHTTPHandler(camapi.NewAPI(agent), bc.Debug),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("camera api started", "addr", apiSvr.Addr)
		if err := apiSvr.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("camera api exited", "err", err)
		}
	}()

	ctrl := session.NewController(peer, agent,
		sentinel.NewMotionDetector(),
		sentinel.NewJournal(cfg.JournalPath),
	)
	go ctrl.Run(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		slog.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer shutdownCancel()
	_ = apiSvr.Shutdown(shutdownCtx)
	slog.Info("bye")
}
