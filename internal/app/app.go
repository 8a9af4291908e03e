package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gowvp/sentinel/internal/conf"
)

// Run 组装依赖并启动 http 服务，返回优雅退出用的清理函数
func Run(bc *conf.Bootstrap) (func(), error) {
	handler, cleanup, err := wireApp(bc)
	if err != nil {
		return nil, err
	}

	svr := &http.Server{
		Addr:              bc.Server.HTTP.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("http server started", "addr", svr.Addr)
		if err := svr.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server exited", "err", err)
			os.Exit(1)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := svr.Shutdown(ctx); err != nil {
			slog.Error("http server shutdown", "err", err)
		}
		// 先停接入再拆管线，避免新 offer 打在收尾中的 hub 上
		cleanup()
	}, nil
}
