package event

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ixugo/goddd/pkg/orm"
	"github.com/ixugo/goddd/pkg/web"
)

// StartCleanupWorker 启动定时清理协程，每天执行一次
// days 参数指定保留的天数，超过该天数的事件连同快照一起删除
func (c Core) StartCleanupWorker(ctx context.Context, days int, snapshotDir string) {
	if days <= 0 {
		slog.Info("event cleanup disabled", "days", days)
		return
	}

	slog.Info("event cleanup worker started", "retain_days", days)

	// 启动时先执行一次清理
	c.cleanupExpiredEvents(ctx, days, snapshotDir)

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.cleanupExpiredEvents(ctx, days, snapshotDir)
		}
	}
}

// cleanupExpiredEvents 清理过期的事件，先删除快照文件，再删除数据库记录
func (c Core) cleanupExpiredEvents(ctx context.Context, days int, snapshotDir string) {
	cutoff := time.Now().AddDate(0, 0, -days)

	slog.Info("starting event cleanup", "cutoff_time", cutoff.Format(time.DateTime), "retain_days", days)

	// 分批查询并删除，避免一次性加载过多数据
	batchSize := 100
	totalDeleted := 0
	totalFilesDeleted := 0

	for {
		var events []*Event
		pager := web.PagerFilter{Page: 1, Size: batchSize}
		_, err := c.store.Event().Find(ctx, &events, &pager,
			orm.Where("started_at < ?", orm.Time{Time: cutoff}),
		)
		if err != nil {
			slog.Error("failed to query expired events", "err", err)
			break
		}

		if len(events) == 0 {
			break
		}

		// 收集需要删除的快照路径（去重）
		snapshotPaths := make(map[string]struct{})
		eventIDs := make([]int64, 0, len(events))
		for _, e := range events {
			eventIDs = append(eventIDs, e.ID)
			if e.SnapshotPath != "" {
				snapshotPaths[e.SnapshotPath] = struct{}{}
			}
		}

		// 先删除快照文件
		for p := range snapshotPaths {
			fullPath := p
			if !filepath.IsAbs(p) {
				fullPath = filepath.Join(snapshotDir, p)
			}
			if err := os.Remove(fullPath); err != nil {
				if !os.IsNotExist(err) {
					slog.Warn("failed to delete snapshot", "path", fullPath, "err", err)
				}
			} else {
				totalFilesDeleted++
			}
		}

		// 批量删除数据库记录
		if err := c.store.Event().Del(ctx, &Event{}, orm.Where("id IN ?", eventIDs)); err != nil {
			slog.Warn("failed to batch delete events", "count", len(eventIDs), "err", err)
			break
		}
		totalDeleted += len(eventIDs)
	}

	// 清理空目录
	cleanupEmptyDirs(snapshotDir)

	slog.Info("event cleanup completed",
		"events_deleted", totalDeleted,
		"files_deleted", totalFilesDeleted,
	)
}

// cleanupEmptyDirs 递归删除空目录
func cleanupEmptyDirs(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	for _, entry := range entries {
		if entry.IsDir() {
			subDir := filepath.Join(dir, entry.Name())
			cleanupEmptyDirs(subDir)

			subEntries, err := os.ReadDir(subDir)
			if err == nil && len(subEntries) == 0 {
				if err := os.Remove(subDir); err == nil {
					slog.Debug("removed empty directory", "path", subDir)
				}
			}
		}
	}
}
