package api

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gowvp/sentinel/internal/conf"
	"github.com/gowvp/sentinel/internal/core/event"
	"github.com/ixugo/goddd/pkg/web"
)

// EventAPI 为 http 提供检测事件查询能力
type EventAPI struct {
	eventCore event.Core
	conf      *conf.Bootstrap
}

// NewEventCore 创建事件核心服务并启动过期清理协程
func NewEventCore(store event.Storer, cfg *conf.Bootstrap) event.Core {
	core := event.NewCore(store)
	go core.StartCleanupWorker(context.Background(), cfg.Pipeline.RetentionDays, cfg.Pipeline.SnapshotDir)
	return core
}

func NewEventAPI(core event.Core, conf *conf.Bootstrap) EventAPI {
	return EventAPI{eventCore: core, conf: conf}
}

func RegisterEvent(g gin.IRouter, api EventAPI, handler ...gin.HandlerFunc) {
	{
		group := g.Group("/events", handler...)
		group.GET("", web.WrapH(api.findEvents))
		group.GET("/:id", web.WrapH(api.getEvent))
		group.DELETE("/:id", web.WrapH(api.delEvent))
	}

	// 静态文件服务，用于访问事件快照 JPEG
	// 路径格式: /events/image/{camera}_{track}_{ts}.jpg
	if api.conf != nil && api.conf.Pipeline.SnapshotDir != "" {
		slog.Info("注册事件快照静态服务", "path", "/events/image", "dir", api.conf.Pipeline.SnapshotDir)
		g.Static("/events/image", api.conf.Pipeline.SnapshotDir)
	}
}

// findEvents 分页查询事件列表
func (a EventAPI) findEvents(c *gin.Context, in *event.FindEventInput) (any, error) {
	items, total, err := a.eventCore.FindEvents(c.Request.Context(), in)
	return gin.H{"items": items, "total": total}, err
}

func (a EventAPI) getEvent(c *gin.Context, _ *struct{}) (*event.Event, error) {
	eventID, _ := strconv.ParseInt(c.Param("id"), 10, 64)
	return a.eventCore.GetEvent(c.Request.Context(), eventID)
}

func (a EventAPI) delEvent(c *gin.Context, _ *struct{}) (*event.Event, error) {
	eventID, _ := strconv.ParseInt(c.Param("id"), 10, 64)
	return a.eventCore.DelEvent(c.Request.Context(), eventID)
}
