package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/wire"
	"github.com/gowvp/sentinel/internal/conf"
	"github.com/gowvp/sentinel/internal/core/alert"
	"github.com/gowvp/sentinel/internal/core/event"
	"github.com/gowvp/sentinel/internal/core/stream"
	"github.com/ixugo/goddd/pkg/orm"
	"gorm.io/gorm"
)

var ProviderSet = wire.NewSet(
	wire.Struct(new(Usecase), "*"),
	NewHTTPHandler,
	NewEventCore, NewEventAPI,
	NewAlertCore,
	NewStreamHub,
	NewWebRTCAPI,
	NewRecordingAPI,
)

type Usecase struct {
	Conf *conf.Bootstrap
	DB   *gorm.DB
	Hub  *stream.Hub

	WebRTCAPI    WebRTCAPI
	EventAPI     EventAPI
	RecordingAPI RecordingAPI
}

// NewHTTPHandler 生成Gin框架路由内容
func NewHTTPHandler(uc *Usecase) http.Handler {
	cfg := uc.Conf.Server
	if cfg.HTTP.JwtSecret == "" {
		uc.Conf.Server.HTTP.JwtSecret = orm.GenerateRandomString(32)
	}
	if !uc.Conf.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	g := gin.New()
	setupRouter(g, uc) // 设置路由处理函数
	return g           // 返回配置好的 Gin 实例作为 http.Handler
}

// NewAlertCore 按配置组装告警通道并启动分发协程
func NewAlertCore(cfg *conf.Bootstrap) (*alert.Core, func()) {
	senders := make([]alert.Sender, 0, 2)
	if cfg.Notify.WebhookURL != "" {
		senders = append(senders, alert.NewWebhookSender(cfg.Notify.WebhookURL))
	}
	if cfg.Notify.Mqtt.Host != "" {
		senders = append(senders, alert.NewMQTTSender(cfg.Notify.Mqtt))
	}
	core := alert.NewCore(&cfg.Notify, senders...)

	ctx, cancel := context.WithCancel(context.Background())
	core.Start(ctx)
	return core, func() {
		cancel()
		core.Wait()
	}
}

// NewStreamHub 创建在线摄像头集合，进程收尾时拆除全部管线
func NewStreamHub(cfg *conf.Bootstrap, events event.Core, alerts *alert.Core) (*stream.Hub, func()) {
	hub := stream.NewHub(cfg, events, alerts)
	return hub, hub.Shutdown
}
