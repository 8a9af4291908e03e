package camapi

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/ixugo/goddd/pkg/reason"
	"github.com/ixugo/goddd/pkg/web"
)

// CaptureController 采集链路的受控面，edge.Agent 实现
type CaptureController interface {
	Resolution() (int, int)
	SetResolution(width, height int) error
	Alive() bool
}

// API 摄像头本机的配置与状态接口
type API struct {
	ctrl CaptureController
}

func NewAPI(ctrl CaptureController) API {
	return API{ctrl: ctrl}
}

// NewHTTPHandler 生成摄像头侧的 Gin 路由
func NewHTTPHandler(api API, debugMode bool) http.Handler {
	if !debugMode {
		gin.SetMode(gin.ReleaseMode)
	}
	g := gin.New()
	g.Use(
		gin.CustomRecovery(func(c *gin.Context, err any) {
			slog.ErrorContext(c.Request.Context(), "panic", "err", err, "stack", string(debug.Stack()))
			c.AbortWithStatus(http.StatusInternalServerError)
		}),
		web.Logger(),
	)
	g.NoRoute(func(c *gin.Context) {
		c.JSON(404, gin.H{"msg": "来到了无人的荒漠"})
	})

	g.POST("/config", web.WrapH(api.setConfig))
	g.GET("/status", web.WrapH(api.getStatus))
	return g
}

type setConfigInput struct {
	Resolution string `json:"resolution" binding:"required"` // 形如 "640x480"
}

type setConfigOutput struct {
	Status     string `json:"status"`
	Resolution string `json:"resolution"`
}

// setConfig 在线调整采集分辨率
func (a API) setConfig(_ *gin.Context, in *setConfigInput) (setConfigOutput, error) {
	width, height, err := parseResolution(in.Resolution)
	if err != nil {
		return setConfigOutput{}, reason.ErrBadRequest.Withf(`resolution[%s] err[%s]`, in.Resolution, err.Error())
	}
	if err := a.ctrl.SetResolution(width, height); err != nil {
		return setConfigOutput{}, reason.ErrServer.Withf(`set resolution err[%s]`, err.Error())
	}
	return setConfigOutput{
		Status:     "ok",
		Resolution: fmt.Sprintf("%dx%d", width, height),
	}, nil
}

type getStatusOutput struct {
	Alive      bool   `json:"alive"`
	Resolution string `json:"resolution"`
}

// getStatus 存活与当前分辨率
func (a API) getStatus(_ *gin.Context, _ *struct{}) (getStatusOutput, error) {
	w, h := a.ctrl.Resolution()
	return getStatusOutput{
		Alive:      a.ctrl.Alive(),
		Resolution: fmt.Sprintf("%dx%d", w, h),
	}, nil
}

func parseResolution(s string) (int, int, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return 0, 0, fmt.Errorf("want WxH")
	}
	width, err := strconv.Atoi(strings.TrimSpace(ws))
	if err != nil {
		return 0, 0, fmt.Errorf("bad width: %w", err)
	}
	height, err := strconv.Atoi(strings.TrimSpace(hs))
	if err != nil {
		return 0, 0, fmt.Errorf("bad height: %w", err)
	}
	if width <= 0 || height <= 0 || width > 7680 || height > 4320 {
		return 0, 0, fmt.Errorf("resolution out of range: %dx%d", width, height)
	}
	return width, height, nil
}
