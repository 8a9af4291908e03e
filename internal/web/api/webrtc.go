package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gowvp/sentinel/internal/core/stream"
	"github.com/ixugo/goddd/pkg/reason"
	"github.com/ixugo/goddd/pkg/web"
	"github.com/pion/webrtc/v3"
)

// WebRTCAPI 信令与在线摄像头概览
type WebRTCAPI struct {
	hub     *stream.Hub
	limiter func(identifier string) bool
}

func NewWebRTCAPI(hub *stream.Hub) WebRTCAPI {
	return WebRTCAPI{
		hub: hub,
		// 摄像头断链后每 5 秒重试一次，限流只挡异常刷接口
		limiter: web.IDRateLimiter(1, 5, 3*time.Minute),
	}
}

func RegisterWebRTC(g gin.IRouter, api WebRTCAPI, handler ...gin.HandlerFunc) {
	g.POST("/offer", web.WrapH(api.postOffer))

	group := g.Group("/cameras", handler...)
	group.GET("", web.WrapH(api.findCameras))
	group.GET("/:id/snapshot", api.getSnapshot)
}

type postOfferInput struct {
	SDP      string `json:"sdp" binding:"required"`
	Type     string `json:"type" binding:"required"`
	CameraID int    `json:"camera_id"`
}

type postOfferOutput struct {
	SDP  string `json:"sdp"`
	Type string `json:"type"`
}

// postOffer 接收摄像头 offer，完成 ICE 收集后返回 answer
func (a WebRTCAPI) postOffer(c *gin.Context, in *postOfferInput) (postOfferOutput, error) {
	cameraID := strconv.Itoa(in.CameraID)
	if !a.limiter(cameraID) {
		return postOfferOutput{}, reason.ErrBadRequest.Withf(`camera[%s] offers too frequently`, cameraID)
	}

	answer, err := a.hub.HandleOffer(c.Request.Context(), cameraID, webrtc.SessionDescription{
		SDP:  in.SDP,
		Type: webrtc.NewSDPType(in.Type),
	})
	if err != nil {
		return postOfferOutput{}, reason.ErrServer.Withf(`offer camera[%s] err[%s]`, cameraID, err.Error())
	}
	return postOfferOutput{SDP: answer.SDP, Type: answer.Type.String()}, nil
}

// findCameras 在线摄像头列表
func (a WebRTCAPI) findCameras(_ *gin.Context, _ *struct{}) (any, error) {
	items := a.hub.Cameras()
	return gin.H{"items": items, "total": len(items)}, nil
}

// getSnapshot 输出某路摄像头的最新一帧 JPEG
func (a WebRTCAPI) getSnapshot(c *gin.Context) {
	frame := a.hub.Register().Latest(c.Param("id"))
	if frame == nil {
		c.JSON(http.StatusNotFound, gin.H{"code": 1, "msg": "camera offline or no frame yet"})
		return
	}
	data, err := frame.EncodeJPEG(85)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": 1, "msg": err.Error()})
		return
	}
	c.Header("Cache-Control", "no-cache")
	c.Data(http.StatusOK, "image/jpeg", data)
}
