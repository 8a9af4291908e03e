package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gowvp/sentinel/internal/conf"
	"github.com/gowvp/sentinel/internal/core/record"
	"github.com/gowvp/sentinel/internal/core/stream"
	"github.com/grafov/m3u8"
	"github.com/ixugo/goddd/pkg/web"
)

// RecordingAPI 为 http 提供实时 HLS 录像访问
type RecordingAPI struct {
	hub  *stream.Hub
	conf *conf.Bootstrap
}

func NewRecordingAPI(hub *stream.Hub, conf *conf.Bootstrap) RecordingAPI {
	return RecordingAPI{hub: hub, conf: conf}
}

func RegisterRecording(g gin.IRouter, api RecordingAPI, handler ...gin.HandlerFunc) {
	{
		group := g.Group("/recordings", handler...)
		group.GET("", web.WrapH(api.findRecordings))
		// HLS 播放列表（按摄像头 ID 输出滚动窗口 m3u8）
		group.GET("/:id/index.m3u8", api.cameraPlaylist)
		group.GET("/:id/log", web.WrapH(api.getEncoderLog))
	}

	// 静态文件服务，用于访问 fMP4 切片
	// Gin Static 支持 HTTP Range 请求，播放器可以边下边播
	if api.conf != nil && api.conf.Recording.StorageDir != "" {
		slog.Info("注册录像静态文件服务", "path", "/static/recordings", "dir", api.conf.Recording.StorageDir)
		g.Static("/static/recordings", api.conf.Recording.StorageDir)
	}
}

type recordingStatus struct {
	CameraID  string `json:"camera_id"`
	Recording bool   `json:"recording"`
	Restarts  int    `json:"restarts"`
	Segments  int    `json:"segments"`
	Playlist  string `json:"playlist"`
}

// findRecordings 每路在线摄像头的录像状态概览
func (a RecordingAPI) findRecordings(_ *gin.Context, _ *struct{}) (any, error) {
	cams := a.hub.Cameras()
	items := make([]recordingStatus, 0, len(cams))
	for _, cam := range cams {
		sup, ok := a.hub.Recorder(cam.ID)
		if !ok {
			continue
		}
		st := recordingStatus{
			CameraID:  cam.ID,
			Recording: sup.Recording(),
			Restarts:  sup.Restarts(),
			Playlist:  fmt.Sprintf("/recordings/%s/index.m3u8", cam.ID),
		}
		if info, err := record.ReadPlaylist(sup.PlaylistPath()); err == nil {
			st.Segments = len(info.Segments)
		}
		items = append(items, st)
	}
	return gin.H{"items": items, "total": len(items)}, nil
}

// cameraPlaylist 输出某路摄像头的滚动 m3u8
// 编码器落盘的切片 URI 是相对路径，这里改写到静态服务地址再下发
func (a RecordingAPI) cameraPlaylist(c *gin.Context) {
	cameraID := c.Param("id")
	sup, ok := a.hub.Recorder(cameraID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"code": 1, "msg": "camera offline or recording disabled"})
		return
	}

	info, err := record.ReadPlaylist(sup.PlaylistPath())
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"code": 1, "msg": err.Error()})
		return
	}
	if len(info.Segments) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"code": 1, "msg": "no segments yet"})
		return
	}

	pl, err := m3u8.NewMediaPlaylist(uint(len(info.Segments)), uint(len(info.Segments)))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"code": 1, "msg": err.Error()})
		return
	}
	pl.TargetDuration = info.TargetDuration
	for _, seg := range info.Segments {
		// 使用相对路径（不带域名），无论直连还是走代理都能访问
		uri := fmt.Sprintf("/static/recordings/%s/%s", cameraID, seg.URI)
		_ = pl.Append(uri, seg.Duration, "")
	}
	// 滚动窗口播放列表不加 ENDLIST，序号跟随编码器输出
	pl.SeqNo = info.SequenceNo

	c.Header("Content-Type", "application/vnd.apple.mpegurl")
	c.Header("Cache-Control", "no-cache")
	c.String(http.StatusOK, pl.Encode().String())
}

type encoderLogOutput struct {
	CameraID string   `json:"camera_id"`
	Items    []string `json:"items"`
}

// getEncoderLog 编码器最近的 stderr 输出，排障用
func (a RecordingAPI) getEncoderLog(c *gin.Context, _ *struct{}) (encoderLogOutput, error) {
	cameraID := c.Param("id")
	out := encoderLogOutput{CameraID: cameraID, Items: []string{}}
	sup, ok := a.hub.Recorder(cameraID)
	if !ok {
		return out, nil
	}
	out.Items = sup.Log()
	return out, nil
}
