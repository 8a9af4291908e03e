package intake

import (
	"sync"

	"github.com/gowvp/sentinel/internal/media"
)

// Register 单槽最新帧寄存器
// 写入端无条件覆盖，读取端拿深拷贝，是管线中唯一被多方并发访问的状态
type Register struct {
	m      sync.Mutex
	frames map[string]*media.Frame
}

func NewRegister() *Register {
	return &Register{frames: make(map[string]*media.Frame)}
}

// Set 覆盖写入，不排队不阻塞
func (r *Register) Set(frame *media.Frame) {
	if frame == nil {
		return
	}
	r.m.Lock()
	r.frames[frame.CameraID] = frame
	r.m.Unlock()
}

// Latest 返回最新帧的副本，没有帧时返回 nil
func (r *Register) Latest(cameraID string) *media.Frame {
	r.m.Lock()
	frame := r.frames[cameraID]
	r.m.Unlock()
	return frame.Clone()
}

// Drop 摄像头断开后清理槽位
func (r *Register) Drop(cameraID string) {
	r.m.Lock()
	delete(r.frames, cameraID)
	r.m.Unlock()
}
