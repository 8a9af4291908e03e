package sentinel

import (
	"fmt"
	"sync"

	"github.com/gowvp/sentinel/internal/media"
)

const (
	// 检测前先降采样，弱网设备上控制开销
	detectWidth  = 320
	detectHeight = 240

	// 前景像素占比超过该值判定为动
	defaultRatioThreshold = 0.05
	// 灰度差超过该值的像素计为前景
	defaultPixelThreshold = 25
	// 背景滑动平均的学习率
	defaultAlpha = 0.05
)

// MotionDetector 基于滑动平均背景减除的动检
// 网络中断期间在边缘侧独立运行，命中后写入待同步日志
type MotionDetector struct {
	m          sync.Mutex
	background []float64
	ratio      float64
	pixel      int
	alpha      float64
}

func NewMotionDetector() *MotionDetector {
	return &MotionDetector{
		ratio: defaultRatioThreshold,
		pixel: defaultPixelThreshold,
		alpha: defaultAlpha,
	}
}

// Detect 返回前景占比与是否判定为动
// 首帧用于初始化背景模型，恒定返回不动
func (d *MotionDetector) Detect(frame *media.Frame) (float64, bool, error) {
	if frame == nil {
		return 0, false, fmt.Errorf("nil frame")
	}
	small := frame
	if frame.Width != detectWidth || frame.Height != detectHeight {
		small = frame.Resize(detectWidth, detectHeight)
	}
	gray := grayscale(small)

	d.m.Lock()
	defer d.m.Unlock()

	if d.background == nil {
		d.background = make([]float64, len(gray))
		for i, v := range gray {
			d.background[i] = float64(v)
		}
		return 0, false, nil
	}
	if len(gray) != len(d.background) {
		return 0, false, fmt.Errorf("frame size changed: %d != %d", len(gray), len(d.background))
	}

	changed := 0
	for i, v := range gray {
		diff := float64(v) - d.background[i]
		if diff < 0 {
			diff = -diff
		}
		if diff > float64(d.pixel) {
			changed++
		}
		// 背景缓慢跟随当前帧，光照渐变不会误报
		d.background[i] += d.alpha * (float64(v) - d.background[i])
	}

	ratio := float64(changed) / float64(len(gray))
	return ratio, ratio > d.ratio, nil
}

// Reset 丢弃背景模型，重连成功后的新会话从头学习
func (d *MotionDetector) Reset() {
	d.m.Lock()
	d.background = nil
	d.m.Unlock()
}

// BGR 加权灰度，与常见视觉库的系数一致
func grayscale(f *media.Frame) []byte {
	out := make([]byte, f.Width*f.Height)
	for i := 0; i < len(out); i++ {
		b := float64(f.Data[i*3])
		g := float64(f.Data[i*3+1])
		r := float64(f.Data[i*3+2])
		out[i] = byte(0.114*b + 0.587*g + 0.299*r)
	}
	return out
}
