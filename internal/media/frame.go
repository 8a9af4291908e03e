package media

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"time"

	xdraw "golang.org/x/image/draw"
)

// Frame 一帧解码后的 BGR24 图像，附带采集时间戳
// Data 长度固定为 Width*Height*3，像素按行排列
type Frame struct {
	CameraID  string
	Width     int
	Height    int
	Data      []byte
	Timestamp time.Time
}

// NewFrame 构造帧并校验尺寸与数据长度匹配
func NewFrame(cameraID string, width, height int, data []byte, ts time.Time) (*Frame, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid resolution: %dx%d", width, height)
	}
	if len(data) != width*height*3 {
		return nil, fmt.Errorf("frame size mismatch: got %d want %d", len(data), width*height*3)
	}
	return &Frame{CameraID: cameraID, Width: width, Height: height, Data: data, Timestamp: ts}, nil
}

// FrameSize 原始帧字节数
func FrameSize(width, height int) int { return width * height * 3 }

// Clone 深拷贝，读取端拿到的副本与写入端不共享底层数组
func (f *Frame) Clone() *Frame {
	if f == nil {
		return nil
	}
	data := make([]byte, len(f.Data))
	copy(data, f.Data)
	out := *f
	out.Data = data
	return &out
}

// ToRGBA 转为标准库图像，供 JPEG 编码与像素运算使用
func (f *Frame) ToRGBA() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for i, n := 0, f.Width*f.Height; i < n; i++ {
		src := i * 3
		dst := i * 4
		img.Pix[dst+0] = f.Data[src+2]
		img.Pix[dst+1] = f.Data[src+1]
		img.Pix[dst+2] = f.Data[src+0]
		img.Pix[dst+3] = 0xff
	}
	return img
}

// FromRGBA 由标准库图像构造帧，alpha 通道丢弃
func FromRGBA(cameraID string, img *image.RGBA, ts time.Time) *Frame {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	data := make([]byte, w*h*3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			src := img.PixOffset(b.Min.X+x, b.Min.Y+y)
			dst := (y*w + x) * 3
			data[dst+0] = img.Pix[src+2]
			data[dst+1] = img.Pix[src+1]
			data[dst+2] = img.Pix[src+0]
		}
	}
	return &Frame{CameraID: cameraID, Width: w, Height: h, Data: data, Timestamp: ts}
}

// Resize 缩放到目标尺寸，尺寸相同时原样返回
// 录像编码器输入分辨率固定，尺寸不符的帧在写管道前走这里
func (f *Frame) Resize(width, height int) *Frame {
	if f.Width == width && f.Height == height {
		return f
	}
	src := f.ToRGBA()
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return FromRGBA(f.CameraID, dst, f.Timestamp)
}

// EncodeJPEG 压缩为 JPEG，用于事件快照与告警附图
func (f *Frame) EncodeJPEG(quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, f.ToRGBA(), &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("jpeg encode: %w", err)
	}
	return buf.Bytes(), nil
}
