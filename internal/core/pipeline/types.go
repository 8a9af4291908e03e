package pipeline

import (
	"fmt"
	"image"
	"strings"
)

// Detection 一条检测结果，只能通过 NewDetection 构造
type Detection struct {
	Label string
	Conf  float32
	Box   image.Rectangle
}

// NewDetection 校验并构造检测结果，非法输入直接拒绝而不是带病入库
func NewDetection(label string, conf float32, box image.Rectangle) (Detection, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return Detection{}, fmt.Errorf("empty label")
	}
	if conf <= 0 || conf > 1 {
		return Detection{}, fmt.Errorf("confidence out of range: %f", conf)
	}
	box = box.Canon()
	if box.Empty() {
		return Detection{}, fmt.Errorf("empty box: %v", box)
	}
	return Detection{Label: label, Conf: conf, Box: box}, nil
}

// TrackedDetection 带跟踪标识的检测结果
type TrackedDetection struct {
	ID string
	Detection
}

func (d Detection) centroid() image.Point {
	return image.Pt((d.Box.Min.X+d.Box.Max.X)/2, (d.Box.Min.Y+d.Box.Max.Y)/2)
}
