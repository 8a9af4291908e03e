package pipeline

import (
	"image"

	"github.com/gowvp/sentinel/internal/media"
)

// BGR 绿色
var boxColor = [3]byte{0, 255, 0}

const boxThickness = 2

// drawDetections 在帧副本上画出检测框，原帧不动
func drawDetections(frame *media.Frame, tracked []TrackedDetection) *media.Frame {
	out := frame.Clone()
	bounds := image.Rect(0, 0, out.Width, out.Height)
	for _, td := range tracked {
		box := td.Box.Intersect(bounds)
		if box.Empty() {
			continue
		}
		drawRect(out, box)
	}
	return out
}

func drawRect(f *media.Frame, box image.Rectangle) {
	for t := 0; t < boxThickness; t++ {
		top := box.Min.Y + t
		bottom := box.Max.Y - 1 - t
		for x := box.Min.X; x < box.Max.X; x++ {
			setPixel(f, x, top)
			setPixel(f, x, bottom)
		}
		left := box.Min.X + t
		right := box.Max.X - 1 - t
		for y := box.Min.Y; y < box.Max.Y; y++ {
			setPixel(f, left, y)
			setPixel(f, right, y)
		}
	}
}

func setPixel(f *media.Frame, x, y int) {
	if x < 0 || y < 0 || x >= f.Width || y >= f.Height {
		return
	}
	i := (y*f.Width + x) * 3
	f.Data[i] = boxColor[0]
	f.Data[i+1] = boxColor[1]
	f.Data[i+2] = boxColor[2]
}
