package intake

import (
	"context"
	"fmt"

	"github.com/gowvp/sentinel/internal/media"
	"github.com/gowvp/sentinel/pkg/ffstream"
)

// DecoderSource 把解码器输出适配为 FrameSource
type DecoderSource struct {
	cameraID      string
	width, height int
	frames        <-chan *ffstream.FrameData
	errs          <-chan error
}

func NewDecoderSource(cameraID string, width, height int, dec *ffstream.Decoder) *DecoderSource {
	return &DecoderSource{
		cameraID: cameraID,
		width:    width,
		height:   height,
		frames:   dec.Frames(),
		errs:     dec.Error(),
	}
}

func (s *DecoderSource) ReadFrame(ctx context.Context) (*media.Frame, error) {
	select {
	case fd, ok := <-s.frames:
		if !ok {
			return nil, fmt.Errorf("decoder channel closed")
		}
		return media.NewFrame(s.cameraID, s.width, s.height, fd.Data, fd.Timestamp)
	case err := <-s.errs:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
