package record

import (
	"bufio"
	"fmt"
	"os"

	"github.com/grafov/m3u8"
)

// SegmentInfo 播放列表中的一个切片
type SegmentInfo struct {
	URI      string  `json:"uri"`
	Duration float64 `json:"duration"`
}

// PlaylistInfo 滚动播放列表的概览，供面板接口展示
type PlaylistInfo struct {
	TargetDuration float64       `json:"target_duration"`
	SequenceNo     uint64        `json:"sequence_no"`
	Segments       []SegmentInfo `json:"segments"`
}

// ReadPlaylist 解析编码器维护的 m3u8 文件
func ReadPlaylist(path string) (*PlaylistInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open playlist: %w", err)
	}
	defer f.Close()

	pl, listType, err := m3u8.DecodeFrom(bufio.NewReader(f), true)
	if err != nil {
		return nil, fmt.Errorf("failed to decode playlist: %w", err)
	}
	if listType != m3u8.MEDIA {
		return nil, fmt.Errorf("unexpected playlist type: %v", listType)
	}

	mp := pl.(*m3u8.MediaPlaylist)
	out := PlaylistInfo{
		TargetDuration: mp.TargetDuration,
		SequenceNo:     mp.SeqNo,
		Segments:       make([]SegmentInfo, 0, mp.Count()),
	}
	for _, seg := range mp.Segments {
		if seg == nil {
			continue
		}
		out.Segments = append(out.Segments, SegmentInfo{URI: seg.URI, Duration: seg.Duration})
	}
	return &out, nil
}
