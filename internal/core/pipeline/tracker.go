package pipeline

import (
	"image"
	"math"
	"sort"
	"strconv"
)

const (
	// IOU 低于该值不视为同一目标
	iouThreshold = 0.3
	// IOU 为零时的质心距离兜底，像素
	centroidThreshold = 50.0
)

// Tracker 贪心 IOU 匹配器，为跨帧的同一目标分配稳定标识
// 只在有新鲜检测结果的帧上推进，中间帧沿用上一次的输出
type Tracker struct {
	nextID uint64
	active map[string]Detection
}

func NewTracker() *Tracker {
	return &Tracker{active: make(map[string]Detection)}
}

type candidate struct {
	trackID string
	detIdx  int
	score   float64
}

// Update 用一批新检测推进跟踪状态
// 匹配不上的检测分配新 ID，匹配不上的旧轨迹从匹配池移除
// 轨迹的生命周期管理（过期入库）由上层负责
func (t *Tracker) Update(detections []Detection) []TrackedDetection {
	// 打分：IOU 优先，IOU 为零时退化为质心距离
	candidates := make([]candidate, 0, len(detections)*len(t.active))
	for id, prev := range t.active {
		for i, det := range detections {
			if det.Label != prev.Label {
				continue
			}
			score := iou(prev.Box, det.Box)
			if score < iouThreshold {
				if dist := centroidDistance(prev, det); score == 0 && dist < centroidThreshold {
					score = iouThreshold * (1 - dist/centroidThreshold)
				} else {
					continue
				}
			}
			candidates = append(candidates, candidate{trackID: id, detIdx: i, score: score})
		}
	}
	sort.Slice(candidates, func(a, b int) bool { return candidates[a].score > candidates[b].score })

	matchedTrack := make(map[string]bool, len(t.active))
	matchedDet := make(map[int]bool, len(detections))
	assignment := make(map[int]string, len(detections))
	for _, c := range candidates {
		if matchedTrack[c.trackID] || matchedDet[c.detIdx] {
			continue
		}
		matchedTrack[c.trackID] = true
		matchedDet[c.detIdx] = true
		assignment[c.detIdx] = c.trackID
	}

	next := make(map[string]Detection, len(detections))
	out := make([]TrackedDetection, 0, len(detections))
	for i, det := range detections {
		id, ok := assignment[i]
		if !ok {
			t.nextID++
			id = strconv.FormatUint(t.nextID, 10)
		}
		next[id] = det
		out = append(out, TrackedDetection{ID: id, Detection: det})
	}
	t.active = next
	return out
}

func iou(a, b image.Rectangle) float64 {
	inter := a.Intersect(b)
	if inter.Empty() {
		return 0
	}
	interArea := float64(inter.Dx() * inter.Dy())
	union := float64(a.Dx()*a.Dy()+b.Dx()*b.Dy()) - interArea
	if union <= 0 {
		return 0
	}
	return interArea / union
}

func centroidDistance(a, b Detection) float64 {
	ca, cb := a.centroid(), b.centroid()
	dx := float64(ca.X - cb.X)
	dy := float64(ca.Y - cb.Y)
	return math.Sqrt(dx*dx + dy*dy)
}
