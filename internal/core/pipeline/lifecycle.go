package pipeline

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/gowvp/sentinel/internal/core/event"
	"github.com/gowvp/sentinel/internal/media"
	"github.com/ixugo/goddd/pkg/orm"
)

// EventRecorder 事件落库入口，event.Core 实现
type EventRecorder interface {
	AddEvent(ctx context.Context, in *event.AddEventInput) (*event.Event, error)
	TouchEvent(ctx context.Context, in *event.TouchEventInput) (*event.Event, error)
}

// Notifier 告警入口，alert.Core 实现
type Notifier interface {
	MaybeFire(label string, conf float64, cameraID string, frame *media.Frame)
}

type trackState struct {
	eventID  int64
	label    string
	maxConf  float32
	lastSeen time.Time
}

// Lifecycle 轨迹生命周期表
// 新轨迹落库并触发告警，持续轨迹刷新记录，过期轨迹从内存清出
type Lifecycle struct {
	m           sync.Mutex
	cameraID    string
	events      EventRecorder
	alerts      Notifier
	staleness   time.Duration
	snapshotDir string
	now         func() time.Time
	tracks      map[string]*trackState
}

func NewLifecycle(cameraID string, events EventRecorder, alerts Notifier, staleness time.Duration, snapshotDir string) *Lifecycle {
	return &Lifecycle{
		cameraID:    cameraID,
		events:      events,
		alerts:      alerts,
		staleness:   staleness,
		snapshotDir: snapshotDir,
		now:         time.Now,
		tracks:      make(map[string]*trackState),
	}
}

// Observe 消化一轮跟踪结果
// 持久化失败只记日志，检测管线不因数据库抖动而停摆
func (l *Lifecycle) Observe(ctx context.Context, tracked []TrackedDetection, frame *media.Frame) {
	l.m.Lock()
	defer l.m.Unlock()

	now := l.now()
	for _, td := range tracked {
		if st, ok := l.tracks[td.ID]; ok {
			l.continueTrack(ctx, td, st, now)
		} else {
			l.beginTrack(ctx, td, frame, now)
		}
	}

	for id, st := range l.tracks {
		if now.Sub(st.lastSeen) > l.staleness {
			slog.Debug("track went stale", "camera_id", l.cameraID, "track_id", id)
			delete(l.tracks, id)
		}
	}
}

func (l *Lifecycle) beginTrack(ctx context.Context, td TrackedDetection, frame *media.Frame, now time.Time) {
	key := numericTrackKey(td.ID)
	snapshot := l.saveSnapshot(key, frame, now)

	ev, err := l.events.AddEvent(ctx, &event.AddEventInput{
		TrackID:      strconv.FormatInt(key, 10),
		Label:        td.Label,
		CameraID:     l.cameraID,
		StartedAt:    orm.Time{Time: now},
		MaxConf:      float64(td.Conf),
		SnapshotPath: snapshot,
	})
	var eventID int64
	if err != nil {
		slog.Error("failed to persist event", "camera_id", l.cameraID, "track_id", td.ID, "err", err)
	} else {
		eventID = ev.ID
	}

	slog.Debug("cot event", "xml", GenerateDetectionCoT(td.Label, td.Conf))
	if l.alerts != nil {
		l.alerts.MaybeFire(td.Label, float64(td.Conf), l.cameraID, frame)
	}

	l.tracks[td.ID] = &trackState{
		eventID:  eventID,
		label:    td.Label,
		maxConf:  td.Conf,
		lastSeen: now,
	}
}

func (l *Lifecycle) continueTrack(ctx context.Context, td TrackedDetection, st *trackState, now time.Time) {
	st.lastSeen = now
	if td.Conf > st.maxConf {
		st.maxConf = td.Conf
		st.label = td.Label
	}

	if _, err := l.events.TouchEvent(ctx, &event.TouchEventInput{
		TrackID:  strconv.FormatInt(numericTrackKey(td.ID), 10),
		CameraID: l.cameraID,
		Label:    td.Label,
		Conf:     float64(td.Conf),
		SeenAt:   orm.Time{Time: now},
	}); err != nil {
		slog.Error("failed to refresh event", "camera_id", l.cameraID, "track_id", td.ID, "err", err)
	}
}

func (l *Lifecycle) saveSnapshot(key int64, frame *media.Frame, now time.Time) string {
	if frame == nil || l.snapshotDir == "" {
		return ""
	}
	buf, err := frame.EncodeJPEG(85)
	if err != nil {
		slog.Error("failed to encode snapshot", "camera_id", l.cameraID, "err", err)
		return ""
	}
	if err := os.MkdirAll(l.snapshotDir, 0o755); err != nil {
		slog.Error("failed to create snapshot dir", "dir", l.snapshotDir, "err", err)
		return ""
	}
	name := fmt.Sprintf("%s_%d_%d.jpg", l.cameraID, key, now.UnixMilli())
	path := filepath.Join(l.snapshotDir, name)
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		slog.Error("failed to write snapshot", "path", path, "err", err)
		return ""
	}
	return name
}

// ActiveTracks 当前存活的轨迹数，供资产状态接口使用
func (l *Lifecycle) ActiveTracks() int {
	l.m.Lock()
	defer l.m.Unlock()
	return len(l.tracks)
}

// numericTrackKey 把跟踪标识映射为数值键
// 非数字标识退化为 FNV-32 哈希取模，存在碰撞的可能
func numericTrackKey(token string) int64 {
	if n, err := strconv.ParseInt(token, 10, 64); err == nil {
		return n
	}
	h := fnv.New32a()
	h.Write([]byte(token))
	return int64(h.Sum32() % 1_000_000_000)
}
