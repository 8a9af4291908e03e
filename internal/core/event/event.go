package event

import (
	"context"
	"log/slog"

	"github.com/ixugo/goddd/pkg/orm"
	"github.com/ixugo/goddd/pkg/reason"
	"github.com/jinzhu/copier"
)

// Storer data persistence
type Storer interface {
	Event() EventStorer
}

// EventStorer Instantiation interface
type EventStorer interface {
	Find(context.Context, *[]*Event, orm.Pager, ...orm.QueryOption) (int64, error)
	Get(context.Context, *Event, ...orm.QueryOption) error
	Add(context.Context, *Event) error
	Edit(context.Context, *Event, func(*Event), ...orm.QueryOption) error
	Del(context.Context, *Event, ...orm.QueryOption) error
	Count(context.Context, ...orm.QueryOption) (int64, error)
}

// Core business domain
type Core struct {
	store Storer
}

// NewCore create business domain
func NewCore(store Storer) Core {
	return Core{store: store}
}

// AddEvent 新目标出现时插入记录
func (c Core) AddEvent(ctx context.Context, in *AddEventInput) (*Event, error) {
	var out Event
	if err := copier.Copy(&out, in); err != nil {
		slog.ErrorContext(ctx, "Copy", "err", err)
	}
	out.LastSeenAt = out.StartedAt

	if err := c.store.Event().Add(ctx, &out); err != nil {
		return nil, reason.ErrDB.Withf(`Add err[%s]`, err.Error())
	}
	return &out, nil
}

// TouchEvent 目标持续出现时刷新记录
// last_seen_at 前移，max_conf 只增不减，类别允许被更高置信度的结果覆盖
func (c Core) TouchEvent(ctx context.Context, in *TouchEventInput) (*Event, error) {
	var out Event
	err := c.store.Event().Edit(ctx, &out, func(e *Event) {
		e.LastSeenAt = in.SeenAt
		if in.Conf > e.MaxConf {
			e.MaxConf = in.Conf
			if in.Label != "" {
				e.Label = in.Label
			}
		}
		if in.SnapshotPath != "" {
			e.SnapshotPath = in.SnapshotPath
		}
	}, orm.Where("track_id=? AND camera_id=?", in.TrackID, in.CameraID))
	if err != nil {
		if orm.IsErrRecordNotFound(err) {
			return nil, reason.ErrNotFound.Withf(`Touch track[%s] err[%s]`, in.TrackID, err.Error())
		}
		return nil, reason.ErrDB.Withf(`Touch track[%s] err[%s]`, in.TrackID, err.Error())
	}
	return &out, nil
}

// FindEvents 分页查询事件列表，支持摄像头、类别和时间范围筛选
func (c Core) FindEvents(ctx context.Context, in *FindEventInput) ([]*Event, int64, error) {
	query := orm.NewQuery(4).OrderBy("started_at DESC")

	if in.CameraID != "" {
		query.Where("camera_id = ?", in.CameraID)
	}
	if in.Label != "" {
		query.Where("label = ?", in.Label)
	}
	if in.StartMs > 0 && in.EndMs > 0 {
		query.Where("started_at >= ? AND started_at <= ?", in.StartAt(), in.EndAt())
	}

	items := make([]*Event, 0, in.Limit())
	total, err := c.store.Event().Find(ctx, &items, in, query.Encode()...)
	if err != nil {
		return nil, 0, reason.ErrDB.Withf(`Find in[%+v] err[%s]`, in, err.Error())
	}
	return items, total, nil
}

// GetEvent Query a single object
func (c Core) GetEvent(ctx context.Context, id int64) (*Event, error) {
	out := Event{ID: id}
	if err := c.store.Event().Get(ctx, &out, orm.Where("id=?", id)); err != nil {
		if orm.IsErrRecordNotFound(err) {
			return nil, reason.ErrNotFound.Withf(`Get id[%v] err[%s]`, id, err.Error())
		}
		return nil, reason.ErrDB.Withf(`Get id[%v] err[%s]`, id, err.Error())
	}
	return &out, nil
}

// DelEvent 删除事件记录，返回被删对象
func (c Core) DelEvent(ctx context.Context, id int64) (*Event, error) {
	out, err := c.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := c.store.Event().Del(ctx, out, orm.Where("id=?", id)); err != nil {
		return nil, reason.ErrDB.Withf(`Del id[%v] err[%s]`, id, err.Error())
	}
	return out, nil
}

// CountEvents 事件总数，供健康页与摄像头概览使用
func (c Core) CountEvents(ctx context.Context, cameraID string) (int64, error) {
	opts := make([]orm.QueryOption, 0, 1)
	if cameraID != "" {
		opts = append(opts, orm.Where("camera_id=?", cameraID))
	}
	total, err := c.store.Event().Count(ctx, opts...)
	if err != nil {
		return 0, reason.ErrDB.Withf(`Count err[%s]`, err.Error())
	}
	return total, nil
}
