package event

import (
	"github.com/ixugo/goddd/pkg/orm"
	"github.com/ixugo/goddd/pkg/web"
)

type FindEventInput struct {
	web.PagerFilter
	web.DateFilter
	CameraID string `form:"camera_id"` // 摄像头 ID
	Label    string `form:"label"`     // 目标类别
}

type AddEventInput struct {
	TrackID      string   `json:"track_id"`
	Label        string   `json:"label"`
	CameraID     string   `json:"camera_id"`
	StartedAt    orm.Time `json:"started_at"`
	MaxConf      float64  `json:"max_conf"`
	SnapshotPath string   `json:"snapshot_path"`
}

type TouchEventInput struct {
	TrackID      string   `json:"track_id"`
	CameraID     string   `json:"camera_id"`
	Label        string   `json:"label"`
	Conf         float64  `json:"conf"`
	SeenAt       orm.Time `json:"seen_at"`
	SnapshotPath string   `json:"snapshot_path"`
}
