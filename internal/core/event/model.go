package event

import (
	"github.com/ixugo/goddd/pkg/orm"
)

// Event 目标事件，一条记录对应一个被跟踪目标的完整生命周期
// 记录由检测管线插入和刷新，过期清理由后台任务负责
type Event struct {
	ID           int64    `gorm:"primaryKey;autoIncrement" json:"id"`
	TrackID      string   `gorm:"index;notNull;default:''" json:"track_id"` // 跟踪器分配的目标标识
	Label        string   `gorm:"notNull;default:''" json:"label"`          // 目标类别，如 person/car
	CameraID     string   `gorm:"index;notNull;default:''" json:"camera_id"`
	StartedAt    orm.Time `gorm:"index" json:"started_at"`   // 首次出现时间
	LastSeenAt   orm.Time `json:"last_seen_at"`              // 最近一次出现时间
	MaxConf      float64  `gorm:"notNull;default:0" json:"max_conf"` // 生命周期内的最高置信度
	SnapshotPath string   `gorm:"notNull;default:''" json:"snapshot_path"`
}

func (Event) TableName() string {
	return "events"
}
