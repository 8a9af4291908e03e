package data

import (
	"github.com/gowvp/sentinel/internal/core/event"
	"gorm.io/gorm"
)

// AutoMigrate 启动时建表，事件表只增不改列
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&event.Event{},
	)
}
