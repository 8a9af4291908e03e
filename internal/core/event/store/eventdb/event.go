package eventdb

import (
	"context"

	"github.com/gowvp/sentinel/internal/core/event"
	"github.com/ixugo/goddd/pkg/orm"
	"gorm.io/gorm"
)

var _ event.EventStorer = &Event{}

type Event struct {
	db *gorm.DB
}

func NewEvent(db *gorm.DB) *Event {
	return &Event{db: db}
}

func (e *Event) scopes(ctx context.Context, opts ...orm.QueryOption) *gorm.DB {
	db := e.db.WithContext(ctx).Model(&event.Event{})
	for _, opt := range opts {
		db = opt(db)
	}
	return db
}

// Find 分页查询，total 为过滤后的总数
func (e *Event) Find(ctx context.Context, items *[]*event.Event, pager orm.Pager, opts ...orm.QueryOption) (int64, error) {
	var total int64
	if err := e.scopes(ctx, opts...).Count(&total).Error; err != nil {
		return 0, err
	}
	err := e.scopes(ctx, opts...).
		Offset(pager.Offset()).
		Limit(pager.Limit()).
		Find(items).Error
	return total, err
}

func (e *Event) Get(ctx context.Context, out *event.Event, opts ...orm.QueryOption) error {
	return e.scopes(ctx, opts...).First(out).Error
}

func (e *Event) Add(ctx context.Context, in *event.Event) error {
	return e.db.WithContext(ctx).Create(in).Error
}

// Edit 读取、修改、回写在同一事务中完成
func (e *Event) Edit(ctx context.Context, out *event.Event, changeFn func(*event.Event), opts ...orm.QueryOption) error {
	return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		db := tx.Model(&event.Event{})
		for _, opt := range opts {
			db = opt(db)
		}
		if err := db.First(out).Error; err != nil {
			return err
		}
		changeFn(out)
		return tx.Save(out).Error
	})
}

func (e *Event) Del(ctx context.Context, out *event.Event, opts ...orm.QueryOption) error {
	return e.scopes(ctx, opts...).Delete(out).Error
}

func (e *Event) Count(ctx context.Context, opts ...orm.QueryOption) (int64, error) {
	var total int64
	err := e.scopes(ctx, opts...).Count(&total).Error
	return total, err
}
