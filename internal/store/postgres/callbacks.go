package postgres

import (
	"context"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/rivofx/newpulse/internal/feed"
)

// publishedTables are announced by the create/update callbacks.
var publishedTables = map[string]bool{
	feed.TableFriendships:     true,
	feed.TablePrivateMessages: true,
	feed.TableGlobalMessages:  true,
}

func registerFeedCallbacks(db *gorm.DB, pub feed.Publisher) error {
	if err := db.Callback().Create().After("gorm:create").
		Register("newpulse:feed_insert", publishAfter(pub, feed.EventInsert)); err != nil {
		return err
	}
	return db.Callback().Update().After("gorm:update").
		Register("newpulse:feed_update", publishAfter(pub, feed.EventUpdate))
}

func publishAfter(pub feed.Publisher, typ feed.EventType) func(*gorm.DB) {
	return func(tx *gorm.DB) {
		if tx.Error != nil || tx.RowsAffected == 0 || tx.Statement.Schema == nil {
			return
		}
		table := tx.Statement.Schema.Table
		if !publishedTables[table] {
			return
		}

		row := tx.Statement.Dest
		if typ == feed.EventUpdate {
			// Updates run with RETURNING into the model.
			row = tx.Statement.Model
		}

		ctx := tx.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}
		publish(ctx, pub, table, typ, row)
	}
}

func publish(ctx context.Context, pub feed.Publisher, table string, typ feed.EventType, row any) {
	e, err := feed.NewEvent(table, typ, row)
	if err == nil {
		err = pub.Publish(ctx, e)
	}
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "postgres.publish",
			"table":    table,
			"error":    err.Error(),
		}).Warn("Failed to publish change event")
	}
}
