package database

import (
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rivofx/newpulse/internal/models"
)

// activePairIndex allows a single pending or accepted record per unordered pair.
const activePairIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_friendships_active_pair
	ON friendships (LEAST(requester_id, addressee_id), GREATEST(requester_id, addressee_id))
	WHERE status IN ('pending', 'accepted')`

// Connect opens the database. The gorm logger writes through logrus.
func Connect(dsn string) (*gorm.DB, error) {
	gormLogger := logger.New(
		logrus.StandardLogger(),
		logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function": "database.Connect",
	}).Info("Database connection established")
	return db, nil
}

// Migrate creates the schema and the indexes gorm tags cannot express.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Profile{},
		&models.Friendship{},
		&models.Conversation{},
		&models.ConversationMember{},
		&models.PrivateMessage{},
		&models.GlobalMessage{},
		&models.MessageReport{},
	)
	if err != nil {
		return err
	}
	if err := db.Exec(activePairIndex).Error; err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"function": "database.Migrate",
	}).Info("Database migrated successfully")
	return nil
}
