// Package server manages the armsentry collection server: the SQLite-backed
// session store and the Gin API that exposes it.
package server

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ardelt/armsentry/internal/config"
	"github.com/ardelt/armsentry/internal/models"
	"github.com/ardelt/armsentry/internal/monitor"
	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// InitDB opens the database and runs AutoMigrate.
func InitDB(cfg *config.Config, log *logrus.Logger) error {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "sqlite", "":
		dialector = sqlite.Open(cfg.DBPath)
	default:
		return fmt.Errorf("unsupported db_driver %q (use 'sqlite')", cfg.DBDriver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	if err := db.AutoMigrate(&models.Session{}, &models.Collision{}); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}

	DB = db
	log.Infof("opened %s/%s", cfg.DBDriver, cfg.DBPath)
	return nil
}

// SaveReport persists a pushed session report. A report with a known
// session_id replaces that session's collisions instead of appending
// duplicates, so re-pushing after a flaky network is safe.
func SaveReport(rep *monitor.Report) (*models.Session, error) {
	if rep.SessionID == "" {
		return nil, fmt.Errorf("report missing session_id")
	}

	row := models.Session{
		SessionID:         rep.SessionID,
		Sensitivity:       string(rep.Sensitivity),
		Hostname:          rep.Hostname,
		Platform:          rep.Platform,
		DurationSeconds:   rep.TotalDuration,
		CollisionCount:    rep.CollisionCount,
		VoltageDetections: rep.VoltageDetections,
		CurrentDetections: rep.CurrentDetections,
	}
	if t, err := time.ParseInLocation("2006-01-02 15:04:05", rep.StartTime, time.Local); err == nil {
		row.StartedAt = t
	}
	if t, err := time.ParseInLocation("2006-01-02 15:04:05", rep.EndTime, time.Local); err == nil {
		row.EndedAt = t
	}

	err := DB.Transaction(func(tx *gorm.DB) error {
		var existing models.Session
		res := tx.Where("session_id = ?", rep.SessionID).First(&existing)
		switch {
		case res.Error == gorm.ErrRecordNotFound:
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		case res.Error != nil:
			return res.Error
		default:
			row.ID = existing.ID
			row.CreatedAt = existing.CreatedAt
			if err := tx.Save(&row).Error; err != nil {
				return err
			}
			if err := tx.Where("session_row_id = ?", row.ID).Delete(&models.Collision{}).Error; err != nil {
				return err
			}
		}

		for _, ev := range rep.CollisionEvents {
			c := models.Collision{
				SessionRowID:   row.ID,
				OffsetSeconds:  ev.Time,
				Method:         string(ev.DetectionMethod),
				Confidence:     ev.Confidence,
				AffectedJoints: mustJSON(ev.AffectedJoints),
				JointVoltages:  mustJSON(ev.JointVoltages),
				JointCurrents:  mustJSON(ev.JointCurrents),
				VoltageDrops:   mustJSON(ev.VoltageDrops),
				Details:        mustJSON(ev.Details),
			}
			if t, err := time.Parse(time.RFC3339Nano, ev.Timestamp); err == nil {
				c.DetectedAt = t
			}
			if err := tx.Create(&c).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// ListSessions returns all sessions, most recent first.
func ListSessions() ([]models.Session, error) {
	var sessions []models.Session
	err := DB.Order("started_at desc").Find(&sessions).Error
	return sessions, err
}

// GetSession returns one session by its UUID.
func GetSession(sessionID string) (*models.Session, error) {
	var s models.Session
	err := DB.Where("session_id = ?", sessionID).First(&s).Error
	return &s, err
}

// GetCollisions returns a session's collisions in detection order.
func GetCollisions(sessionID string) ([]models.Collision, error) {
	s, err := GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	var collisions []models.Collision
	err = DB.Where("session_row_id = ?", s.ID).Order("offset_seconds asc").Find(&collisions).Error
	return collisions, err
}

// DeleteSession removes a session and its collisions.
func DeleteSession(sessionID string) error {
	s, err := GetSession(sessionID)
	if err != nil {
		return err
	}
	return DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("session_row_id = ?", s.ID).Delete(&models.Collision{}).Error; err != nil {
			return err
		}
		return tx.Delete(s).Error
	})
}

// mustJSON encodes v, falling back to "null" — the inputs are plain slices
// and structs that cannot fail to marshal.
func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(data)
}
