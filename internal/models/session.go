// Package models defines the GORM rows for persisted monitoring sessions.
package models

import (
	"time"

	"gorm.io/gorm"
)

// Session is one finalized monitoring session as stored by the server.
// SessionID is the UUID minted by the monitor; re-pushing the same report
// replaces the session's collisions rather than duplicating them.
type Session struct {
	gorm.Model

	SessionID   string `gorm:"uniqueIndex;not null" json:"session_id"`
	Sensitivity string `gorm:"index" json:"sensitivity"`

	// Monitoring-host context reported with the session.
	Hostname string `gorm:"index" json:"hostname"`
	Platform string `json:"platform"`

	StartedAt       time.Time `json:"started_at"`
	EndedAt         time.Time `json:"ended_at"`
	DurationSeconds float64   `json:"duration_seconds"`

	CollisionCount    int `json:"collision_count"`
	VoltageDetections int `json:"voltage_detections"`
	CurrentDetections int `json:"current_detections"`

	Collisions []Collision `gorm:"foreignKey:SessionRowID" json:"collisions,omitempty"`
}

// Collision is one detected contact within a session. The per-joint vectors
// are stored as JSON text columns so the report round-trips losslessly.
type Collision struct {
	gorm.Model

	SessionRowID uint `gorm:"index;not null" json:"-"`

	// OffsetSeconds is the detection time relative to session start.
	OffsetSeconds float64   `json:"offset_seconds"`
	DetectedAt    time.Time `json:"detected_at"`

	Method     string  `gorm:"index" json:"method"`
	Confidence float64 `json:"confidence"`

	AffectedJoints string `json:"affected_joints"` // JSON array of joint indexes
	JointVoltages  string `json:"joint_voltages"`  // JSON array, volts
	JointCurrents  string `json:"joint_currents"`  // JSON array, amps
	VoltageDrops   string `json:"voltage_drops"`   // JSON array, volts
	Details        string `json:"details"`         // JSON object, detection context
}
