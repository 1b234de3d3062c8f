package domain

import (
	"time"

	"gorm.io/datatypes"
)

// ImportSessionRecord backs the database import-session store used when Redis is not configured.
type ImportSessionRecord struct {
	ID        string         `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	Payload   datatypes.JSON `gorm:"column:payload;not null" json:"payload"`
	ExpiresAt time.Time      `gorm:"column:expires_at;not null;index" json:"expires_at"`
	CreatedAt time.Time      `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time      `gorm:"column:updated_at" json:"updated_at"`
}

func (ImportSessionRecord) TableName() string {
	return "import_sessions"
}
