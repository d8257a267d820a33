package models

import (
	"time"

	"gorm.io/datatypes"
)

type ChannelType string

const (
	ChannelTypeEmail    ChannelType = "EMAIL"
	ChannelTypeWhatsApp ChannelType = "WHATSAPP"
	ChannelTypeVoice    ChannelType = "VOICE"
)

// Channel holds a tenant's provider configuration for one channel type.
// Settings carries the provider credentials; the credential resolver
// decodes it before a send.
type Channel struct {
	ID        uint           `gorm:"primaryKey;autoIncrement"`
	TenantID  uint           `gorm:"not null;index"`
	Name      string         `gorm:"type:varchar(255);not null"`
	Type      ChannelType    `gorm:"type:varchar(20);not null"`
	Settings  datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt time.Time      `gorm:"autoCreateTime"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime"`
}

type Template struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	TenantID  uint      `gorm:"not null;index"`
	Name      string    `gorm:"type:varchar(255);not null"`
	Subject   string    `gorm:"type:varchar(500)"`
	Body      string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}
