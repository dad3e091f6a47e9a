package collection

import "time"

// Model is a note type.
type Model struct {
	ID        uint     `gorm:"primaryKey"`
	Name      string   `gorm:"size:191;uniqueIndex"`
	Fields    []string `gorm:"serializer:json;type:text"`
	CreatedAt time.Time
}

// Note is a stored note.
type Note struct {
	ID        int64             `gorm:"primaryKey;autoIncrement"`
	Model     string            `gorm:"size:191;index"`
	Key       string            `gorm:"column:note_key;size:191;index"`
	Deck      string            `gorm:"size:255"`
	Fields    map[string]string `gorm:"serializer:json;type:text"`
	Tags      []string          `gorm:"serializer:json;type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Media is a stored media file.
type Media struct {
	Name      string `gorm:"primaryKey;size:191"`
	Data      []byte
	Size      int64
	UpdatedAt time.Time
}

// TableName keeps the table name singular.
func (Media) TableName() string {
	return "media"
}
