// Package model defines the records kept in the durable store
package model

type FileKind string

const (
	KindOriginal   FileKind = "original"
	KindTranscoded FileKind = "transcoded"
)

type File struct {
	ID        string   `gorm:"primaryKey" json:"id"`
	Owner     string   `gorm:"index;not null" json:"owner"`
	Kind      FileKind `gorm:"not null" json:"kind"`
	Name      string   `json:"name"`
	Path      string   `json:"path"` // Location on local disk
	Size      int64    `json:"size"` // 0 until known, for transcoded files until their job is terminal
	MimeType  string   `json:"mimetype"`
	CreatedAt int64    `gorm:"not null;autoCreateTime:false" json:"createdAt"` // Unix milliseconds
}
