package models

import (
	"time"

	"github.com/google/uuid"
)

type File struct {
	BaseModel
	Filename    string     `json:"filename" gorm:"type:varchar(255);not null"`
	StoragePath string     `json:"storagePath" gorm:"type:text;not null"`
	MimeType    string     `json:"mimeType" gorm:"type:varchar(255);not null"`
	Size        int64      `json:"size" gorm:"not null;default:0"`
	UploadDate  time.Time  `json:"uploadDate" gorm:"not null"`
	ParentID    *uuid.UUID `json:"parentID,omitempty" gorm:"type:uuid;index"`
	OwnerID     uuid.UUID  `json:"ownerID" gorm:"type:uuid;not null;index"`

	Parent *Folder `json:"parent,omitempty" gorm:"foreignKey:ParentID"`
	Owner  User    `json:"owner,omitempty" gorm:"foreignKey:OwnerID;references:ID"`
}
