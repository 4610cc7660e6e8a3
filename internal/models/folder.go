package models

import "github.com/google/uuid"

// Folder is a node in a user's folder forest. ParentID == nil means the
// folder sits at root level. The parent chain must never form a cycle;
// the hierarchy service enforces this on every move.
type Folder struct {
	BaseModel
	Name     string     `json:"name" gorm:"type:varchar(255);not null"`
	ParentID *uuid.UUID `json:"parentID,omitempty" gorm:"type:uuid;index"`
	OwnerID  uuid.UUID  `json:"ownerID" gorm:"type:uuid;not null;index"`

	Parent   *Folder  `json:"parent,omitempty" gorm:"foreignKey:ParentID"`
	Children []Folder `json:"children,omitempty" gorm:"foreignKey:ParentID"`
	Files    []File   `json:"files,omitempty" gorm:"foreignKey:ParentID"`
	Owner    User     `json:"owner,omitempty" gorm:"foreignKey:OwnerID;references:ID"`
}

func (Folder) TableName() string {
	return "folders"
}
