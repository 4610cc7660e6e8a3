package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/filevault/backend/internal/models"
	"github.com/filevault/backend/internal/storage"
	"github.com/filevault/backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ItemKind string

const (
	ItemKindFolder ItemKind = "folder"
	ItemKindFile   ItemKind = "file"
)

func ParseItemKind(value string) (ItemKind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "folder":
		return ItemKindFolder, nil
	case "file":
		return ItemKindFile, nil
	default:
		return "", fmt.Errorf("%w: unknown item type %q", ErrInvalidInput, value)
	}
}

// HierarchyService owns all folder/file tree operations. Every entry point
// takes the owner id explicitly and applies it in the query, so one user can
// never see or mutate another user's tree.
type HierarchyService struct {
	DB      *gorm.DB
	Storage storage.ObjectStore
}

func NewHierarchyService(db *gorm.DB, store storage.ObjectStore) *HierarchyService {
	return &HierarchyService{DB: db, Storage: store}
}

// ListChildren returns the direct children of a folder, or the root-level
// items when parentID is nil. It does not recurse.
func (s *HierarchyService) ListChildren(ctx context.Context, ownerID uuid.UUID, parentID *uuid.UUID) ([]models.Folder, []models.File, error) {
	if parentID != nil {
		if _, err := s.GetFolder(ctx, ownerID, *parentID); err != nil {
			return nil, nil, err
		}
	}

	folderQuery := s.DB.WithContext(ctx).Where("owner_id = ?", ownerID)
	fileQuery := s.DB.WithContext(ctx).Where("owner_id = ?", ownerID)
	if parentID == nil {
		folderQuery = folderQuery.Where("parent_id IS NULL")
		fileQuery = fileQuery.Where("parent_id IS NULL")
	} else {
		folderQuery = folderQuery.Where("parent_id = ?", *parentID)
		fileQuery = fileQuery.Where("parent_id = ?", *parentID)
	}

	folders := make([]models.Folder, 0)
	if err := folderQuery.Order("name ASC").Find(&folders).Error; err != nil {
		return nil, nil, fmt.Errorf("listing folders: %w", err)
	}

	files := make([]models.File, 0)
	if err := fileQuery.Order("filename ASC").Find(&files).Error; err != nil {
		return nil, nil, fmt.Errorf("listing files: %w", err)
	}

	return folders, files, nil
}

// CreateFolder inserts a new folder node. Sibling names are allowed to
// collide; duplicates are acceptable here.
func (s *HierarchyService) CreateFolder(ctx context.Context, ownerID uuid.UUID, name string, parentID *uuid.UUID) (*models.Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: folder name is required", ErrInvalidInput)
	}

	if parentID != nil {
		if _, err := s.GetFolder(ctx, ownerID, *parentID); err != nil {
			return nil, err
		}
	}

	folder := models.Folder{
		Name:     name,
		ParentID: parentID,
		OwnerID:  ownerID,
	}
	if err := s.DB.WithContext(ctx).Create(&folder).Error; err != nil {
		return nil, fmt.Errorf("creating folder: %w", err)
	}

	return &folder, nil
}

// Rename changes the display name of a folder or file. Renaming an item to
// its current name is a no-op that still succeeds.
func (s *HierarchyService) Rename(ctx context.Context, ownerID, itemID uuid.UUID, kind ItemKind, newName string) error {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return fmt.Errorf("%w: new name is required", ErrInvalidInput)
	}

	switch kind {
	case ItemKindFile:
		file, err := s.GetFile(ctx, ownerID, itemID)
		if err != nil {
			return err
		}
		if err := s.DB.WithContext(ctx).Model(file).Update("filename", newName).Error; err != nil {
			return fmt.Errorf("renaming file: %w", err)
		}
	case ItemKindFolder:
		folder, err := s.GetFolder(ctx, ownerID, itemID)
		if err != nil {
			return err
		}
		if err := s.DB.WithContext(ctx).Model(folder).Update("name", newName).Error; err != nil {
			return fmt.Errorf("renaming folder: %w", err)
		}
	default:
		return fmt.Errorf("%w: unknown item type %q", ErrInvalidInput, kind)
	}

	return nil
}

// Move reassigns an item's parent. A nil newParentID moves it to root.
// Moving a folder into itself or any of its descendants is rejected, since
// that would detach the subtree into a cycle.
func (s *HierarchyService) Move(ctx context.Context, ownerID, itemID uuid.UUID, kind ItemKind, newParentID *uuid.UUID) error {
	if newParentID != nil {
		if _, err := s.GetFolder(ctx, ownerID, *newParentID); err != nil {
			return err
		}
	}

	switch kind {
	case ItemKindFile:
		file, err := s.GetFile(ctx, ownerID, itemID)
		if err != nil {
			return err
		}
		if err := s.DB.WithContext(ctx).Model(file).Update("parent_id", newParentID).Error; err != nil {
			return fmt.Errorf("moving file: %w", err)
		}
	case ItemKindFolder:
		folder, err := s.GetFolder(ctx, ownerID, itemID)
		if err != nil {
			return err
		}
		if newParentID != nil {
			if *newParentID == folder.ID {
				return ErrCycle
			}
			inSubtree, err := s.isDescendant(ctx, folder.ID, *newParentID)
			if err != nil {
				return fmt.Errorf("validating move: %w", err)
			}
			if inSubtree {
				return ErrCycle
			}
		}
		if err := s.DB.WithContext(ctx).Model(folder).Update("parent_id", newParentID).Error; err != nil {
			return fmt.Errorf("moving folder: %w", err)
		}
	default:
		return fmt.Errorf("%w: unknown item type %q", ErrInvalidInput, kind)
	}

	return nil
}

// Delete removes an item. Deleting a folder cascades to every descendant
// folder and file, including the files' stored objects, so no dangling
// parent references are ever left behind.
func (s *HierarchyService) Delete(ctx context.Context, ownerID, itemID uuid.UUID, kind ItemKind) error {
	switch kind {
	case ItemKindFile:
		file, err := s.GetFile(ctx, ownerID, itemID)
		if err != nil {
			return err
		}
		return s.deleteFile(ctx, file)
	case ItemKindFolder:
		folder, err := s.GetFolder(ctx, ownerID, itemID)
		if err != nil {
			return err
		}
		return s.deleteFolderRecursive(ctx, folder)
	default:
		return fmt.Errorf("%w: unknown item type %q", ErrInvalidInput, kind)
	}
}

// GetParent resolves a folder's immediate ancestor. A nil result with a nil
// error means the folder sits at root level.
func (s *HierarchyService) GetParent(ctx context.Context, ownerID, folderID uuid.UUID) (*models.Folder, error) {
	folder, err := s.GetFolder(ctx, ownerID, folderID)
	if err != nil {
		return nil, err
	}
	if folder.ParentID == nil {
		return nil, nil
	}
	return s.GetFolder(ctx, ownerID, *folder.ParentID)
}

// Search performs a case-insensitive substring match over the owner's whole
// tree, regardless of where items sit in it.
func (s *HierarchyService) Search(ctx context.Context, ownerID uuid.UUID, term string) ([]models.Folder, []models.File, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, nil, fmt.Errorf("%w: search term is required", ErrInvalidInput)
	}

	pattern := "%" + strings.ToLower(term) + "%"

	folders := make([]models.Folder, 0)
	if err := s.DB.WithContext(ctx).
		Where("owner_id = ? AND LOWER(name) LIKE ?", ownerID, pattern).
		Order("name ASC").
		Find(&folders).Error; err != nil {
		return nil, nil, fmt.Errorf("searching folders: %w", err)
	}

	files := make([]models.File, 0)
	if err := s.DB.WithContext(ctx).
		Where("owner_id = ? AND LOWER(filename) LIKE ?", ownerID, pattern).
		Order("filename ASC").
		Find(&files).Error; err != nil {
		return nil, nil, fmt.Errorf("searching files: %w", err)
	}

	return folders, files, nil
}

func (s *HierarchyService) GetFolder(ctx context.Context, ownerID, folderID uuid.UUID) (*models.Folder, error) {
	var folder models.Folder
	err := s.DB.WithContext(ctx).First(&folder, "id = ? AND owner_id = ?", folderID, ownerID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: folder %s", ErrNotFound, folderID)
		}
		return nil, fmt.Errorf("loading folder: %w", err)
	}
	return &folder, nil
}

func (s *HierarchyService) GetFile(ctx context.Context, ownerID, fileID uuid.UUID) (*models.File, error) {
	var file models.File
	err := s.DB.WithContext(ctx).First(&file, "id = ? AND owner_id = ?", fileID, ownerID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: file %s", ErrNotFound, fileID)
		}
		return nil, fmt.Errorf("loading file: %w", err)
	}
	return &file, nil
}

// isDescendant reports whether candidate sits inside ancestor's subtree,
// by walking candidate's parent chain up to the root.
func (s *HierarchyService) isDescendant(ctx context.Context, ancestorID, candidateID uuid.UUID) (bool, error) {
	current := candidateID
	for {
		if current == ancestorID {
			return true, nil
		}

		var folder models.Folder
		err := s.DB.WithContext(ctx).Select("id", "parent_id").First(&folder, "id = ?", current).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return false, nil
			}
			return false, err
		}
		if folder.ParentID == nil {
			return false, nil
		}
		current = *folder.ParentID
	}
}

func (s *HierarchyService) deleteFile(ctx context.Context, file *models.File) error {
	if file.StoragePath != "" {
		if err := s.Storage.Delete(ctx, file.StoragePath); err != nil {
			return fmt.Errorf("deleting stored object: %w", err)
		}
	}
	if err := s.DB.WithContext(ctx).Delete(&models.File{}, "id = ?", file.ID).Error; err != nil {
		return fmt.Errorf("deleting file record: %w", err)
	}

	logger.InfoWithUser(file.OwnerID.String(), "file_deleted", map[string]interface{}{
		"file_id":  file.ID.String(),
		"filename": file.Filename,
	})
	return nil
}

func (s *HierarchyService) deleteFolderRecursive(ctx context.Context, folder *models.Folder) error {
	var files []models.File
	if err := s.DB.WithContext(ctx).Where("parent_id = ? AND owner_id = ?", folder.ID, folder.OwnerID).Find(&files).Error; err != nil {
		return fmt.Errorf("listing folder files: %w", err)
	}
	for i := range files {
		if err := s.deleteFile(ctx, &files[i]); err != nil {
			return err
		}
	}

	var children []models.Folder
	if err := s.DB.WithContext(ctx).Where("parent_id = ? AND owner_id = ?", folder.ID, folder.OwnerID).Find(&children).Error; err != nil {
		return fmt.Errorf("listing subfolders: %w", err)
	}
	for i := range children {
		if err := s.deleteFolderRecursive(ctx, &children[i]); err != nil {
			return err
		}
	}

	if err := s.DB.WithContext(ctx).Delete(&models.Folder{}, "id = ?", folder.ID).Error; err != nil {
		return fmt.Errorf("deleting folder record: %w", err)
	}

	logger.InfoWithUser(folder.OwnerID.String(), "folder_deleted", map[string]interface{}{
		"folder_id": folder.ID.String(),
		"name":      folder.Name,
	})
	return nil
}
