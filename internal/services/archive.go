package services

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"path"

	"github.com/filevault/backend/internal/models"
	"github.com/filevault/backend/internal/storage"
	"github.com/filevault/backend/pkg/logger"
	"gorm.io/gorm"
)

// ArchiveBuilder materializes a folder subtree into a single zip stream.
// Entries are written as they are discovered, so memory stays bounded no
// matter how large the tree is.
type ArchiveBuilder struct {
	DB      *gorm.DB
	Storage storage.ObjectStore
}

func NewArchiveBuilder(db *gorm.DB, store storage.ObjectStore) *ArchiveBuilder {
	return &ArchiveBuilder{DB: db, Storage: store}
}

// WriteFolderZip streams a zip of everything under folder into w. The
// archive root is the folder itself, so a file at Reports/2024/q1.pdf ends
// up under the entry path "Reports/2024/q1.pdf".
//
// On error the zip writer is deliberately not finalized: the output is left
// without a central directory, so a partial transfer is recognizably
// corrupt instead of passing for a complete archive.
func (b *ArchiveBuilder) WriteFolderZip(ctx context.Context, w io.Writer, folder *models.Folder) error {
	zw := zip.NewWriter(w)

	if err := b.addFolder(ctx, zw, folder, folder.Name); err != nil {
		return err
	}

	return zw.Close()
}

func (b *ArchiveBuilder) addFolder(ctx context.Context, zw *zip.Writer, folder *models.Folder, prefix string) error {
	// Explicit directory entry so empty folders survive the round trip.
	if _, err := zw.Create(prefix + "/"); err != nil {
		return fmt.Errorf("adding directory entry %q: %w", prefix, err)
	}

	var files []models.File
	if err := b.DB.WithContext(ctx).
		Where("parent_id = ? AND owner_id = ?", folder.ID, folder.OwnerID).
		Order("filename ASC").
		Find(&files).Error; err != nil {
		return fmt.Errorf("listing files under %q: %w", prefix, err)
	}

	for i := range files {
		if err := b.addFile(ctx, zw, &files[i], prefix); err != nil {
			return err
		}
	}

	var children []models.Folder
	if err := b.DB.WithContext(ctx).
		Where("parent_id = ? AND owner_id = ?", folder.ID, folder.OwnerID).
		Order("name ASC").
		Find(&children).Error; err != nil {
		return fmt.Errorf("listing subfolders under %q: %w", prefix, err)
	}

	for i := range children {
		if err := b.addFolder(ctx, zw, &children[i], path.Join(prefix, children[i].Name)); err != nil {
			return err
		}
	}

	return nil
}

func (b *ArchiveBuilder) addFile(ctx context.Context, zw *zip.Writer, file *models.File, prefix string) error {
	obj, _, err := b.Storage.Download(ctx, file.StoragePath)
	if err != nil {
		// A record whose bytes are gone from storage should not sink the
		// whole archive; skip the entry and keep going.
		logger.Warn("archive_entry_skipped", map[string]interface{}{
			"file_id":      file.ID.String(),
			"filename":     file.Filename,
			"storage_path": file.StoragePath,
			"error":        err.Error(),
		})
		return nil
	}
	defer obj.Close()

	header := &zip.FileHeader{
		Name:     path.Join(prefix, file.Filename),
		Method:   zip.Deflate,
		Modified: file.UploadDate,
	}
	entry, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("creating archive entry %q: %w", header.Name, err)
	}

	if _, err := io.Copy(entry, obj); err != nil {
		return fmt.Errorf("writing archive entry %q: %w", header.Name, err)
	}

	return nil
}
