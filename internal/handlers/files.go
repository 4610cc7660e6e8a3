package handlers

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/filevault/backend/internal/middleware"
	"github.com/filevault/backend/internal/models"
	"github.com/filevault/backend/internal/services"
	"github.com/filevault/backend/internal/storage"
	"github.com/filevault/backend/pkg/logger"
	"github.com/filevault/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type FilesHandler struct {
	DB        *gorm.DB
	Storage   storage.ObjectStore
	Hierarchy *services.HierarchyService
}

func NewFilesHandler(db *gorm.DB, store storage.ObjectStore, hierarchy *services.HierarchyService) *FilesHandler {
	return &FilesHandler{DB: db, Storage: store, Hierarchy: hierarchy}
}

func (h *FilesHandler) Upload(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "file is required")
	}

	parentID, err := parseOptionalUUID(c.FormValue("parentId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid parentId")
	}
	if parentID != nil {
		if _, err := h.Hierarchy.GetFolder(c.Context(), currentUser.ID, *parentID); err != nil {
			return serviceError(c, err, "upload_parent_lookup_failed")
		}
	}

	stream, err := fileHeader.Open()
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed opening uploaded file")
	}
	defer stream.Close()

	filename := filepath.Base(strings.TrimSpace(fileHeader.Filename))
	if filename == "" || filename == "." {
		return utils.Error(c, fiber.StatusBadRequest, "invalid filename")
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(filename))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	objectName := fmt.Sprintf("%s/%s/%s", currentUser.ID.String(), uuid.New().String(), filename)
	if err := h.Storage.Upload(c.Context(), objectName, stream, fileHeader.Size, contentType); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed uploading file")
	}

	entry := models.File{
		Filename:    filename,
		StoragePath: objectName,
		MimeType:    contentType,
		Size:        fileHeader.Size,
		UploadDate:  time.Now().UTC(),
		ParentID:    parentID,
		OwnerID:     currentUser.ID,
	}

	if err := h.DB.Create(&entry).Error; err != nil {
		_ = h.Storage.Delete(c.Context(), objectName)
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating file record")
	}

	logger.InfoWithUser(currentUser.ID.String(), "file_uploaded", map[string]interface{}{
		"file_id":      entry.ID.String(),
		"filename":     filename,
		"size":         fileHeader.Size,
		"mime_type":    contentType,
		"storage_path": objectName,
	})

	return utils.Success(c, fiber.StatusCreated, entry)
}

// Download streams a file's bytes to its owner.
func (h *FilesHandler) Download(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	fileID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid file id")
	}

	file, err := h.Hierarchy.GetFile(c.Context(), currentUser.ID, fileID)
	if err != nil {
		return serviceError(c, err, "download_lookup_failed")
	}

	obj, info, err := h.Storage.Download(c.Context(), file.StoragePath)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed downloading file")
	}

	contentType := info.ContentType
	if contentType == "" {
		contentType = file.MimeType
	}

	logger.InfoWithUser(currentUser.ID.String(), "file_downloaded", map[string]interface{}{
		"file_id":  file.ID.String(),
		"filename": file.Filename,
		"size":     file.Size,
	})

	c.Set("Content-Type", contentType)
	c.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	return c.SendStream(obj, int(info.Size))
}
