package handlers

import (
	"bufio"
	"context"
	"fmt"
	"time"

	"github.com/filevault/backend/internal/middleware"
	"github.com/filevault/backend/internal/services"
	"github.com/filevault/backend/pkg/logger"
	"github.com/filevault/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

// linkInvalidMessage deliberately does not distinguish "never existed",
// "already used" and "expired".
const linkInvalidMessage = "link is invalid or has expired"

type LinksHandler struct {
	Hierarchy      *services.HierarchyService
	Archive        *services.ArchiveBuilder
	Registry       services.LinkRegistry
	ArchiveTimeout time.Duration
}

func NewLinksHandler(hierarchy *services.HierarchyService, archive *services.ArchiveBuilder, registry services.LinkRegistry, archiveTimeout time.Duration) *LinksHandler {
	return &LinksHandler{
		Hierarchy:      hierarchy,
		Archive:        archive,
		Registry:       registry,
		ArchiveTimeout: archiveTimeout,
	}
}

type issueLinkRequest struct {
	ItemID   string `json:"itemId"`
	ItemType string `json:"itemType"`
}

// Issue mints a one-time download token for an item the caller owns.
// Ownership is checked here, at issuance; resolution is bearer-only.
func (h *LinksHandler) Issue(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req issueLinkRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	itemID, err := parseUUID(req.ItemID)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid itemId")
	}
	kind, err := services.ParseItemKind(req.ItemType)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid itemType")
	}

	switch kind {
	case services.ItemKindFolder:
		if _, err := h.Hierarchy.GetFolder(c.Context(), currentUser.ID, itemID); err != nil {
			return serviceError(c, err, "issue_link_lookup_failed")
		}
	case services.ItemKindFile:
		if _, err := h.Hierarchy.GetFile(c.Context(), currentUser.ID, itemID); err != nil {
			return serviceError(c, err, "issue_link_lookup_failed")
		}
	}

	token, err := h.Registry.Issue(services.LinkTarget{
		TargetID: itemID,
		Kind:     kind,
		OwnerID:  currentUser.ID,
	})
	if err != nil {
		return serviceError(c, err, "issue_link_failed")
	}

	logger.InfoWithUser(currentUser.ID.String(), "download_link_issued", map[string]interface{}{
		"item_id":    itemID.String(),
		"item_type":  string(kind),
		"expires_in": h.Registry.TTL().String(),
	})

	return utils.Success(c, fiber.StatusCreated, fiber.Map{
		"token":     token,
		"url":       "/api/download/" + token,
		"expiresIn": int(h.Registry.TTL().Seconds()),
	})
}

// Download resolves a one-time token and streams the target. The token is
// consumed before any bytes move: a second concurrent attempt sees 404 even
// when the first transfer is still in flight. No session is required here;
// possession of the token is the whole credential.
func (h *LinksHandler) Download(c *fiber.Ctx) error {
	token := c.Params("token")
	if token == "" {
		return utils.Error(c, fiber.StatusNotFound, linkInvalidMessage)
	}

	target, ok := h.Registry.Resolve(token)
	if !ok {
		return utils.Error(c, fiber.StatusNotFound, linkInvalidMessage)
	}

	switch target.Kind {
	case services.ItemKindFile:
		return h.streamFile(c, target)
	case services.ItemKindFolder:
		return h.streamFolderArchive(c, target)
	default:
		return utils.Error(c, fiber.StatusNotFound, linkInvalidMessage)
	}
}

func (h *LinksHandler) streamFile(c *fiber.Ctx, target services.LinkTarget) error {
	file, err := h.Hierarchy.GetFile(c.Context(), target.OwnerID, target.TargetID)
	if err != nil {
		return serviceError(c, err, "link_file_lookup_failed")
	}

	obj, info, err := h.Hierarchy.Storage.Download(c.Context(), file.StoragePath)
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed downloading file")
	}

	contentType := info.ContentType
	if contentType == "" {
		contentType = file.MimeType
	}

	logger.Info("one_time_file_download", map[string]interface{}{
		"file_id":  file.ID.String(),
		"filename": file.Filename,
		"size":     file.Size,
	})

	c.Set("Content-Type", contentType)
	c.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	return c.SendStream(obj, int(info.Size))
}

func (h *LinksHandler) streamFolderArchive(c *fiber.Ctx, target services.LinkTarget) error {
	folder, err := h.Hierarchy.GetFolder(c.Context(), target.OwnerID, target.TargetID)
	if err != nil {
		return serviceError(c, err, "link_folder_lookup_failed")
	}

	logger.Info("one_time_folder_download", map[string]interface{}{
		"folder_id": folder.ID.String(),
		"name":      folder.Name,
	})

	c.Set("Content-Type", "application/zip")
	c.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", folder.Name+".zip"))

	// The archive is built inside the body stream writer, which runs after
	// this handler returns; the request context is gone by then, so the
	// build gets its own deadline.
	timeout := h.ArchiveTimeout
	archive := h.Archive
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := archive.WriteFolderZip(ctx, w, folder); err != nil {
			// Leaving the stream unterminated is intentional: the client
			// receives a truncated zip, never a silently incomplete one.
			logger.Error("archive_build_failed", err, map[string]interface{}{
				"folder_id": folder.ID.String(),
			})
			return
		}
		_ = w.Flush()
	}))

	return nil
}
