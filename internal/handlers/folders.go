package handlers

import (
	"strings"

	"github.com/filevault/backend/internal/middleware"
	"github.com/filevault/backend/internal/services"
	"github.com/filevault/backend/pkg/logger"
	"github.com/filevault/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type FoldersHandler struct {
	Hierarchy *services.HierarchyService
}

func NewFoldersHandler(hierarchy *services.HierarchyService) *FoldersHandler {
	return &FoldersHandler{Hierarchy: hierarchy}
}

// List returns the direct children of a folder, or the root-level items
// when no folderId is given.
func (h *FoldersHandler) List(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	parentID, err := parseOptionalUUID(c.Query("folderId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid folderId")
	}

	folders, files, err := h.Hierarchy.ListChildren(c.Context(), currentUser.ID, parentID)
	if err != nil {
		return serviceError(c, err, "list_children_failed")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"folders": folders, "files": files})
}

type createFolderRequest struct {
	Name     string  `json:"name"`
	ParentID *string `json:"parentId"`
}

func (h *FoldersHandler) Create(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req createFolderRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	if strings.TrimSpace(req.Name) == "" {
		return utils.Error(c, fiber.StatusBadRequest, "name is required")
	}

	parsedParent, err := parseOptionalUUID(stringValue(req.ParentID))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid parentId")
	}

	folder, err := h.Hierarchy.CreateFolder(c.Context(), currentUser.ID, req.Name, parsedParent)
	if err != nil {
		return serviceError(c, err, "create_folder_failed")
	}

	logger.InfoWithUser(currentUser.ID.String(), "folder_created", map[string]interface{}{
		"folder_id": folder.ID.String(),
		"name":      folder.Name,
	})

	return utils.Success(c, fiber.StatusCreated, folder)
}

type renameRequest struct {
	ItemID   string `json:"itemId"`
	ItemType string `json:"itemType"`
	NewName  string `json:"newName"`
}

func (h *FoldersHandler) Rename(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req renameRequest
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
	if strings.TrimSpace(req.NewName) == "" {
		return utils.Error(c, fiber.StatusBadRequest, "newName is required")
	}

	if err := h.Hierarchy.Rename(c.Context(), currentUser.ID, itemID, kind, req.NewName); err != nil {
		return serviceError(c, err, "rename_failed")
	}

	logger.InfoWithUser(currentUser.ID.String(), "item_renamed", map[string]interface{}{
		"item_id":   itemID.String(),
		"item_type": string(kind),
		"new_name":  strings.TrimSpace(req.NewName),
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "item renamed"})
}

type moveRequest struct {
	ItemID         string  `json:"itemId"`
	ItemType       string  `json:"itemType"`
	TargetFolderID *string `json:"targetFolderId"`
}

func (h *FoldersHandler) Move(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req moveRequest
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

	targetID, err := parseOptionalUUID(stringValue(req.TargetFolderID))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid targetFolderId")
	}

	if err := h.Hierarchy.Move(c.Context(), currentUser.ID, itemID, kind, targetID); err != nil {
		return serviceError(c, err, "move_failed")
	}

	logger.InfoWithUser(currentUser.ID.String(), "item_moved", map[string]interface{}{
		"item_id":   itemID.String(),
		"item_type": string(kind),
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "item moved"})
}

func (h *FoldersHandler) Delete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	itemID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid item id")
	}
	kind, err := services.ParseItemKind(c.Query("itemType"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid itemType")
	}

	if err := h.Hierarchy.Delete(c.Context(), currentUser.ID, itemID, kind); err != nil {
		return serviceError(c, err, "delete_failed")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "item deleted"})
}

func (h *FoldersHandler) Parent(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	folderID, err := parseUUID(c.Params("folderId"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid folder id")
	}

	parent, err := h.Hierarchy.GetParent(c.Context(), currentUser.ID, folderID)
	if err != nil {
		return serviceError(c, err, "get_parent_failed")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"parentFolder": parent})
}

func (h *FoldersHandler) Search(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	term := strings.TrimSpace(c.Query("search"))
	if term == "" {
		return utils.Error(c, fiber.StatusBadRequest, "search query is required")
	}

	folders, files, err := h.Hierarchy.Search(c.Context(), currentUser.ID, term)
	if err != nil {
		return serviceError(c, err, "search_failed")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"folders": folders, "files": files})
}

func stringValue(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
