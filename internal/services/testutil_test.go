package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/filevault/backend/internal/models"
	"github.com/filevault/backend/internal/storage"
	"github.com/filevault/backend/pkg/logger"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var testSetupOnce sync.Once

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	testSetupOnce.Do(func() {
		logger.Init()
	})

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	if err := db.AutoMigrate(&models.User{}, &models.Folder{}, &models.File{}); err != nil {
		t.Fatalf("failed automigrating models: %v", err)
	}

	return db
}

// fakeObjectStore keeps object bytes in memory so service tests can run
// without a live object storage backend.
type fakeObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{
		objects: make(map[string][]byte),
		types:   make(map[string]string),
	}
}

func (f *fakeObjectStore) Upload(_ context.Context, objectName string, reader io.Reader, _ int64, contentType string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[objectName] = data
	f.types[objectName] = contentType
	return nil
}

func (f *fakeObjectStore) Download(_ context.Context, objectName string) (io.ReadCloser, storage.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, ok := f.objects[objectName]
	if !ok {
		return nil, storage.ObjectInfo{}, fmt.Errorf("object %q not found", objectName)
	}

	info := storage.ObjectInfo{
		Size:        int64(len(data)),
		ContentType: f.types[objectName],
	}
	return io.NopCloser(bytes.NewReader(data)), info, nil
}

func (f *fakeObjectStore) Delete(_ context.Context, objectName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, objectName)
	delete(f.types, objectName)
	return nil
}

func (f *fakeObjectStore) has(objectName string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[objectName]
	return ok
}

func createTestUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	user := &models.User{
		Email:        email,
		PasswordHash: "not-a-real-hash",
		FirstName:    "Test",
		LastName:     "User",
		Role:         models.UserRoleUser,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed creating test user: %v", err)
	}
	return user
}

func createTestFolder(t *testing.T, db *gorm.DB, ownerID uuid.UUID, name string, parentID *uuid.UUID) *models.Folder {
	t.Helper()

	folder := &models.Folder{
		Name:     name,
		ParentID: parentID,
		OwnerID:  ownerID,
	}
	if err := db.Create(folder).Error; err != nil {
		t.Fatalf("failed creating test folder %q: %v", name, err)
	}
	return folder
}

func createTestFile(t *testing.T, db *gorm.DB, store *fakeObjectStore, ownerID uuid.UUID, filename string, parentID *uuid.UUID, content string) *models.File {
	t.Helper()

	objectName := fmt.Sprintf("%s/%s/%s", ownerID, uuid.New(), filename)
	if store != nil {
		if err := store.Upload(context.Background(), objectName, bytes.NewReader([]byte(content)), int64(len(content)), "application/octet-stream"); err != nil {
			t.Fatalf("failed storing test object: %v", err)
		}
	}

	file := &models.File{
		Filename:    filename,
		StoragePath: objectName,
		MimeType:    "application/octet-stream",
		Size:        int64(len(content)),
		ParentID:    parentID,
		OwnerID:     ownerID,
	}
	if err := db.Create(file).Error; err != nil {
		t.Fatalf("failed creating test file %q: %v", filename, err)
	}
	return file
}
