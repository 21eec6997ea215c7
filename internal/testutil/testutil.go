// Package testutil provides shared test helpers for setting up catalogs and
// definition directories.
package testutil

import (
	"context"
	"os"
	"testing"

	"github.com/starford/ansuz/internal/catalog"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/storage"
)

// TestDB creates a temporary SQLite catalog that is automatically cleaned up.
func TestDB(t *testing.T) *catalog.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "ansuz-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := catalog.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestUser creates a user with the given username.
func TestUser(t *testing.T, db catalog.Store, username string) *models.User {
	t.Helper()
	u, err := db.CreateUser(context.Background(), models.User{Username: username, Role: "editor"})
	if err != nil {
		t.Fatal(err)
	}
	return u
}

// TestDefinitions creates a temporary definitions directory with a storage.Provider.
func TestDefinitions(t *testing.T) (string, storage.Provider) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool { return &b }

// StrPtr returns a pointer to s.
func StrPtr(s string) *string { return &s }
