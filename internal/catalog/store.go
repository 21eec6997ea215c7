package catalog

import (
	"context"

	"github.com/starford/ansuz/internal/models"
)

// Store defines the catalog operations the service layer relies on.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with fakes.
type Store interface {
	CreateUser(ctx context.Context, u models.User) (*models.User, error)
	UserByID(ctx context.Context, id string) (*models.User, error)
	EnsureUser(ctx context.Context, username string) (*models.User, error)

	CreateObject(ctx context.Context, in models.NewObject) (*models.ObjectDef, error)
	ObjectOwner(ctx context.Context, id string) (string, error)
	FindObject(ctx context.Context, name, version string) (*models.ObjectSummary, error)
	VersionsByName(ctx context.Context, name string) ([]models.ObjectVersion, error)
	Snapshot(ctx context.Context, id string) (*models.ObjectDef, error)
	PatchObject(ctx context.Context, id, userID string, patch models.ObjectPatch, ifRevision int64) (*models.ObjectDef, error)
	ReplaceAttributes(ctx context.Context, objectID string, submitted []models.AttributeInput, ifRevision int64) (*models.ObjectDef, error)
	ReplaceMethods(ctx context.Context, objectID string, submitted []models.MethodInput, ifRevision int64) (*models.ObjectDef, error)
	CreateRelationship(ctx context.Context, fromID string, in models.NewRelationship) (*models.ObjectDef, error)
	History(ctx context.Context, objectID string) ([]models.HistoryEntry, error)
	Summaries(ctx context.Context) ([]models.ObjectSummary, error)
	ListByCreator(ctx context.Context, creatorID string) ([]models.ObjectSummary, error)
	CountByCreator(ctx context.Context, creatorID string) (int, error)

	CreateInstance(ctx context.Context, objectID, creatorID string, in models.NewInstance) (*models.Instance, error)
	ListInstances(ctx context.Context, objectID string) ([]models.Instance, error)
	Browse(ctx context.Context, limit int) ([]models.BrowseItem, error)

	SeedChecksums(ctx context.Context) (map[string]string, error)
	PutSeedChecksum(ctx context.Context, path, checksum string) error

	Close() error
}

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)
