package service

import (
	"context"

	"document-access-service/internal/models"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Store interfaces consumed by the services. The mongo repositories satisfy
// them; tests substitute in-memory implementations with the same conflict
// semantics.

type DocumentStore interface {
	Create(ctx context.Context, document *models.Document) (*models.Document, error)
	FindByID(ctx context.Context, id bson.ObjectID) (*models.Document, error)
	AssignManager(ctx context.Context, id, managerID bson.ObjectID) error
}

type GrantStore interface {
	Insert(ctx context.Context, grant *models.AccessGrant) (*models.AccessGrant, error)
	FindActive(ctx context.Context, documentID bson.ObjectID, subjectType models.SubjectType, subjectID bson.ObjectID) (*models.AccessGrant, error)
	HasHistory(ctx context.Context, documentID bson.ObjectID, subjectType models.SubjectType, subjectID bson.ObjectID) (bool, error)
	Revoke(ctx context.Context, documentID bson.ObjectID, subjectType models.SubjectType, subjectID bson.ObjectID, revokedBy models.Authority) (*models.AccessGrant, error)
	FindActiveDerivedBy(ctx context.Context, documentID bson.ObjectID, grantedByType models.SubjectType, grantedByID bson.ObjectID) ([]*models.AccessGrant, error)
	FindByDocument(ctx context.Context, documentID bson.ObjectID, page, limit int) ([]*models.AccessGrant, error)
}

type RevocationStore interface {
	Insert(ctx context.Context, request *models.RevocationRequest) (*models.RevocationRequest, error)
	FindByID(ctx context.Context, id bson.ObjectID) (*models.RevocationRequest, error)
	Review(ctx context.Context, id bson.ObjectID, status models.RequestStatus, reviewNotes string, reviewedBy models.Authority) (*models.RevocationRequest, error)
	Cancel(ctx context.Context, id bson.ObjectID) (*models.RevocationRequest, error)
	FindAll(ctx context.Context, filter models.RevocationRequestFilter) ([]*models.RevocationRequest, error)
}

type AuthorityCache interface {
	SaveAuthorityCached(ctx context.Context, documentID string, authority models.Authority) error
	GetAuthorityCached(ctx context.Context, documentID string) (*models.Authority, error)
	InvalidateAuthority(ctx context.Context, documentID string) error
}
