package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"document-access-service/internal/models"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type GrantRepository struct {
	collection *mongo.Collection
}

func NewGrantRepository(db *mongo.Database) *GrantRepository {
	return &GrantRepository{
		collection: db.Collection("AccessGrant"),
	}
}

// Insert writes a new active grant. The uniq_active_grant partial index is
// the arbiter under concurrency: when two inserts race for the same
// (document, subject) tuple, exactly one lands and the loser gets a
// duplicate-key error, surfaced as ErrDuplicateActiveGrant.
func (r *GrantRepository) Insert(ctx context.Context, grant *models.AccessGrant) (*models.AccessGrant, error) {
	if grant.ID.IsZero() {
		grant.ID = bson.NewObjectID()
	}
	if grant.CreatedAt == 0 {
		grant.CreatedAt = time.Now().Unix()
	}
	grant.RevokedAt = 0

	_, err := r.collection.InsertOne(ctx, grant)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, models.ErrDuplicateActiveGrant
		}
		return nil, fmt.Errorf("failed to insert access grant: %w", err)
	}

	return grant, nil
}

func (r *GrantRepository) FindActive(ctx context.Context, documentID bson.ObjectID, subjectType models.SubjectType, subjectID bson.ObjectID) (*models.AccessGrant, error) {
	filter := bson.M{
		"documentId":  documentID,
		"subjectType": subjectType,
		"subjectId":   subjectID,
		"revokedAt":   0,
	}

	var grant models.AccessGrant
	err := r.collection.FindOne(ctx, filter).Decode(&grant)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrNoActiveGrant
		}
		return nil, err
	}
	return &grant, nil
}

// HasHistory reports whether any grant row, active or revoked, exists for
// the tuple. Access resolution treats a revoked row as final for its
// subject.
func (r *GrantRepository) HasHistory(ctx context.Context, documentID bson.ObjectID, subjectType models.SubjectType, subjectID bson.ObjectID) (bool, error) {
	filter := bson.M{
		"documentId":  documentID,
		"subjectType": subjectType,
		"subjectId":   subjectID,
	}

	count, err := r.collection.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to count access grants: %w", err)
	}
	return count > 0, nil
}

// Revoke stamps the revocation fields on the active grant for the tuple.
// The filter only matches active rows, so a second revoke of the same tuple
// finds nothing and reports ErrNoActiveGrant instead of overwriting the
// original revocation record.
func (r *GrantRepository) Revoke(ctx context.Context, documentID bson.ObjectID, subjectType models.SubjectType, subjectID bson.ObjectID, revokedBy models.Authority) (*models.AccessGrant, error) {
	filter := bson.M{
		"documentId":  documentID,
		"subjectType": subjectType,
		"subjectId":   subjectID,
		"revokedAt":   0,
	}
	update := bson.M{
		"$set": bson.M{
			"revokedAt":     time.Now().Unix(),
			"revokedByType": revokedBy.Type,
			"revokedById":   revokedBy.ID,
		},
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var revoked models.AccessGrant
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&revoked)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrNoActiveGrant
		}
		return nil, fmt.Errorf("failed to revoke access grant: %w", err)
	}

	return &revoked, nil
}

// FindActiveDerivedBy lists the active derived grants handed out by the
// given subject on a document. Cascade revocation walks these.
func (r *GrantRepository) FindActiveDerivedBy(ctx context.Context, documentID bson.ObjectID, grantedByType models.SubjectType, grantedByID bson.ObjectID) ([]*models.AccessGrant, error) {
	filter := bson.M{
		"documentId":    documentID,
		"grantType":     models.GrantTypeDerived,
		"grantedByType": grantedByType,
		"grantedById":   grantedByID,
		"revokedAt":     0,
	}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var grants []*models.AccessGrant
	if err = cursor.All(ctx, &grants); err != nil {
		return nil, err
	}

	return grants, nil
}

func (r *GrantRepository) FindByDocument(ctx context.Context, documentID bson.ObjectID, page, limit int) ([]*models.AccessGrant, error) {
	opts := options.Find()
	opts.SetSort(bson.M{"createdAt": -1})
	if page > 0 && limit > 0 {
		opts.SetSkip(int64((page - 1) * limit))
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.collection.Find(ctx, bson.M{"documentId": documentID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var grants []*models.AccessGrant
	if err = cursor.All(ctx, &grants); err != nil {
		return nil, err
	}

	return grants, nil
}
