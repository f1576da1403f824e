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

type RevocationRepository struct {
	collection *mongo.Collection
}

func NewRevocationRepository(db *mongo.Database) *RevocationRepository {
	return &RevocationRepository{
		collection: db.Collection("RevocationRequest"),
	}
}

// Insert persists a new pending request. The uniq_pending_request partial
// index rejects a second pending request for the same (document, requester,
// request type) tuple, including under concurrent creation.
func (r *RevocationRepository) Insert(ctx context.Context, request *models.RevocationRequest) (*models.RevocationRequest, error) {
	if request.ID.IsZero() {
		request.ID = bson.NewObjectID()
	}

	currentTime := time.Now().Unix()
	request.Status = models.RequestStatusPending
	request.CreatedAt = currentTime
	request.UpdatedAt = currentTime

	_, err := r.collection.InsertOne(ctx, request)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, models.ErrDuplicatePendingRequest
		}
		return nil, fmt.Errorf("failed to insert revocation request: %w", err)
	}

	return request, nil
}

func (r *RevocationRepository) FindByID(ctx context.Context, id bson.ObjectID) (*models.RevocationRequest, error) {
	var request models.RevocationRequest
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&request)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return &request, nil
}

// Review moves a pending request to approved or denied and stamps the
// write-once review fields. The status filter serializes concurrent
// reviewers: only one conditional update can match, the loser observes
// ErrRequestNotPending.
func (r *RevocationRepository) Review(ctx context.Context, id bson.ObjectID, status models.RequestStatus, reviewNotes string, reviewedBy models.Authority) (*models.RevocationRequest, error) {
	if status != models.RequestStatusApproved && status != models.RequestStatusDenied {
		return nil, fmt.Errorf("invalid review status %q", status)
	}

	currentTime := time.Now().Unix()
	set := bson.M{
		"status":         status,
		"reviewedByType": reviewedBy.Type,
		"reviewedById":   reviewedBy.ID,
		"reviewedAt":     currentTime,
		"updatedAt":      currentTime,
	}
	if reviewNotes != "" {
		set["reviewNotes"] = reviewNotes
	}

	return r.transition(ctx, id, bson.M{"$set": set})
}

// Cancel moves a pending request to cancelled. The deletedAt stamp mirrors
// the persisted soft-delete shape; the status field alone is authoritative.
func (r *RevocationRepository) Cancel(ctx context.Context, id bson.ObjectID) (*models.RevocationRequest, error) {
	currentTime := time.Now().Unix()
	update := bson.M{
		"$set": bson.M{
			"status":    models.RequestStatusCancelled,
			"updatedAt": currentTime,
			"deletedAt": currentTime,
		},
	}

	return r.transition(ctx, id, update)
}

func (r *RevocationRepository) transition(ctx context.Context, id bson.ObjectID, update bson.M) (*models.RevocationRequest, error) {
	filter := bson.M{
		"_id":    id,
		"status": models.RequestStatusPending,
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated models.RevocationRequest
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&updated)
	if err == nil {
		return &updated, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to transition revocation request: %w", err)
	}

	// No pending row matched: either the request never existed or another
	// caller already moved it to a terminal state.
	if _, findErr := r.FindByID(ctx, id); findErr != nil {
		return nil, findErr
	}
	return nil, models.ErrRequestNotPending
}

func (r *RevocationRepository) FindAll(ctx context.Context, filter models.RevocationRequestFilter) ([]*models.RevocationRequest, error) {
	query := bson.M{}
	if !filter.DocumentID.IsZero() {
		query["documentId"] = filter.DocumentID
	}
	if filter.RequestedBy != nil {
		query["requestedByType"] = filter.RequestedBy.Type
		query["requestedById"] = filter.RequestedBy.ID
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.RequestType != "" {
		query["requestType"] = filter.RequestType
	}

	opts := options.Find()
	opts.SetSort(bson.M{"createdAt": -1})
	if filter.Page > 0 && filter.Limit > 0 {
		opts.SetSkip(int64((filter.Page - 1) * filter.Limit))
		opts.SetLimit(int64(filter.Limit))
	}

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var requests []*models.RevocationRequest
	if err = cursor.All(ctx, &requests); err != nil {
		return nil, err
	}

	return requests, nil
}
