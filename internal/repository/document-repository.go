package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"document-access-service/internal/models"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

type DocumentRepository struct {
	collection *mongo.Collection
}

func NewDocumentRepository(db *mongo.Database) *DocumentRepository {
	return &DocumentRepository{
		collection: db.Collection("Document"),
	}
}

func (r *DocumentRepository) Create(ctx context.Context, document *models.Document) (*models.Document, error) {
	if document.ID.IsZero() {
		document.ID = bson.NewObjectID()
	}

	currentTime := time.Now().Unix()
	if document.CreatedAt == 0 {
		document.CreatedAt = currentTime
	}
	if document.UpdatedAt == 0 {
		document.UpdatedAt = currentTime
	}

	_, err := r.collection.InsertOne(ctx, document)
	if err != nil {
		return nil, fmt.Errorf("failed to insert document: %w", err)
	}

	return document, nil
}

func (r *DocumentRepository) FindByID(ctx context.Context, id bson.ObjectID) (*models.Document, error) {
	var document models.Document
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&document)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return &document, nil
}

// AssignManager sets the origin manager with a conditional update that only
// matches while no manager exists. The assignment is one-way: once set, no
// code path clears or replaces originManagerId.
func (r *DocumentRepository) AssignManager(ctx context.Context, id, managerID bson.ObjectID) error {
	filter := bson.M{
		"_id":             id,
		"originManagerId": bson.M{"$exists": false},
	}
	update := bson.M{
		"$set": bson.M{
			"originManagerId": managerID,
			"updatedAt":       time.Now().Unix(),
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to assign manager: %w", err)
	}

	if result.ModifiedCount == 0 {
		if _, err := r.FindByID(ctx, id); err != nil {
			return err
		}
		return models.ErrManagerAlreadyAssigned
	}

	return nil
}
