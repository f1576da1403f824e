package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"document-access-service/internal/events"
	"document-access-service/internal/models"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// AuthorityService owns the origin-authority rules: which actor holds
// ultimate approval rights over a document, how that authority is
// established at registration time, and the one-way transition from a
// user context to an assigned manager.
type AuthorityService struct {
	documents DocumentStore
	grants    GrantStore
	cache     AuthorityCache
	publisher events.Publisher
}

func NewAuthorityService(documents DocumentStore, grants GrantStore, cache AuthorityCache, publisher events.Publisher) *AuthorityService {
	return &AuthorityService{
		documents: documents,
		grants:    grants,
		cache:     cache,
		publisher: publisher,
	}
}

// OriginAuthorityOf resolves the origin authority of a document. The
// manager path wins whenever a manager has ever been assigned; the user
// context is only authoritative before that. A document with neither path
// set violates the creation invariant and is reported as an integrity
// failure, not a client error.
func (s *AuthorityService) OriginAuthorityOf(document *models.Document) (models.Authority, error) {
	if !document.OriginManagerID.IsZero() {
		return models.Authority{Type: models.SubjectTypeManager, ID: document.OriginManagerID}, nil
	}
	if !document.OriginUserContextID.IsZero() {
		return models.Authority{Type: models.SubjectTypeUser, ID: document.OriginUserContextID}, nil
	}
	return models.Authority{}, fmt.Errorf("%w: document %s", models.ErrInconsistentAuthority, document.ID.Hex())
}

// ResolveAuthority loads and resolves the origin authority for a document
// id, read-through the redis cache.
func (s *AuthorityService) ResolveAuthority(ctx context.Context, documentID bson.ObjectID) (models.Authority, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetAuthorityCached(ctx, documentID.Hex()); err == nil {
			return *cached, nil
		}
	}

	document, err := s.documents.FindByID(ctx, documentID)
	if err != nil {
		return models.Authority{}, err
	}

	authority, err := s.OriginAuthorityOf(document)
	if err != nil {
		return models.Authority{}, err
	}

	if s.cache != nil {
		if err := s.cache.SaveAuthorityCached(ctx, documentID.Hex(), authority); err != nil {
			log.Printf("Failed to cache authority for document %s: %s", documentID.Hex(), err)
		}
	}

	return authority, nil
}

// RegisterDocument creates a document with its origin authority taken from
// the registering actor: a manager becomes the permanent origin manager, a
// user becomes the temporary user context. The explicit owner grant row is
// written in the same operation so access checks and audit trails never
// depend on an implicit owner.
func (s *AuthorityService) RegisterDocument(ctx context.Context, title string, actor models.Actor) (*models.Document, error) {
	subjectType, subjectID, ok := actor.Subject()
	if !ok {
		return nil, models.ErrAdminExcluded
	}
	if title == "" {
		return nil, fmt.Errorf("%w: document title is required", models.ErrInvalidInput)
	}

	document := &models.Document{Title: title}
	switch actor.Kind {
	case models.ActorKindManager:
		document.OriginManagerID = actor.ID
	case models.ActorKindUser:
		document.OriginUserContextID = actor.ID
	}

	document, err := s.documents.Create(ctx, document)
	if err != nil {
		return nil, err
	}

	ownerGrant := &models.AccessGrant{
		DocumentID:    document.ID,
		SubjectType:   subjectType,
		SubjectID:     subjectID,
		GrantType:     models.GrantTypeOwner,
		GrantedByType: subjectType,
		GrantedByID:   subjectID,
	}
	if _, err := s.grants.Insert(ctx, ownerGrant); err != nil {
		return nil, fmt.Errorf("failed to establish owner grant: %w", err)
	}

	s.publishAudit(ctx, events.EventAuthorityAssigned, actor, true, map[string]any{
		"documentId":    document.ID.Hex(),
		"authorityType": string(subjectType),
	})

	return document, nil
}

// AssignManager performs the irreversible authority transition. Only the
// current origin authority may assign; a second assignment fails at the
// storage layer regardless of caller. The manager receives an explicit
// owner grant unless they already hold an active grant.
func (s *AuthorityService) AssignManager(ctx context.Context, documentID, managerID bson.ObjectID, actor models.Actor) (*models.Document, error) {
	document, err := s.documents.FindByID(ctx, documentID)
	if err != nil {
		return nil, err
	}

	authority, err := s.OriginAuthorityOf(document)
	if err != nil {
		return nil, err
	}
	if !authority.HeldBy(actor) {
		return nil, models.ErrForbidden
	}

	if err := s.documents.AssignManager(ctx, documentID, managerID); err != nil {
		return nil, err
	}

	ownerGrant := &models.AccessGrant{
		DocumentID:    documentID,
		SubjectType:   models.SubjectTypeManager,
		SubjectID:     managerID,
		GrantType:     models.GrantTypeOwner,
		GrantedByType: authority.Type,
		GrantedByID:   authority.ID,
	}
	if _, err := s.grants.Insert(ctx, ownerGrant); err != nil {
		if !errors.Is(err, models.ErrDuplicateActiveGrant) {
			return nil, fmt.Errorf("failed to establish manager owner grant: %w", err)
		}
		// The manager already held an active grant; authority resolution
		// carries the owner rights from here on.
		log.Printf("Manager %s already holds a grant on document %s, keeping it", managerID.Hex(), documentID.Hex())
	}

	if s.cache != nil {
		if err := s.cache.InvalidateAuthority(ctx, documentID.Hex()); err != nil {
			log.Printf("Failed to invalidate authority cache for document %s: %s", documentID.Hex(), err)
		}
	}

	s.publishAudit(ctx, events.EventAuthorityAssigned, actor, true, map[string]any{
		"documentId": documentID.Hex(),
		"managerId":  managerID.Hex(),
	})

	return s.documents.FindByID(ctx, documentID)
}

func (s *AuthorityService) publishAudit(ctx context.Context, event string, actor models.Actor, success bool, metadata map[string]any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishAuditEvent(ctx, event, actor, success, metadata); err != nil {
		log.Printf("Failed to publish %s event: %s", event, err)
	}
}
