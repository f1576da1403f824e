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

// GrantService is the source of truth for "does this subject currently have
// access to this document, and under which grant type". All grant writes go
// through it; nothing mutates grant rows directly.
type GrantService struct {
	documents DocumentStore
	grants    GrantStore
	authority *AuthorityService
	publisher events.Publisher
}

func NewGrantService(documents DocumentStore, grants GrantStore, authority *AuthorityService, publisher events.Publisher) *GrantService {
	return &GrantService{
		documents: documents,
		grants:    grants,
		authority: authority,
		publisher: publisher,
	}
}

// HasAccess reports whether an active grant exists for the tuple. The
// resolved origin authority holds access even without an explicit row;
// registration always writes one, so the resolver branch only matters for
// documents that predate explicit owner rows.
func (s *GrantService) HasAccess(ctx context.Context, documentID bson.ObjectID, subjectType models.SubjectType, subjectID bson.ObjectID) (bool, error) {
	_, err := s.grants.FindActive(ctx, documentID, subjectType, subjectID)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, models.ErrNoActiveGrant) {
		return false, err
	}

	// A revoked row is authoritative for its tuple: once the workflow has
	// stripped a subject, the resolver must not restore them. The resolver
	// only answers for documents that predate materialized owner rows.
	hasHistory, err := s.grants.HasHistory(ctx, documentID, subjectType, subjectID)
	if err != nil {
		return false, err
	}
	if hasHistory {
		return false, nil
	}

	document, err := s.documents.FindByID(ctx, documentID)
	if err != nil {
		return false, err
	}
	authority, err := s.authority.OriginAuthorityOf(document)
	if err != nil {
		return false, err
	}
	return authority.Type == subjectType && authority.ID == subjectID, nil
}

// HasAccessActor is HasAccess for a request actor. Administrators never
// hold document access.
func (s *GrantService) HasAccessActor(ctx context.Context, documentID bson.ObjectID, actor models.Actor) (bool, error) {
	subjectType, subjectID, ok := actor.Subject()
	if !ok {
		return false, nil
	}
	return s.HasAccess(ctx, documentID, subjectType, subjectID)
}

// Grant delegates access to a subject. Delegation requires existing
// authority: a delegated grant may only come from the origin authority, a
// derived grant from any subject currently holding access. Owner grants are
// written exclusively by authority establishment, never through here.
func (s *GrantService) Grant(ctx context.Context, documentID bson.ObjectID, subjectType models.SubjectType, subjectID bson.ObjectID, grantType models.GrantType, grantedBy models.Actor) (*models.AccessGrant, error) {
	if !subjectType.Valid() {
		return nil, fmt.Errorf("%w: unknown subject type %q", models.ErrInvalidInput, subjectType)
	}
	switch grantType {
	case models.GrantTypeDelegated, models.GrantTypeDerived:
	case models.GrantTypeOwner:
		return nil, fmt.Errorf("%w: owner grants are established with document authority", models.ErrInvalidInput)
	default:
		return nil, fmt.Errorf("%w: unknown grant type %q", models.ErrInvalidInput, grantType)
	}

	grantorType, grantorID, ok := grantedBy.Subject()
	if !ok {
		return nil, models.ErrAdminExcluded
	}

	document, err := s.documents.FindByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	authority, err := s.authority.OriginAuthorityOf(document)
	if err != nil {
		return nil, err
	}

	if grantType == models.GrantTypeDelegated {
		if !authority.HeldBy(grantedBy) {
			return nil, models.ErrForbidden
		}
	} else {
		hasAccess, err := s.HasAccess(ctx, documentID, grantorType, grantorID)
		if err != nil {
			return nil, err
		}
		if !hasAccess {
			return nil, models.ErrForbidden
		}
	}

	grant := &models.AccessGrant{
		DocumentID:    documentID,
		SubjectType:   subjectType,
		SubjectID:     subjectID,
		GrantType:     grantType,
		GrantedByType: grantorType,
		GrantedByID:   grantorID,
	}

	grant, err = s.grants.Insert(ctx, grant)
	if err != nil {
		return nil, err
	}

	s.publishAudit(ctx, events.EventGrantCreated, grantedBy, true, map[string]any{
		"documentId":  documentID.Hex(),
		"subjectType": string(subjectType),
		"subjectId":   subjectID.Hex(),
		"grantType":   string(grantType),
	})

	return grant, nil
}

// Revoke is the direct revocation path, reserved for the origin authority.
// Everyone else goes through the revocation workflow. Revoking a tuple with
// no active grant is an error, not a no-op; callers must be able to tell
// the two apart.
func (s *GrantService) Revoke(ctx context.Context, documentID bson.ObjectID, subjectType models.SubjectType, subjectID bson.ObjectID, cascade bool, actor models.Actor) error {
	document, err := s.documents.FindByID(ctx, documentID)
	if err != nil {
		return err
	}
	authority, err := s.authority.OriginAuthorityOf(document)
	if err != nil {
		return err
	}
	if !authority.HeldBy(actor) {
		return models.ErrForbidden
	}

	if err := s.revokeTuple(ctx, documentID, subjectType, subjectID, cascade, authority, actor); err != nil {
		return err
	}
	return nil
}

// revokeTuple revokes the grant for a tuple and optionally cascades to the
// derived grants that trace their lineage back to it. The workflow approve
// path calls this after its own authority guard.
func (s *GrantService) revokeTuple(ctx context.Context, documentID bson.ObjectID, subjectType models.SubjectType, subjectID bson.ObjectID, cascade bool, revokedBy models.Authority, actor models.Actor) error {
	revoked, err := s.grants.Revoke(ctx, documentID, subjectType, subjectID, revokedBy)
	if err != nil {
		return err
	}

	s.publishAudit(ctx, events.EventGrantRevoked, actor, true, map[string]any{
		"documentId":  documentID.Hex(),
		"subjectType": string(subjectType),
		"subjectId":   subjectID.Hex(),
		"grantType":   string(revoked.GrantType),
	})

	if cascade && revoked.GrantType == models.GrantTypeDelegated {
		cascaded, err := s.cascadeRevokeSecondary(ctx, documentID, subjectType, subjectID, revokedBy)
		if err != nil {
			return err
		}
		for _, grant := range cascaded {
			s.publishAudit(ctx, events.EventGrantRevoked, actor, true, map[string]any{
				"documentId":  documentID.Hex(),
				"subjectType": string(grant.SubjectType),
				"subjectId":   grant.SubjectID.Hex(),
				"grantType":   string(grant.GrantType),
				"cascaded":    true,
			})
		}
	}

	return nil
}

// cascadeRevokeSecondary walks the delegation lineage breadth-first:
// derived grants handed out by the revoked subject, then derived grants
// handed out by those grantees, and so on. Only active grants are touched;
// a lineage broken by an earlier revocation stops the walk on that branch.
func (s *GrantService) cascadeRevokeSecondary(ctx context.Context, documentID bson.ObjectID, rootType models.SubjectType, rootID bson.ObjectID, revokedBy models.Authority) ([]*models.AccessGrant, error) {
	type subject struct {
		subjectType models.SubjectType
		subjectID   bson.ObjectID
	}

	queue := []subject{{rootType, rootID}}
	seen := map[subject]bool{{rootType, rootID}: true}
	var revoked []*models.AccessGrant

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		derived, err := s.grants.FindActiveDerivedBy(ctx, documentID, current.subjectType, current.subjectID)
		if err != nil {
			return nil, err
		}

		for _, grant := range derived {
			revokedGrant, err := s.grants.Revoke(ctx, documentID, grant.SubjectType, grant.SubjectID, revokedBy)
			if err != nil {
				if errors.Is(err, models.ErrNoActiveGrant) {
					// Lost a race with a concurrent revoke; the grant is
					// gone either way.
					continue
				}
				return nil, err
			}
			revoked = append(revoked, revokedGrant)

			next := subject{grant.SubjectType, grant.SubjectID}
			if !seen[next] {
				seen[next] = true
				queue = append(queue, next)
			}
		}
	}

	return revoked, nil
}

// GetDocument returns document metadata after enforcing read access, the
// entry point adjacent modules use instead of touching the document store.
func (s *GrantService) GetDocument(ctx context.Context, documentID bson.ObjectID, actor models.Actor) (*models.Document, error) {
	document, err := s.documents.FindByID(ctx, documentID)
	if err != nil {
		return nil, err
	}

	hasAccess, err := s.HasAccessActor(ctx, documentID, actor)
	if err != nil {
		return nil, err
	}
	if !hasAccess {
		return nil, models.ErrForbidden
	}

	return document, nil
}

// ListGrants returns the full grant history of a document, revoked rows
// included, for the origin authority.
func (s *GrantService) ListGrants(ctx context.Context, documentID bson.ObjectID, actor models.Actor, page, limit int) ([]*models.AccessGrant, error) {
	document, err := s.documents.FindByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	authority, err := s.authority.OriginAuthorityOf(document)
	if err != nil {
		return nil, err
	}
	if !authority.HeldBy(actor) {
		return nil, models.ErrForbidden
	}

	return s.grants.FindByDocument(ctx, documentID, page, limit)
}

func (s *GrantService) publishAudit(ctx context.Context, event string, actor models.Actor, success bool, metadata map[string]any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishAuditEvent(ctx, event, actor, success, metadata); err != nil {
		log.Printf("Failed to publish %s event: %s", event, err)
	}
}
