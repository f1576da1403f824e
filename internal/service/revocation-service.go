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

// requestTransitions is the closed transition table of the revocation
// workflow. pending is the only non-terminal state; nothing leaves a
// terminal state. The table is the fast-path check; the status-guarded
// conditional update in the store is what serializes concurrent callers.
var requestTransitions = map[models.RequestStatus][]models.RequestStatus{
	models.RequestStatusPending:   {models.RequestStatusApproved, models.RequestStatusDenied, models.RequestStatusCancelled},
	models.RequestStatusApproved:  {},
	models.RequestStatusDenied:    {},
	models.RequestStatusCancelled: {},
}

func canTransition(from, to models.RequestStatus) bool {
	for _, next := range requestTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// RevocationService mediates access removal: a non-owning actor raises a
// request, and only the document's origin authority decides it. Approval
// revokes the implicated grant (optionally cascading); denial and
// cancellation leave grants untouched.
type RevocationService struct {
	documents DocumentStore
	requests  RevocationStore
	grants    *GrantService
	authority *AuthorityService
	publisher events.Publisher
}

func NewRevocationService(documents DocumentStore, requests RevocationStore, grants *GrantService, authority *AuthorityService, publisher events.Publisher) *RevocationService {
	return &RevocationService{
		documents: documents,
		requests:  requests,
		grants:    grants,
		authority: authority,
		publisher: publisher,
	}
}

// CreateRequest raises a pending revocation request. The requester must
// currently hold access to the document, and the request carries an
// explicit target subject: the requester for self_revocation, a named user
// or manager for the other types.
func (s *RevocationService) CreateRequest(ctx context.Context, documentID bson.ObjectID, requestType models.RequestType, targetType models.SubjectType, targetID bson.ObjectID, cascade bool, actor models.Actor) (*models.RevocationRequest, error) {
	if !requestType.Valid() {
		return nil, fmt.Errorf("%w: unknown request type %q", models.ErrInvalidInput, requestType)
	}

	if _, err := s.documents.FindByID(ctx, documentID); err != nil {
		return nil, err
	}

	requesterType, requesterID, ok := actor.Subject()
	if !ok {
		return nil, models.ErrAdminExcluded
	}

	switch requestType {
	case models.RequestTypeSelfRevocation:
		targetType, targetID = requesterType, requesterID
	case models.RequestTypeUserRevocation:
		if targetType != models.SubjectTypeUser || targetID.IsZero() {
			return nil, models.ErrMissingTargetSubject
		}
	case models.RequestTypeManagerRevocation:
		if targetType != models.SubjectTypeManager || targetID.IsZero() {
			return nil, models.ErrMissingTargetSubject
		}
	}

	hasAccess, err := s.grants.HasAccess(ctx, documentID, requesterType, requesterID)
	if err != nil {
		return nil, err
	}
	if !hasAccess {
		return nil, models.ErrForbidden
	}

	request := &models.RevocationRequest{
		DocumentID:                 documentID,
		RequestedByType:            requesterType,
		RequestedByID:              requesterID,
		RequestType:                requestType,
		TargetSubjectType:          targetType,
		TargetSubjectID:            targetID,
		CascadeToSecondaryManagers: cascade,
	}

	request, err = s.requests.Insert(ctx, request)
	if err != nil {
		return nil, err
	}

	s.publishAudit(ctx, events.EventRevocationRequested, actor, true, map[string]any{
		"documentId":  documentID.Hex(),
		"requestId":   request.ID.Hex(),
		"requestType": string(requestType),
	})

	return request, nil
}

// ApproveRequest is reserved for the exact origin authority of the
// request's document; no other actor qualifies, the original requester
// included. The status-guarded update makes one winner of concurrent
// reviews; the winner then revokes the target grant and, when asked,
// cascades to the derived grants in its lineage.
func (s *RevocationService) ApproveRequest(ctx context.Context, requestID bson.ObjectID, reviewNotes string, actor models.Actor) (*models.RevocationRequest, error) {
	request, authority, err := s.guardReview(ctx, requestID, models.RequestStatusApproved, actor)
	if err != nil {
		return nil, err
	}

	updated, err := s.requests.Review(ctx, requestID, models.RequestStatusApproved, reviewNotes, authority)
	if err != nil {
		return nil, err
	}

	revokeErr := s.grants.revokeTuple(ctx, request.DocumentID, request.TargetSubjectType, request.TargetSubjectID, request.CascadeToSecondaryManagers, authority, actor)
	switch {
	case revokeErr == nil:
	case errors.Is(revokeErr, models.ErrNoActiveGrant):
		// The target grant was already revoked through another path; the
		// approval itself stands.
		log.Printf("Approved request %s found no active grant for %s:%s", requestID.Hex(), request.TargetSubjectType, request.TargetSubjectID.Hex())
	default:
		// The transition is already committed and the approval stands. The
		// failed revoke goes to the audit trail; the grant stays removable
		// through the direct revoke path.
		log.Printf("Approved request %s could not revoke grant for %s:%s: %s", requestID.Hex(), request.TargetSubjectType, request.TargetSubjectID.Hex(), revokeErr)
		s.publishAudit(ctx, events.EventRevocationApproved, actor, false, map[string]any{
			"documentId": request.DocumentID.Hex(),
			"requestId":  requestID.Hex(),
			"error":      revokeErr.Error(),
		})
		return updated, nil
	}

	s.publishAudit(ctx, events.EventRevocationApproved, actor, true, map[string]any{
		"documentId": request.DocumentID.Hex(),
		"requestId":  requestID.Hex(),
	})

	return updated, nil
}

// DenyRequest shares ApproveRequest's guards but mutates no grants.
func (s *RevocationService) DenyRequest(ctx context.Context, requestID bson.ObjectID, reviewNotes string, actor models.Actor) (*models.RevocationRequest, error) {
	request, authority, err := s.guardReview(ctx, requestID, models.RequestStatusDenied, actor)
	if err != nil {
		return nil, err
	}

	updated, err := s.requests.Review(ctx, requestID, models.RequestStatusDenied, reviewNotes, authority)
	if err != nil {
		return nil, err
	}

	s.publishAudit(ctx, events.EventRevocationDenied, actor, true, map[string]any{
		"documentId": request.DocumentID.Hex(),
		"requestId":  requestID.Hex(),
	})

	return updated, nil
}

// CancelRequest withdraws a pending request. Only the exact original
// requester may cancel; the origin authority must decide, not cancel.
func (s *RevocationService) CancelRequest(ctx context.Context, requestID bson.ObjectID, actor models.Actor) (*models.RevocationRequest, error) {
	request, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if !actor.IsSubject(request.RequestedByType, request.RequestedByID) {
		return nil, models.ErrForbidden
	}

	if !canTransition(request.Status, models.RequestStatusCancelled) {
		return nil, models.ErrRequestNotPending
	}

	cancelled, err := s.requests.Cancel(ctx, requestID)
	if err != nil {
		return nil, err
	}

	s.publishAudit(ctx, events.EventRevocationCancelled, actor, true, map[string]any{
		"documentId": request.DocumentID.Hex(),
		"requestId":  requestID.Hex(),
	})

	return cancelled, nil
}

// GetRequest returns a request to its origin authority or its requester.
func (s *RevocationService) GetRequest(ctx context.Context, requestID bson.ObjectID, actor models.Actor) (*models.RevocationRequest, error) {
	request, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if actor.IsSubject(request.RequestedByType, request.RequestedByID) {
		return request, nil
	}

	authority, err := s.authority.ResolveAuthority(ctx, request.DocumentID)
	if err != nil {
		return nil, err
	}
	if !authority.HeldBy(actor) {
		return nil, models.ErrForbidden
	}

	return request, nil
}

// ListRequests scopes the listing to what the actor may see: requests they
// raised themselves and, when a document filter names a document whose
// origin authority they hold, all requests for that document.
func (s *RevocationService) ListRequests(ctx context.Context, filter models.RevocationRequestFilter, actor models.Actor) ([]*models.RevocationRequest, error) {
	requesterType, requesterID, ok := actor.Subject()
	if !ok {
		return nil, models.ErrAdminExcluded
	}

	scopedToAuthority := false
	if !filter.DocumentID.IsZero() {
		authority, err := s.authority.ResolveAuthority(ctx, filter.DocumentID)
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
		if err == nil && authority.HeldBy(actor) {
			scopedToAuthority = true
		}
	}

	if !scopedToAuthority {
		filter.RequestedBy = &models.Authority{Type: requesterType, ID: requesterID}
	}

	return s.requests.FindAll(ctx, filter)
}

// guardReview runs the shared approve/deny preconditions and returns the
// pending request with the resolved document authority held by the actor.
func (s *RevocationService) guardReview(ctx context.Context, requestID bson.ObjectID, to models.RequestStatus, actor models.Actor) (*models.RevocationRequest, models.Authority, error) {
	request, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		return nil, models.Authority{}, err
	}

	if !canTransition(request.Status, to) {
		return nil, models.Authority{}, models.ErrRequestNotPending
	}

	document, err := s.documents.FindByID(ctx, request.DocumentID)
	if err != nil {
		return nil, models.Authority{}, err
	}

	authority, err := s.authority.OriginAuthorityOf(document)
	if err != nil {
		return nil, models.Authority{}, err
	}
	if !authority.HeldBy(actor) {
		return nil, models.Authority{}, models.ErrForbidden
	}

	return request, authority, nil
}

func (s *RevocationService) publishAudit(ctx context.Context, event string, actor models.Actor, success bool, metadata map[string]any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishAuditEvent(ctx, event, actor, success, metadata); err != nil {
		log.Printf("Failed to publish %s event: %s", event, err)
	}
}
