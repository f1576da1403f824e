package service

import (
	"context"
	"sync"
	"time"

	"document-access-service/internal/models"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// In-memory stores mirroring the mongo repositories' conflict semantics:
// inserts lose to the active/pending uniqueness rules, revokes and workflow
// transitions are conditional updates that fail when the guard no longer
// holds. A single mutex per store stands in for the storage layer's
// atomicity.

type fakeDocumentStore struct {
	mu   sync.Mutex
	docs map[bson.ObjectID]models.Document
}

func newFakeDocumentStore() *fakeDocumentStore {
	return &fakeDocumentStore{docs: make(map[bson.ObjectID]models.Document)}
}

func (s *fakeDocumentStore) Create(_ context.Context, document *models.Document) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

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

	s.docs[document.ID] = *document
	return document, nil
}

func (s *fakeDocumentStore) FindByID(_ context.Context, id bson.ObjectID) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &doc, nil
}

func (s *fakeDocumentStore) AssignManager(_ context.Context, id, managerID bson.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok {
		return models.ErrNotFound
	}
	if !doc.OriginManagerID.IsZero() {
		return models.ErrManagerAlreadyAssigned
	}
	doc.OriginManagerID = managerID
	doc.UpdatedAt = time.Now().Unix()
	s.docs[id] = doc
	return nil
}

type fakeGrantStore struct {
	mu        sync.Mutex
	grants    []models.AccessGrant
	revokeErr error
}

func newFakeGrantStore() *fakeGrantStore {
	return &fakeGrantStore{}
}

func (s *fakeGrantStore) Insert(_ context.Context, grant *models.AccessGrant) (*models.AccessGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.grants {
		if existing.RevokedAt == 0 &&
			existing.DocumentID == grant.DocumentID &&
			existing.SubjectType == grant.SubjectType &&
			existing.SubjectID == grant.SubjectID {
			return nil, models.ErrDuplicateActiveGrant
		}
	}

	if grant.ID.IsZero() {
		grant.ID = bson.NewObjectID()
	}
	if grant.CreatedAt == 0 {
		grant.CreatedAt = time.Now().Unix()
	}
	grant.RevokedAt = 0

	s.grants = append(s.grants, *grant)
	return grant, nil
}

func (s *fakeGrantStore) FindActive(_ context.Context, documentID bson.ObjectID, subjectType models.SubjectType, subjectID bson.ObjectID) (*models.AccessGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.grants {
		g := s.grants[i]
		if g.RevokedAt == 0 && g.DocumentID == documentID && g.SubjectType == subjectType && g.SubjectID == subjectID {
			return &g, nil
		}
	}
	return nil, models.ErrNoActiveGrant
}

func (s *fakeGrantStore) HasHistory(_ context.Context, documentID bson.ObjectID, subjectType models.SubjectType, subjectID bson.ObjectID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, g := range s.grants {
		if g.DocumentID == documentID && g.SubjectType == subjectType && g.SubjectID == subjectID {
			return true, nil
		}
	}
	return false, nil
}

// failRevokesWith makes subsequent Revoke calls fail with err; nil restores
// normal behavior.
func (s *fakeGrantStore) failRevokesWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revokeErr = err
}

func (s *fakeGrantStore) Revoke(_ context.Context, documentID bson.ObjectID, subjectType models.SubjectType, subjectID bson.ObjectID, revokedBy models.Authority) (*models.AccessGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.revokeErr != nil {
		return nil, s.revokeErr
	}

	for i := range s.grants {
		g := &s.grants[i]
		if g.RevokedAt == 0 && g.DocumentID == documentID && g.SubjectType == subjectType && g.SubjectID == subjectID {
			g.RevokedAt = time.Now().Unix()
			g.RevokedByType = revokedBy.Type
			g.RevokedByID = revokedBy.ID
			revoked := *g
			return &revoked, nil
		}
	}
	return nil, models.ErrNoActiveGrant
}

func (s *fakeGrantStore) FindActiveDerivedBy(_ context.Context, documentID bson.ObjectID, grantedByType models.SubjectType, grantedByID bson.ObjectID) ([]*models.AccessGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []*models.AccessGrant
	for i := range s.grants {
		g := s.grants[i]
		if g.RevokedAt == 0 && g.DocumentID == documentID && g.GrantType == models.GrantTypeDerived &&
			g.GrantedByType == grantedByType && g.GrantedByID == grantedByID {
			result = append(result, &g)
		}
	}
	return result, nil
}

func (s *fakeGrantStore) FindByDocument(_ context.Context, documentID bson.ObjectID, page, limit int) ([]*models.AccessGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []*models.AccessGrant
	for i := range s.grants {
		g := s.grants[i]
		if g.DocumentID == documentID {
			result = append(result, &g)
		}
	}
	return result, nil
}

type fakeRevocationStore struct {
	mu   sync.Mutex
	reqs map[bson.ObjectID]models.RevocationRequest
}

func newFakeRevocationStore() *fakeRevocationStore {
	return &fakeRevocationStore{reqs: make(map[bson.ObjectID]models.RevocationRequest)}
}

func (s *fakeRevocationStore) Insert(_ context.Context, request *models.RevocationRequest) (*models.RevocationRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.reqs {
		if existing.Status == models.RequestStatusPending &&
			existing.DocumentID == request.DocumentID &&
			existing.RequestedByType == request.RequestedByType &&
			existing.RequestedByID == request.RequestedByID &&
			existing.RequestType == request.RequestType {
			return nil, models.ErrDuplicatePendingRequest
		}
	}

	if request.ID.IsZero() {
		request.ID = bson.NewObjectID()
	}
	currentTime := time.Now().Unix()
	request.Status = models.RequestStatusPending
	request.CreatedAt = currentTime
	request.UpdatedAt = currentTime

	s.reqs[request.ID] = *request
	return request, nil
}

func (s *fakeRevocationStore) FindByID(_ context.Context, id bson.ObjectID) (*models.RevocationRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.reqs[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &req, nil
}

func (s *fakeRevocationStore) Review(_ context.Context, id bson.ObjectID, status models.RequestStatus, reviewNotes string, reviewedBy models.Authority) (*models.RevocationRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.reqs[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	if req.Status != models.RequestStatusPending {
		return nil, models.ErrRequestNotPending
	}

	currentTime := time.Now().Unix()
	req.Status = status
	req.ReviewNotes = reviewNotes
	req.ReviewedByType = reviewedBy.Type
	req.ReviewedByID = reviewedBy.ID
	req.ReviewedAt = currentTime
	req.UpdatedAt = currentTime

	s.reqs[id] = req
	return &req, nil
}

func (s *fakeRevocationStore) Cancel(_ context.Context, id bson.ObjectID) (*models.RevocationRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.reqs[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	if req.Status != models.RequestStatusPending {
		return nil, models.ErrRequestNotPending
	}

	currentTime := time.Now().Unix()
	req.Status = models.RequestStatusCancelled
	req.UpdatedAt = currentTime
	req.DeletedAt = currentTime

	s.reqs[id] = req
	return &req, nil
}

func (s *fakeRevocationStore) FindAll(_ context.Context, filter models.RevocationRequestFilter) ([]*models.RevocationRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []*models.RevocationRequest
	for _, req := range s.reqs {
		if !filter.DocumentID.IsZero() && req.DocumentID != filter.DocumentID {
			continue
		}
		if filter.RequestedBy != nil &&
			(req.RequestedByType != filter.RequestedBy.Type || req.RequestedByID != filter.RequestedBy.ID) {
			continue
		}
		if filter.Status != "" && req.Status != filter.Status {
			continue
		}
		if filter.RequestType != "" && req.RequestType != filter.RequestType {
			continue
		}
		r := req
		result = append(result, &r)
	}
	return result, nil
}

type recordedEvent struct {
	event   string
	actor   models.Actor
	success bool
}

type fakePublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *fakePublisher) PublishAuditEvent(_ context.Context, event string, actor models.Actor, success bool, _ map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{event: event, actor: actor, success: success})
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) eventNames() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, len(p.events))
	for i, e := range p.events {
		names[i] = e.event
	}
	return names
}

// testEnv wires the three services over the fakes.
type testEnv struct {
	documents  *fakeDocumentStore
	grants     *fakeGrantStore
	requests   *fakeRevocationStore
	publisher  *fakePublisher
	authority  *AuthorityService
	grantSvc   *GrantService
	revocation *RevocationService
}

func newTestEnv() *testEnv {
	documents := newFakeDocumentStore()
	grants := newFakeGrantStore()
	requests := newFakeRevocationStore()
	publisher := &fakePublisher{}

	authority := NewAuthorityService(documents, grants, nil, publisher)
	grantSvc := NewGrantService(documents, grants, authority, publisher)
	revocation := NewRevocationService(documents, requests, grantSvc, authority, publisher)

	return &testEnv{
		documents:  documents,
		grants:     grants,
		requests:   requests,
		publisher:  publisher,
		authority:  authority,
		grantSvc:   grantSvc,
		revocation: revocation,
	}
}

func userActor(id bson.ObjectID) models.Actor {
	return models.Actor{Kind: models.ActorKindUser, ID: id}
}

func managerActor(id bson.ObjectID) models.Actor {
	return models.Actor{Kind: models.ActorKindManager, ID: id}
}

func adminActor(id bson.ObjectID) models.Actor {
	return models.Actor{Kind: models.ActorKindAdmin, ID: id}
}
