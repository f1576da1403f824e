package models

import (
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Enums and Constants
type ActorKind string

const (
	ActorKindUser    ActorKind = "user"
	ActorKindManager ActorKind = "manager"
	ActorKindAdmin   ActorKind = "admin"
)

func (k ActorKind) Valid() bool {
	switch k {
	case ActorKindUser, ActorKindManager, ActorKindAdmin:
		return true
	}
	return false
}

type SubjectType string

const (
	SubjectTypeUser    SubjectType = "user"
	SubjectTypeManager SubjectType = "manager"
)

func (s SubjectType) Valid() bool {
	return s == SubjectTypeUser || s == SubjectTypeManager
}

type GrantType string

const (
	GrantTypeOwner     GrantType = "owner"
	GrantTypeDelegated GrantType = "delegated"
	GrantTypeDerived   GrantType = "derived"
)

func (g GrantType) Valid() bool {
	switch g {
	case GrantTypeOwner, GrantTypeDelegated, GrantTypeDerived:
		return true
	}
	return false
}

type RequestType string

const (
	RequestTypeSelfRevocation    RequestType = "self_revocation"
	RequestTypeUserRevocation    RequestType = "user_revocation"
	RequestTypeManagerRevocation RequestType = "manager_revocation"
)

func (r RequestType) Valid() bool {
	switch r {
	case RequestTypeSelfRevocation, RequestTypeUserRevocation, RequestTypeManagerRevocation:
		return true
	}
	return false
}

type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "pending"
	RequestStatusApproved  RequestStatus = "approved"
	RequestStatusDenied    RequestStatus = "denied"
	RequestStatusCancelled RequestStatus = "cancelled"
)

func (s RequestStatus) Valid() bool {
	switch s {
	case RequestStatusPending, RequestStatusApproved, RequestStatusDenied, RequestStatusCancelled:
		return true
	}
	return false
}

func (s RequestStatus) Terminal() bool {
	return s == RequestStatusApproved || s == RequestStatusDenied || s == RequestStatusCancelled
}

// Actor is the request identity every operation runs as. The kind set is
// closed; guards switch over it exhaustively so a new kind cannot slip past
// an authorization check unnoticed.
type Actor struct {
	Kind ActorKind     `json:"kind"`
	ID   bson.ObjectID `json:"id"`
}

// Subject converts the actor into a grant subject. Administrators are
// categorically excluded from holding or receiving grants, so they have no
// subject form.
func (a Actor) Subject() (SubjectType, bson.ObjectID, bool) {
	switch a.Kind {
	case ActorKindUser:
		return SubjectTypeUser, a.ID, true
	case ActorKindManager:
		return SubjectTypeManager, a.ID, true
	case ActorKindAdmin:
		return "", bson.ObjectID{}, false
	}
	return "", bson.ObjectID{}, false
}

func (a Actor) IsSubject(subjectType SubjectType, subjectID bson.ObjectID) bool {
	st, sid, ok := a.Subject()
	return ok && st == subjectType && sid == subjectID
}

// Authority is a resolved origin authority for a document: either the
// assigned manager, or transitionally the uploading user.
type Authority struct {
	Type SubjectType   `json:"type"`
	ID   bson.ObjectID `json:"id"`
}

func (a Authority) HeldBy(actor Actor) bool {
	return actor.IsSubject(a.Type, a.ID)
}

// Core Models
type Document struct {
	ID                  bson.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	Title               string        `json:"title" bson:"title"`
	OriginManagerID     bson.ObjectID `json:"originManagerId,omitempty" bson:"originManagerId,omitempty"`
	OriginUserContextID bson.ObjectID `json:"originUserContextId,omitempty" bson:"originUserContextId,omitempty"`
	CreatedAt           int64         `json:"createdAt" bson:"createdAt"`
	UpdatedAt           int64         `json:"updatedAt" bson:"updatedAt"`
}

// AccessGrant rows are append-only: revocation stamps the revoked* fields and
// never deletes the row, so the full grant history stays queryable. A zero
// RevokedAt marks the grant active; uniqueness per (document, subject) is
// enforced only over active rows.
type AccessGrant struct {
	ID            bson.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	DocumentID    bson.ObjectID `json:"documentId" bson:"documentId"`
	SubjectType   SubjectType   `json:"subjectType" bson:"subjectType"`
	SubjectID     bson.ObjectID `json:"subjectId" bson:"subjectId"`
	GrantType     GrantType     `json:"grantType" bson:"grantType"`
	GrantedByType SubjectType   `json:"grantedByType" bson:"grantedByType"`
	GrantedByID   bson.ObjectID `json:"grantedById" bson:"grantedById"`
	CreatedAt     int64         `json:"createdAt" bson:"createdAt"`
	RevokedAt     int64         `json:"revokedAt,omitempty" bson:"revokedAt"`
	RevokedByType SubjectType   `json:"revokedByType,omitempty" bson:"revokedByType,omitempty"`
	RevokedByID   bson.ObjectID `json:"revokedById,omitempty" bson:"revokedById,omitempty"`
}

func (g *AccessGrant) Active() bool {
	return g.RevokedAt == 0
}

type RevocationRequest struct {
	ID                         bson.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	DocumentID                 bson.ObjectID `json:"documentId" bson:"documentId"`
	RequestedByType            SubjectType   `json:"requestedByType" bson:"requestedByType"`
	RequestedByID              bson.ObjectID `json:"requestedById" bson:"requestedById"`
	RequestType                RequestType   `json:"requestType" bson:"requestType"`
	TargetSubjectType          SubjectType   `json:"targetSubjectType" bson:"targetSubjectType"`
	TargetSubjectID            bson.ObjectID `json:"targetSubjectId" bson:"targetSubjectId"`
	Status                     RequestStatus `json:"status" bson:"status"`
	CascadeToSecondaryManagers bool          `json:"cascadeToSecondaryManagers" bson:"cascadeToSecondaryManagers"`
	ReviewNotes                string        `json:"reviewNotes,omitempty" bson:"reviewNotes,omitempty"`
	ReviewedByType             SubjectType   `json:"reviewedByType,omitempty" bson:"reviewedByType,omitempty"`
	ReviewedByID               bson.ObjectID `json:"reviewedById,omitempty" bson:"reviewedById,omitempty"`
	ReviewedAt                 int64         `json:"reviewedAt,omitempty" bson:"reviewedAt,omitempty"`
	CreatedAt                  int64         `json:"createdAt" bson:"createdAt"`
	UpdatedAt                  int64         `json:"updatedAt" bson:"updatedAt"`
	DeletedAt                  int64         `json:"-" bson:"deletedAt,omitempty"`
}

func (r *RevocationRequest) RequestedBy() Authority {
	return Authority{Type: r.RequestedByType, ID: r.RequestedByID}
}

// DTOs and Requests
type RegisterDocumentRequest struct {
	Title string `json:"title"`
}

type AssignManagerRequest struct {
	ManagerID string `json:"managerId"`
}

type CreateGrantRequest struct {
	SubjectType SubjectType `json:"subjectType"`
	SubjectID   string      `json:"subjectId"`
	GrantType   GrantType   `json:"grantType"`
}

type RevokeGrantRequest struct {
	SubjectType SubjectType `json:"subjectType"`
	SubjectID   string      `json:"subjectId"`
	Cascade     bool        `json:"cascade"`
}

type CreateRevocationRequestRequest struct {
	DocumentID                 string      `json:"documentId"`
	RequestType                RequestType `json:"requestType"`
	TargetSubjectType          SubjectType `json:"targetSubjectType,omitempty"`
	TargetSubjectID            string      `json:"targetSubjectId,omitempty"`
	CascadeToSecondaryManagers bool        `json:"cascadeToSecondaryManagers"`
}

type ReviewRevocationRequestRequest struct {
	ReviewNotes string `json:"reviewNotes"`
}

type RevocationRequestFilter struct {
	DocumentID  bson.ObjectID
	RequestedBy *Authority
	Status      RequestStatus
	RequestType RequestType
	Page        int
	Limit       int
}
