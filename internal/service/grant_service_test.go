package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"document-access-service/internal/models"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestHasAccess(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	owner := managerActor(bson.NewObjectID())
	document, err := env.authority.RegisterDocument(ctx, "brief", owner)
	require.NoError(t, err)

	t.Run("origin authority has access via owner grant", func(t *testing.T) {
		hasAccess, err := env.grantSvc.HasAccess(ctx, document.ID, models.SubjectTypeManager, owner.ID)
		require.NoError(t, err)
		require.True(t, hasAccess)
	})

	t.Run("stranger has no access", func(t *testing.T) {
		hasAccess, err := env.grantSvc.HasAccess(ctx, document.ID, models.SubjectTypeUser, bson.NewObjectID())
		require.NoError(t, err)
		require.False(t, hasAccess)
	})

	t.Run("admin actor never has access", func(t *testing.T) {
		hasAccess, err := env.grantSvc.HasAccessActor(ctx, document.ID, adminActor(owner.ID))
		require.NoError(t, err)
		require.False(t, hasAccess)
	})

	t.Run("resolver covers documents without explicit owner row", func(t *testing.T) {
		// A document persisted before owner rows were materialized.
		legacyManager := bson.NewObjectID()
		legacy, err := env.documents.Create(ctx, &models.Document{Title: "legacy", OriginManagerID: legacyManager})
		require.NoError(t, err)

		hasAccess, err := env.grantSvc.HasAccess(ctx, legacy.ID, models.SubjectTypeManager, legacyManager)
		require.NoError(t, err)
		require.True(t, hasAccess)
	})

	t.Run("missing document", func(t *testing.T) {
		_, err := env.grantSvc.HasAccess(ctx, bson.NewObjectID(), models.SubjectTypeUser, bson.NewObjectID())
		require.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("revoked owner grant is not restored by the resolver", func(t *testing.T) {
		solo := userActor(bson.NewObjectID())
		soloDoc, err := env.authority.RegisterDocument(ctx, "solo", solo)
		require.NoError(t, err)

		require.NoError(t, env.grantSvc.Revoke(ctx, soloDoc.ID, models.SubjectTypeUser, solo.ID, false, solo))

		hasAccess, err := env.grantSvc.HasAccess(ctx, soloDoc.ID, models.SubjectTypeUser, solo.ID)
		require.NoError(t, err)
		require.False(t, hasAccess)
	})
}

func TestGrantDelegation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	owner := managerActor(bson.NewObjectID())
	document, err := env.authority.RegisterDocument(ctx, "playbook", owner)
	require.NoError(t, err)

	delegateID := bson.NewObjectID()

	t.Run("authority delegates to a user", func(t *testing.T) {
		grant, err := env.grantSvc.Grant(ctx, document.ID, models.SubjectTypeUser, delegateID, models.GrantTypeDelegated, owner)
		require.NoError(t, err)
		require.Equal(t, models.GrantTypeDelegated, grant.GrantType)
		require.Equal(t, models.SubjectTypeManager, grant.GrantedByType)
		require.Equal(t, owner.ID, grant.GrantedByID)
	})

	t.Run("duplicate active grant rejected", func(t *testing.T) {
		_, err := env.grantSvc.Grant(ctx, document.ID, models.SubjectTypeUser, delegateID, models.GrantTypeDelegated, owner)
		require.ErrorIs(t, err, models.ErrDuplicateActiveGrant)
	})

	t.Run("delegate hands out a derived grant", func(t *testing.T) {
		grant, err := env.grantSvc.Grant(ctx, document.ID, models.SubjectTypeUser, bson.NewObjectID(), models.GrantTypeDerived, userActor(delegateID))
		require.NoError(t, err)
		require.Equal(t, models.GrantTypeDerived, grant.GrantType)
		require.Equal(t, delegateID, grant.GrantedByID)
	})

	t.Run("delegated grants require the origin authority", func(t *testing.T) {
		_, err := env.grantSvc.Grant(ctx, document.ID, models.SubjectTypeUser, bson.NewObjectID(), models.GrantTypeDelegated, userActor(delegateID))
		require.ErrorIs(t, err, models.ErrForbidden)
	})

	t.Run("grantor without access cannot delegate", func(t *testing.T) {
		_, err := env.grantSvc.Grant(ctx, document.ID, models.SubjectTypeUser, bson.NewObjectID(), models.GrantTypeDerived, userActor(bson.NewObjectID()))
		require.ErrorIs(t, err, models.ErrForbidden)
	})

	t.Run("owner grants cannot be created through delegation", func(t *testing.T) {
		_, err := env.grantSvc.Grant(ctx, document.ID, models.SubjectTypeUser, bson.NewObjectID(), models.GrantTypeOwner, owner)
		require.ErrorIs(t, err, models.ErrInvalidInput)
	})

	t.Run("admin cannot grant", func(t *testing.T) {
		_, err := env.grantSvc.Grant(ctx, document.ID, models.SubjectTypeUser, bson.NewObjectID(), models.GrantTypeDelegated, adminActor(bson.NewObjectID()))
		require.ErrorIs(t, err, models.ErrAdminExcluded)
	})

	t.Run("re-grant after revocation succeeds", func(t *testing.T) {
		require.NoError(t, env.grantSvc.Revoke(ctx, document.ID, models.SubjectTypeUser, delegateID, false, owner))

		_, err := env.grantSvc.Grant(ctx, document.ID, models.SubjectTypeUser, delegateID, models.GrantTypeDelegated, owner)
		require.NoError(t, err)
	})
}

func TestRevoke(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	owner := managerActor(bson.NewObjectID())
	document, err := env.authority.RegisterDocument(ctx, "memo", owner)
	require.NoError(t, err)

	delegate := userActor(bson.NewObjectID())
	_, err = env.grantSvc.Grant(ctx, document.ID, models.SubjectTypeUser, delegate.ID, models.GrantTypeDelegated, owner)
	require.NoError(t, err)

	t.Run("non-authority cannot revoke directly", func(t *testing.T) {
		err := env.grantSvc.Revoke(ctx, document.ID, models.SubjectTypeUser, delegate.ID, false, delegate)
		require.ErrorIs(t, err, models.ErrForbidden)
	})

	t.Run("revoke then second revoke fails", func(t *testing.T) {
		require.NoError(t, env.grantSvc.Revoke(ctx, document.ID, models.SubjectTypeUser, delegate.ID, false, owner))

		err := env.grantSvc.Revoke(ctx, document.ID, models.SubjectTypeUser, delegate.ID, false, owner)
		require.ErrorIs(t, err, models.ErrNoActiveGrant)

		hasAccess, err := env.grantSvc.HasAccess(ctx, document.ID, models.SubjectTypeUser, delegate.ID)
		require.NoError(t, err)
		require.False(t, hasAccess)
	})

	t.Run("revoked grant is retained for audit", func(t *testing.T) {
		grants, err := env.grants.FindByDocument(ctx, document.ID, 0, 0)
		require.NoError(t, err)

		var revoked *models.AccessGrant
		for _, g := range grants {
			if g.SubjectID == delegate.ID && g.RevokedAt != 0 {
				revoked = g
			}
		}
		require.NotNil(t, revoked)
		require.Equal(t, models.SubjectTypeManager, revoked.RevokedByType)
		require.Equal(t, owner.ID, revoked.RevokedByID)
	})
}

func TestCascadeRevokeFollowsLineage(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	owner := managerActor(bson.NewObjectID())
	document, err := env.authority.RegisterDocument(ctx, "ledger", owner)
	require.NoError(t, err)

	// Chain under delegateA: A -> B -> C, all derived below A.
	delegateA := userActor(bson.NewObjectID())
	granteeB := userActor(bson.NewObjectID())
	granteeC := userActor(bson.NewObjectID())

	// Independent chain under delegateD: D -> E.
	delegateD := userActor(bson.NewObjectID())
	granteeE := userActor(bson.NewObjectID())

	_, err = env.grantSvc.Grant(ctx, document.ID, models.SubjectTypeUser, delegateA.ID, models.GrantTypeDelegated, owner)
	require.NoError(t, err)
	_, err = env.grantSvc.Grant(ctx, document.ID, models.SubjectTypeUser, granteeB.ID, models.GrantTypeDerived, delegateA)
	require.NoError(t, err)
	_, err = env.grantSvc.Grant(ctx, document.ID, models.SubjectTypeUser, granteeC.ID, models.GrantTypeDerived, granteeB)
	require.NoError(t, err)
	_, err = env.grantSvc.Grant(ctx, document.ID, models.SubjectTypeUser, delegateD.ID, models.GrantTypeDelegated, owner)
	require.NoError(t, err)
	_, err = env.grantSvc.Grant(ctx, document.ID, models.SubjectTypeUser, granteeE.ID, models.GrantTypeDerived, delegateD)
	require.NoError(t, err)

	require.NoError(t, env.grantSvc.Revoke(ctx, document.ID, models.SubjectTypeUser, delegateA.ID, true, owner))

	for _, revokedSubject := range []bson.ObjectID{delegateA.ID, granteeB.ID, granteeC.ID} {
		hasAccess, err := env.grantSvc.HasAccess(ctx, document.ID, models.SubjectTypeUser, revokedSubject)
		require.NoError(t, err)
		require.False(t, hasAccess, "subject %s should have lost access", revokedSubject.Hex())
	}

	for _, keptSubject := range []bson.ObjectID{delegateD.ID, granteeE.ID} {
		hasAccess, err := env.grantSvc.HasAccess(ctx, document.ID, models.SubjectTypeUser, keptSubject)
		require.NoError(t, err)
		require.True(t, hasAccess, "subject %s should keep access", keptSubject.Hex())
	}
}

func TestConcurrentGrantSingleWinner(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	owner := managerActor(bson.NewObjectID())
	document, err := env.authority.RegisterDocument(ctx, "contested", owner)
	require.NoError(t, err)

	subjectID := bson.NewObjectID()

	const attempts = 16
	results := make(chan error, attempts)

	var wg sync.WaitGroup
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.grantSvc.Grant(ctx, document.ID, models.SubjectTypeUser, subjectID, models.GrantTypeDelegated, owner)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var successes, duplicates int
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, models.ErrDuplicateActiveGrant):
			duplicates++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	require.Equal(t, 1, successes)
	require.Equal(t, attempts-1, duplicates)
}

func TestGetDocumentEnforcesReadAccess(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	owner := userActor(bson.NewObjectID())
	document, err := env.authority.RegisterDocument(ctx, "private", owner)
	require.NoError(t, err)

	t.Run("holder reads metadata", func(t *testing.T) {
		got, err := env.grantSvc.GetDocument(ctx, document.ID, owner)
		require.NoError(t, err)
		require.Equal(t, document.ID, got.ID)
	})

	t.Run("stranger is refused", func(t *testing.T) {
		_, err := env.grantSvc.GetDocument(ctx, document.ID, userActor(bson.NewObjectID()))
		require.ErrorIs(t, err, models.ErrForbidden)
	})

	t.Run("missing document", func(t *testing.T) {
		_, err := env.grantSvc.GetDocument(ctx, bson.NewObjectID(), owner)
		require.ErrorIs(t, err, models.ErrNotFound)
	})
}

func TestListGrantsAuthorityOnly(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()

	owner := managerActor(bson.NewObjectID())
	document, err := env.authority.RegisterDocument(ctx, "history", owner)
	require.NoError(t, err)

	delegate := userActor(bson.NewObjectID())
	_, err = env.grantSvc.Grant(ctx, document.ID, models.SubjectTypeUser, delegate.ID, models.GrantTypeDelegated, owner)
	require.NoError(t, err)

	grants, err := env.grantSvc.ListGrants(ctx, document.ID, owner, 0, 0)
	require.NoError(t, err)
	require.Len(t, grants, 2)

	_, err = env.grantSvc.ListGrants(ctx, document.ID, delegate, 0, 0)
	require.ErrorIs(t, err, models.ErrForbidden)
}
