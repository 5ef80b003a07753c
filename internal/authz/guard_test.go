package authz

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aquaflowhq/aquaflow-backend/pkg/db/models"
	"github.com/aquaflowhq/aquaflow-backend/pkg/enums"
	pkgerrors "github.com/aquaflowhq/aquaflow-backend/pkg/errors"
)

type fakeRoster struct {
	ownedFranchise *models.Franchise
	mappings       map[uuid.UUID][]uuid.UUID
}

func (f *fakeRoster) GetFranchise(ctx context.Context, id uuid.UUID) (*models.Franchise, error) {
	if f.ownedFranchise != nil && f.ownedFranchise.ID == id {
		return f.ownedFranchise, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "franchise not found")
}

func (f *fakeRoster) OwnedFranchise(ctx context.Context, ownerUserID uuid.UUID) (*models.Franchise, error) {
	if f.ownedFranchise != nil && f.ownedFranchise.OwnerUserID == ownerUserID {
		return f.ownedFranchise, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no active franchise for owner")
}

func (f *fakeRoster) AgentFranchiseMappings(ctx context.Context, agentUserID uuid.UUID) ([]models.FranchiseAgent, error) {
	return nil, nil
}

func (f *fakeRoster) AgentInFranchise(ctx context.Context, agentUserID, franchiseID uuid.UUID) (bool, error) {
	for _, id := range f.mappings[agentUserID] {
		if id == franchiseID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRoster) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
}

func newTestGuard(t *testing.T, roster *fakeRoster) *Guard {
	t.Helper()
	guard, err := NewGuard(roster)
	require.NoError(t, err)
	return guard
}

func TestGuard_RequireRole(t *testing.T) {
	guard := newTestGuard(t, &fakeRoster{})

	actor := Actor{UserID: uuid.New(), Role: enums.RoleCustomer}
	assert.NoError(t, guard.RequireRole(actor, enums.RoleCustomer, enums.RoleAdmin))

	err := guard.RequireRole(actor, enums.RoleAdmin)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}

func TestGuard_CanManageInstallation_FranchiseOwnerScope(t *testing.T) {
	ownerID := uuid.New()
	franchiseID := uuid.New()
	guard := newTestGuard(t, &fakeRoster{
		ownedFranchise: &models.Franchise{ID: franchiseID, OwnerUserID: ownerID, IsActive: true},
	})
	ctx := context.Background()

	owner := Actor{UserID: ownerID, Role: enums.RoleFranchiseOwner}
	own := &models.InstallationRequest{ID: uuid.New(), FranchiseID: franchiseID, CustomerID: uuid.New()}
	foreign := &models.InstallationRequest{ID: uuid.New(), FranchiseID: uuid.New(), CustomerID: uuid.New()}

	assert.NoError(t, guard.CanManageInstallation(ctx, owner, own))

	err := guard.CanManageInstallation(ctx, owner, foreign)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	// an owner with no franchise at all is forbidden, not erred
	stranger := Actor{UserID: uuid.New(), Role: enums.RoleFranchiseOwner}
	err = guard.CanManageInstallation(ctx, stranger, own)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}

func TestGuard_CanManageInstallation_CustomerOwnsRequest(t *testing.T) {
	guard := newTestGuard(t, &fakeRoster{})
	ctx := context.Background()

	customerID := uuid.New()
	request := &models.InstallationRequest{ID: uuid.New(), FranchiseID: uuid.New(), CustomerID: customerID}

	assert.NoError(t, guard.CanManageInstallation(ctx, Actor{UserID: customerID, Role: enums.RoleCustomer}, request))

	err := guard.CanManageInstallation(ctx, Actor{UserID: uuid.New(), Role: enums.RoleCustomer}, request)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}

func TestGuard_CanAssignSelf(t *testing.T) {
	agentID := uuid.New()
	franchiseID := uuid.New()
	guard := newTestGuard(t, &fakeRoster{
		mappings: map[uuid.UUID][]uuid.UUID{agentID: {franchiseID}},
	})
	ctx := context.Background()
	agent := Actor{UserID: agentID, Role: enums.RoleServiceAgent}

	open := &models.ServiceRequest{
		ID:          uuid.New(),
		Type:        enums.ServiceRequestTypeRepair,
		FranchiseID: franchiseID,
		CustomerID:  uuid.New(),
	}
	assert.NoError(t, guard.CanAssignSelf(ctx, agent, open))

	t.Run("unmapped agent forbidden", func(t *testing.T) {
		unmapped := Actor{UserID: uuid.New(), Role: enums.RoleServiceAgent}
		err := guard.CanAssignSelf(ctx, unmapped, open)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
	})

	t.Run("installation type forbidden", func(t *testing.T) {
		installation := &models.ServiceRequest{
			ID:          uuid.New(),
			Type:        enums.ServiceRequestTypeInstallation,
			FranchiseID: franchiseID,
			CustomerID:  uuid.New(),
		}
		err := guard.CanAssignSelf(ctx, agent, installation)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
	})

	t.Run("already assigned conflicts", func(t *testing.T) {
		other := uuid.New()
		assigned := &models.ServiceRequest{
			ID:          uuid.New(),
			Type:        enums.ServiceRequestTypeRepair,
			FranchiseID: franchiseID,
			CustomerID:  uuid.New(),
			AgentID:     &other,
		}
		err := guard.CanAssignSelf(ctx, agent, assigned)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	})

	t.Run("non-agent forbidden", func(t *testing.T) {
		err := guard.CanAssignSelf(ctx, Actor{UserID: uuid.New(), Role: enums.RoleCustomer}, open)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
	})
}

func TestGuard_CanCollectSubscriptionPayment(t *testing.T) {
	ownerID := uuid.New()
	agentID := uuid.New()
	franchiseID := uuid.New()
	guard := newTestGuard(t, &fakeRoster{
		ownedFranchise: &models.Franchise{ID: franchiseID, OwnerUserID: ownerID, IsActive: true},
		mappings:       map[uuid.UUID][]uuid.UUID{agentID: {franchiseID}},
	})
	ctx := context.Background()

	subscription := &models.Subscription{ID: uuid.New(), FranchiseID: franchiseID, CustomerID: uuid.New()}

	assert.NoError(t, guard.CanCollectSubscriptionPayment(ctx, Actor{UserID: uuid.New(), Role: enums.RoleAdmin}, subscription))
	assert.NoError(t, guard.CanCollectSubscriptionPayment(ctx, Actor{UserID: ownerID, Role: enums.RoleFranchiseOwner}, subscription))
	assert.NoError(t, guard.CanCollectSubscriptionPayment(ctx, Actor{UserID: agentID, Role: enums.RoleServiceAgent}, subscription))

	t.Run("foreign franchise owner forbidden", func(t *testing.T) {
		foreign := &models.Subscription{ID: uuid.New(), FranchiseID: uuid.New(), CustomerID: uuid.New()}
		err := guard.CanCollectSubscriptionPayment(ctx, Actor{UserID: ownerID, Role: enums.RoleFranchiseOwner}, foreign)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
	})

	t.Run("unmapped agent forbidden", func(t *testing.T) {
		err := guard.CanCollectSubscriptionPayment(ctx, Actor{UserID: uuid.New(), Role: enums.RoleServiceAgent}, subscription)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
	})

	t.Run("customer forbidden", func(t *testing.T) {
		err := guard.CanCollectSubscriptionPayment(ctx, Actor{UserID: subscription.CustomerID, Role: enums.RoleCustomer}, subscription)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
	})
}

func TestGuard_CanSchedule(t *testing.T) {
	agentID := uuid.New()
	guard := newTestGuard(t, &fakeRoster{})
	ctx := context.Background()

	request := &models.ServiceRequest{
		ID:          uuid.New(),
		Type:        enums.ServiceRequestTypeMaintenance,
		FranchiseID: uuid.New(),
		CustomerID:  uuid.New(),
		AgentID:     &agentID,
	}

	assert.NoError(t, guard.CanSchedule(ctx, Actor{UserID: agentID, Role: enums.RoleServiceAgent}, request))
	assert.NoError(t, guard.CanSchedule(ctx, Actor{UserID: uuid.New(), Role: enums.RoleAdmin}, request))

	err := guard.CanSchedule(ctx, Actor{UserID: uuid.New(), Role: enums.RoleServiceAgent}, request)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}
