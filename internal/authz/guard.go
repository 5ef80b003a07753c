package authz

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/aquaflowhq/aquaflow-backend/internal/roster"
	"github.com/aquaflowhq/aquaflow-backend/pkg/db/models"
	"github.com/aquaflowhq/aquaflow-backend/pkg/enums"
	pkgerrors "github.com/aquaflowhq/aquaflow-backend/pkg/errors"
)

// Actor is the authenticated caller every mutating operation receives.
type Actor struct {
	UserID uuid.UUID
	Role   enums.Role
}

// Guard applies role and ownership checks before lifecycle mutations.
// Ownership is resolved through the roster: franchise owners are scoped to
// their own franchise, agents to franchises they hold an active mapping for.
type Guard struct {
	roster roster.Service
}

// NewGuard builds an authorization guard backed by the roster.
func NewGuard(rosterSvc roster.Service) (*Guard, error) {
	if rosterSvc == nil {
		return nil, fmt.Errorf("roster service required")
	}
	return &Guard{roster: rosterSvc}, nil
}

// RequireRole rejects actors whose role is not in the allowed set.
func (g *Guard) RequireRole(actor Actor, roles ...enums.Role) error {
	if !actor.Role.IsValid() {
		return pkgerrors.New(pkgerrors.CodeForbidden, "unknown actor role")
	}
	for _, role := range roles {
		if actor.Role == role {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "role not permitted for this operation")
}

// ownsFranchise reports whether the actor is the owner of the franchise.
func (g *Guard) ownsFranchise(ctx context.Context, actor Actor, franchiseID uuid.UUID) (bool, error) {
	owned, err := g.roster.OwnedFranchise(ctx, actor.UserID)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return false, nil
		}
		return false, err
	}
	return owned.ID == franchiseID, nil
}

// CanManageInstallation authorizes a mutating call on an installation request.
// Admins always pass; franchise owners must own the request's franchise;
// the assigned technician passes; customers only for their own request.
func (g *Guard) CanManageInstallation(ctx context.Context, actor Actor, request *models.InstallationRequest) error {
	if request == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "installation request not found")
	}
	switch actor.Role {
	case enums.RoleAdmin:
		return nil
	case enums.RoleFranchiseOwner:
		owns, err := g.ownsFranchise(ctx, actor, request.FranchiseID)
		if err != nil {
			return err
		}
		if !owns {
			return pkgerrors.New(pkgerrors.CodeForbidden, "franchise owner does not own this request's franchise")
		}
		return nil
	case enums.RoleServiceAgent:
		if request.TechnicianID != nil && *request.TechnicianID == actor.UserID {
			return nil
		}
		mapped, err := g.roster.AgentInFranchise(ctx, actor.UserID, request.FranchiseID)
		if err != nil {
			return err
		}
		if !mapped {
			return pkgerrors.New(pkgerrors.CodeForbidden, "agent is not mapped to this request's franchise")
		}
		return nil
	case enums.RoleCustomer:
		if request.CustomerID == actor.UserID {
			return nil
		}
		return pkgerrors.New(pkgerrors.CodeForbidden, "customers may only act on their own requests")
	default:
		return pkgerrors.New(pkgerrors.CodeForbidden, "unknown actor role")
	}
}

// CanManageServiceRequest authorizes a mutating call on a service request.
func (g *Guard) CanManageServiceRequest(ctx context.Context, actor Actor, request *models.ServiceRequest) error {
	if request == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "service request not found")
	}
	switch actor.Role {
	case enums.RoleAdmin:
		return nil
	case enums.RoleFranchiseOwner:
		owns, err := g.ownsFranchise(ctx, actor, request.FranchiseID)
		if err != nil {
			return err
		}
		if !owns {
			return pkgerrors.New(pkgerrors.CodeForbidden, "franchise owner does not own this request's franchise")
		}
		return nil
	case enums.RoleServiceAgent:
		if request.AgentID != nil && *request.AgentID == actor.UserID {
			return nil
		}
		mapped, err := g.roster.AgentInFranchise(ctx, actor.UserID, request.FranchiseID)
		if err != nil {
			return err
		}
		if !mapped {
			return pkgerrors.New(pkgerrors.CodeForbidden, "agent is not mapped to this request's franchise")
		}
		return nil
	case enums.RoleCustomer:
		if request.CustomerID == actor.UserID {
			return nil
		}
		return pkgerrors.New(pkgerrors.CodeForbidden, "customers may only act on their own requests")
	default:
		return pkgerrors.New(pkgerrors.CodeForbidden, "unknown actor role")
	}
}

// CanManageSubscription restricts pause/resume/terminate to admins and the
// owning franchise owner; customers may read their own subscription only.
func (g *Guard) CanManageSubscription(ctx context.Context, actor Actor, subscription *models.Subscription) error {
	if subscription == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
	}
	switch actor.Role {
	case enums.RoleAdmin:
		return nil
	case enums.RoleFranchiseOwner:
		owns, err := g.ownsFranchise(ctx, actor, subscription.FranchiseID)
		if err != nil {
			return err
		}
		if !owns {
			return pkgerrors.New(pkgerrors.CodeForbidden, "franchise owner does not own this subscription's franchise")
		}
		return nil
	default:
		return pkgerrors.New(pkgerrors.CodeForbidden, "only admins and franchise owners may manage subscriptions")
	}
}

// CanCollectSubscriptionPayment authorizes settling a subscription's monthly
// due: admins, the owning franchise owner, or an agent actively mapped to the
// subscription's franchise.
func (g *Guard) CanCollectSubscriptionPayment(ctx context.Context, actor Actor, subscription *models.Subscription) error {
	if subscription == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
	}
	switch actor.Role {
	case enums.RoleAdmin:
		return nil
	case enums.RoleFranchiseOwner:
		owns, err := g.ownsFranchise(ctx, actor, subscription.FranchiseID)
		if err != nil {
			return err
		}
		if !owns {
			return pkgerrors.New(pkgerrors.CodeForbidden, "franchise owner does not own this subscription's franchise")
		}
		return nil
	case enums.RoleServiceAgent:
		mapped, err := g.roster.AgentInFranchise(ctx, actor.UserID, subscription.FranchiseID)
		if err != nil {
			return err
		}
		if !mapped {
			return pkgerrors.New(pkgerrors.CodeForbidden, "agent is not mapped to this subscription's franchise")
		}
		return nil
	default:
		return pkgerrors.New(pkgerrors.CodeForbidden, "customers cannot confirm payments")
	}
}

// CanAssignAgent restricts agent assignment to admins and the owning
// franchise owner.
func (g *Guard) CanAssignAgent(ctx context.Context, actor Actor, request *models.ServiceRequest) error {
	if request == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "service request not found")
	}
	switch actor.Role {
	case enums.RoleAdmin:
		return nil
	case enums.RoleFranchiseOwner:
		owns, err := g.ownsFranchise(ctx, actor, request.FranchiseID)
		if err != nil {
			return err
		}
		if !owns {
			return pkgerrors.New(pkgerrors.CodeForbidden, "franchise owner does not own this request's franchise")
		}
		return nil
	default:
		return pkgerrors.New(pkgerrors.CodeForbidden, "only admins and franchise owners may assign agents")
	}
}

// CanAssignSelf allows a service agent with an active mapping to the
// request's franchise to claim an unassigned, non-installation request.
func (g *Guard) CanAssignSelf(ctx context.Context, actor Actor, request *models.ServiceRequest) error {
	if request == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "service request not found")
	}
	if actor.Role != enums.RoleServiceAgent {
		return pkgerrors.New(pkgerrors.CodeForbidden, "only service agents may self-assign")
	}
	if request.Type == enums.ServiceRequestTypeInstallation {
		return pkgerrors.New(pkgerrors.CodeForbidden, "installation work is assigned by the franchise, not claimed")
	}
	if request.AgentID != nil {
		return pkgerrors.New(pkgerrors.CodeConflict, "request already has an assigned agent")
	}
	mapped, err := g.roster.AgentInFranchise(ctx, actor.UserID, request.FranchiseID)
	if err != nil {
		return err
	}
	if !mapped {
		return pkgerrors.New(pkgerrors.CodeForbidden, "agent is not mapped to this request's franchise")
	}
	return nil
}

// CanSchedule permits admins, the owning franchise owner, or the assigned
// agent to set a scheduled date.
func (g *Guard) CanSchedule(ctx context.Context, actor Actor, request *models.ServiceRequest) error {
	if request == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "service request not found")
	}
	if actor.Role == enums.RoleServiceAgent {
		if request.AgentID != nil && *request.AgentID == actor.UserID {
			return nil
		}
		return pkgerrors.New(pkgerrors.CodeForbidden, "only the assigned agent may schedule")
	}
	return g.CanAssignAgent(ctx, actor, request)
}
