package roster

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/aquaflowhq/aquaflow-backend/pkg/db/models"
	pkgerrors "github.com/aquaflowhq/aquaflow-backend/pkg/errors"
)

type rosterRepository interface {
	FindFranchiseByID(ctx context.Context, id uuid.UUID) (*models.Franchise, error)
	FindFranchiseByOwner(ctx context.Context, ownerUserID uuid.UUID) (*models.Franchise, error)
	ListAgentMappings(ctx context.Context, agentUserID uuid.UUID) ([]models.FranchiseAgent, error)
	AgentMappedToFranchise(ctx context.Context, agentUserID, franchiseID uuid.UUID) (bool, error)
	FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Service exposes the roster reads the authorization guard and lifecycles
// depend on.
type Service interface {
	GetFranchise(ctx context.Context, id uuid.UUID) (*models.Franchise, error)
	OwnedFranchise(ctx context.Context, ownerUserID uuid.UUID) (*models.Franchise, error)
	AgentFranchiseMappings(ctx context.Context, agentUserID uuid.UUID) ([]models.FranchiseAgent, error)
	AgentInFranchise(ctx context.Context, agentUserID, franchiseID uuid.UUID) (bool, error)
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type service struct {
	repo rosterRepository
}

// NewService builds a roster service with the provided repository.
func NewService(repo rosterRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("roster repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) GetFranchise(ctx context.Context, id uuid.UUID) (*models.Franchise, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "franchise id is required")
	}
	franchise, err := s.repo.FindFranchiseByID(ctx, id)
	if err != nil {
		if IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "franchise not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading franchise")
	}
	return franchise, nil
}

func (s *service) OwnedFranchise(ctx context.Context, ownerUserID uuid.UUID) (*models.Franchise, error) {
	if ownerUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner user id is required")
	}
	franchise, err := s.repo.FindFranchiseByOwner(ctx, ownerUserID)
	if err != nil {
		if IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no active franchise for owner")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading owned franchise")
	}
	return franchise, nil
}

func (s *service) AgentFranchiseMappings(ctx context.Context, agentUserID uuid.UUID) ([]models.FranchiseAgent, error) {
	if agentUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "agent user id is required")
	}
	mappings, err := s.repo.ListAgentMappings(ctx, agentUserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing agent mappings")
	}
	return mappings, nil
}

func (s *service) AgentInFranchise(ctx context.Context, agentUserID, franchiseID uuid.UUID) (bool, error) {
	if agentUserID == uuid.Nil || franchiseID == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "agent and franchise ids are required")
	}
	mapped, err := s.repo.AgentMappedToFranchise(ctx, agentUserID, franchiseID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "checking agent mapping")
	}
	return mapped, nil
}

func (s *service) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	user, err := s.repo.FindUserByID(ctx, id)
	if err != nil {
		if IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading user")
	}
	return user, nil
}
