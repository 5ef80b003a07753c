package installsync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aquaflowhq/aquaflow-backend/internal/ledger"
	"github.com/aquaflowhq/aquaflow-backend/pkg/db/models"
	"github.com/aquaflowhq/aquaflow-backend/pkg/enums"
	pkgerrors "github.com/aquaflowhq/aquaflow-backend/pkg/errors"
)

// Synchronizer propagates a status change on one of the installation pair
// onto its counterpart. It always runs inside the caller's transaction and
// writes the counterpart status directly, one hop only: it never re-enters
// the lifecycle guard tables, which would loop. One ledger row is appended
// for the counterpart side.
type Synchronizer struct {
	ledger ledger.Service
}

// Actor identifies who caused the originating transition.
type Actor struct {
	UserID uuid.UUID
	Role   enums.Role
}

// NewSynchronizer builds the cross-entity synchronizer.
func NewSynchronizer(ledgerSvc ledger.Service) (*Synchronizer, error) {
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	return &Synchronizer{ledger: ledgerSvc}, nil
}

// FromServiceRequest mirrors an installation-typed service request's new
// status onto its installation request. No-ops for non-installation requests
// and for statuses with no counterpart.
func (s *Synchronizer) FromServiceRequest(ctx context.Context, tx *gorm.DB, request *models.ServiceRequest, actor Actor) error {
	if tx == nil {
		return fmt.Errorf("transaction required")
	}
	if request == nil || request.Type != enums.ServiceRequestTypeInstallation {
		return nil
	}
	if request.InstallationRequestID == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "installation-typed service request without installation request id")
	}
	target, ok := MapServiceToInstallation(request.Status)
	if !ok {
		return nil
	}

	var installation models.InstallationRequest
	if err := tx.WithContext(ctx).
		Where("id = ?", *request.InstallationRequestID).
		First(&installation).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading mirrored installation request")
	}
	if installation.Status == target {
		return nil
	}

	updates := map[string]any{"status": target, "updated_at": time.Now().UTC()}
	if target == enums.InstallationStatusCompleted && installation.CompletedDate == nil {
		updates["completed_date"] = time.Now().UTC()
	}
	if err := tx.WithContext(ctx).
		Model(&models.InstallationRequest{}).
		Where("id = ?", installation.ID).
		Updates(updates).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mirroring status onto installation request")
	}

	_, err := s.ledger.Record(ctx, tx, ledger.RecordActionInput{
		EntityType:  enums.EntityInstallationRequest,
		EntityID:    installation.ID,
		ActionType:  enums.ActionSynchronized,
		FromStatus:  ledger.Str(installation.Status),
		ToStatus:    ledger.Str(target),
		ActorUserID: actor.UserID,
		ActorRole:   actor.Role,
	})
	return err
}

// FromInstallationRequest mirrors an installation request's new status onto
// its installation-typed service request, creating the mirror when
// scheduling happens before one exists.
func (s *Synchronizer) FromInstallationRequest(ctx context.Context, tx *gorm.DB, request *models.InstallationRequest, actor Actor) error {
	if tx == nil {
		return fmt.Errorf("transaction required")
	}
	if request == nil {
		return fmt.Errorf("installation request required")
	}
	target, ok := MapInstallationToService(request.Status)
	if !ok {
		return nil
	}

	var mirror models.ServiceRequest
	err := tx.WithContext(ctx).
		Where("type = ? AND installation_request_id = ?", enums.ServiceRequestTypeInstallation, request.ID).
		First(&mirror).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading mirrored service request")
		}
		// only scheduling creates the mirror; cancelling before one exists
		// has nothing to sync, anything later is a bug upstream
		if target == enums.ServiceRequestStatusCancelled {
			return nil
		}
		if target != enums.ServiceRequestStatusScheduled {
			return pkgerrors.New(pkgerrors.CodeInternal, "no mirrored service request to synchronize")
		}
		mirror = models.ServiceRequest{
			ID:                    uuid.New(),
			Type:                  enums.ServiceRequestTypeInstallation,
			InstallationRequestID: &request.ID,
			CustomerID:            request.CustomerID,
			FranchiseID:           request.FranchiseID,
			AgentID:               request.TechnicianID,
			ScheduledDate:         request.ScheduledDate,
			Status:                target,
		}
		if err := tx.WithContext(ctx).Create(&mirror).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating mirrored service request")
		}
		_, err := s.ledger.Record(ctx, tx, ledger.RecordActionInput{
			EntityType:  enums.EntityServiceRequest,
			EntityID:    mirror.ID,
			ActionType:  enums.ActionSynchronized,
			ToStatus:    ledger.Str(target),
			ActorUserID: actor.UserID,
			ActorRole:   actor.Role,
		})
		return err
	}

	if mirror.Status == target {
		return nil
	}

	updates := map[string]any{"status": target, "updated_at": time.Now().UTC()}
	if request.TechnicianID != nil {
		updates["agent_id"] = *request.TechnicianID
	}
	if request.ScheduledDate != nil {
		updates["scheduled_date"] = *request.ScheduledDate
	}
	if target == enums.ServiceRequestStatusCompleted && mirror.CompletedDate == nil {
		updates["completed_date"] = time.Now().UTC()
	}
	if err := tx.WithContext(ctx).
		Model(&models.ServiceRequest{}).
		Where("id = ?", mirror.ID).
		Updates(updates).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mirroring status onto service request")
	}

	_, err = s.ledger.Record(ctx, tx, ledger.RecordActionInput{
		EntityType:  enums.EntityServiceRequest,
		EntityID:    mirror.ID,
		ActionType:  enums.ActionSynchronized,
		FromStatus:  ledger.Str(mirror.Status),
		ToStatus:    ledger.Str(target),
		ActorUserID: actor.UserID,
		ActorRole:   actor.Role,
	})
	return err
}
