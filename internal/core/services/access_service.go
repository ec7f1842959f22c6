package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"condogate/internal/adapters/persistence/models"
	"condogate/internal/adapters/persistence/repositories"
	"condogate/internal/core/domain"
	"condogate/internal/pkg/clock"

	"gorm.io/gorm"
)

// RecordAccessInput records one physical-access attempt at the gate.
// Token-based kinds derive unit, visitor and outcome from the consumed
// token; manual kinds carry the guard's explicit outcome.
type RecordAccessInput struct {
	Kind               domain.AccessKind    `json:"kind" validate:"required"`
	UnitID             uint                 `json:"unit_id"`
	TokenValue         string               `json:"token,omitempty"`
	Outcome            domain.AccessOutcome `json:"outcome,omitempty"`
	GuardPersonID      *uint                `json:"guard_person_id,omitempty"`
	AuthorizerPersonID *uint                `json:"authorizer_person_id,omitempty"`
	VisitorID          *uint                `json:"visitor_id,omitempty"`
	PlateDetected      *string              `json:"plate_detected,omitempty"`
	BiometricOK        *bool                `json:"biometric_ok,omitempty"`
	PlateOK            *bool                `json:"plate_ok,omitempty"`
	Attempts           int                  `json:"attempts"`
	Observation        *string              `json:"observation,omitempty"`
}

// PhoneAuthorizationInput records one phone callback tied to an access
// event.
type PhoneAuthorizationInput struct {
	AccessEventID uint                 `json:"access_event_id" validate:"required"`
	Phone         string               `json:"phone" validate:"required"`
	Outcome       domain.PhoneOutcome  `json:"outcome" validate:"required"`
	Attempts      int                  `json:"attempts"`
	StartedAt     *time.Time           `json:"started_at,omitempty"`
	EndedAt       *time.Time           `json:"ended_at,omitempty"`
}

// AccessStatistics is the aggregate picture of gate activity in a period.
// Authorized, Rejected and Pending partition Total: every outcome belongs
// to exactly one bucket.
type AccessStatistics struct {
	From             time.Time                    `json:"from"`
	To               time.Time                    `json:"to"`
	Total            int64                        `json:"total"`
	Authorized       int64                        `json:"authorized"`
	Rejected         int64                        `json:"rejected"`
	Pending          int64                        `json:"pending"`
	DistinctVisitors int64                        `json:"distinct_visitors"`
	ByKind           []repositories.BucketCount   `json:"by_kind"`
	ByOutcome        []repositories.BucketCount   `json:"by_outcome"`
	TopUnits         []repositories.UnitCount     `json:"top_units"`
}

// AccessService records and reports physical-access events.
type AccessService struct {
	db           *gorm.DB
	accessRepo   *repositories.AccessRepository
	tokenService *TokenService
	occupancy    *repositories.OccupancyRepository
	notifier     *NotificationService
	clock        clock.Clock
}

// NewAccessService creates a new access service.
func NewAccessService(
	db *gorm.DB,
	accessRepo *repositories.AccessRepository,
	tokenService *TokenService,
	occupancy *repositories.OccupancyRepository,
	notifier *NotificationService,
	clk clock.Clock,
) *AccessService {
	return &AccessService{
		db:           db,
		accessRepo:   accessRepo,
		tokenService: tokenService,
		occupancy:    occupancy,
		notifier:     notifier,
		clock:        clk,
	}
}

func tokenKind(kind domain.AccessKind) bool {
	return kind == domain.AccessQRResident || kind == domain.AccessQRVisitor
}

// RecordAccess appends one immutable access event. For token kinds the
// token is consumed in the same transaction that records the event, so an
// authorized entry and its spent token always commit together; a token
// that fails consumption still yields a recorded, rejected event. The
// detected plate is matched against the vehicle registry when present.
func (s *AccessService) RecordAccess(ctx context.Context, in RecordAccessInput, actor string) (*models.AccessEvent, error) {
	if !in.Kind.Valid() {
		return nil, domain.Validationf("unknown access kind %q", in.Kind)
	}
	if tokenKind(in.Kind) {
		if in.TokenValue == "" {
			return nil, domain.Validationf("token is required for kind %s", in.Kind)
		}
	} else {
		if in.Outcome == "" || !in.Outcome.Valid() {
			return nil, domain.Validationf("a valid outcome is required for kind %s", in.Kind)
		}
		if in.UnitID == 0 {
			return nil, domain.Validationf("unit_id is required for kind %s", in.Kind)
		}
	}

	now := s.clock.Now()
	var event *models.AccessEvent

	err := serializableTx(ctx, s.db, func(tx *gorm.DB) error {
		access := s.accessRepo.WithTx(tx)
		occupancy := s.occupancy.WithTx(tx)

		event = &models.AccessEvent{
			Kind:               in.Kind,
			UnitID:             in.UnitID,
			GuardPersonID:      in.GuardPersonID,
			AuthorizerPersonID: in.AuthorizerPersonID,
			VisitorID:          in.VisitorID,
			PlateDetected:      in.PlateDetected,
			BiometricOK:        in.BiometricOK,
			PlateOK:            in.PlateOK,
			Attempts:           in.Attempts,
			Observation:        in.Observation,
			CreatedAt:          now,
			CreatedBy:          actor,
		}

		if tokenKind(in.Kind) {
			// Biometric or plate checks that failed at the gate reject
			// the attempt before the token is touched, leaving it valid
			// for a retry.
			if in.BiometricOK != nil && !*in.BiometricOK {
				event.Outcome = domain.OutcomeBiometricFailure
			} else if in.PlateOK != nil && !*in.PlateOK {
				event.Outcome = domain.OutcomePlateFailure
			} else {
				consumed, outcome, err := s.tokenService.consume(ctx, s.tokenService.tokenRepo.WithTx(tx), in.TokenValue, actor, now)
				if err != nil {
					return err
				}
				event.Outcome = outcome
				if consumed != nil {
					event.UnitID = consumed.UnitID
					event.VisitorID = consumed.VisitorID
				}
			}
			if event.UnitID == 0 {
				// A rejected unknown token has no unit to attach to.
				if in.UnitID == 0 {
					return domain.Validationf("unit_id is required when the token cannot be resolved")
				}
				event.UnitID = in.UnitID
			}
		} else {
			event.Outcome = in.Outcome
		}

		if _, err := occupancy.GetUnitByID(ctx, event.UnitID); err != nil {
			return domain.NotFoundf("unit %d not found", event.UnitID)
		}

		if in.PlateDetected != nil && event.VehicleID == nil {
			vehicle, err := occupancy.FindVehicleByPlate(ctx, *in.PlateDetected)
			if err != nil {
				return err
			}
			if vehicle != nil {
				event.VehicleID = &vehicle.ID
			}
		}

		return access.CreateEvent(ctx, event)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("✅ Access event %d recorded: %s / %s on unit %d", event.ID, event.Kind, event.Outcome, event.UnitID)
	s.notifier.AccessRecorded(event, fmt.Sprintf("Access %s at the gate (%s)", event.Outcome, event.Kind))
	return event, nil
}

// GetEvent returns one access event with its relations.
func (s *AccessService) GetEvent(ctx context.Context, id uint) (*models.AccessEvent, error) {
	event, err := s.accessRepo.GetEventByID(ctx, id)
	if err != nil {
		return nil, domain.NotFoundf("access event %d not found", id)
	}
	return event, nil
}

// ListEvents returns access events matching the filter, newest first.
func (s *AccessService) ListEvents(ctx context.Context, filter repositories.EventFilter, offset, limit int) ([]*models.AccessEvent, int64, error) {
	return s.accessRepo.ListEvents(ctx, filter, offset, limit)
}

// CorrectEvent supersedes a recorded event. Events are immutable, so the
// correction soft-deletes the original and inserts a replacement pointing
// at the same attempt; both steps commit together.
func (s *AccessService) CorrectEvent(ctx context.Context, eventID uint, outcome domain.AccessOutcome, observation, reason, actor string) (*models.AccessEvent, error) {
	if !outcome.Valid() {
		return nil, domain.Validationf("unknown outcome %q", outcome)
	}
	if reason == "" {
		return nil, domain.Validationf("a correction reason is required")
	}

	now := s.clock.Now()
	var replacement *models.AccessEvent

	err := serializableTx(ctx, s.db, func(tx *gorm.DB) error {
		access := s.accessRepo.WithTx(tx)

		original, err := access.GetEventByID(ctx, eventID)
		if err != nil {
			return domain.NotFoundf("access event %d not found", eventID)
		}
		if original.Deleted {
			return domain.InvalidStatef("access event %d is already superseded", eventID)
		}

		original.Deleted = true
		original.DeletedReason = &reason
		if err := tx.WithContext(ctx).Model(&models.AccessEvent{}).
			Where("id = ?", original.ID).
			Updates(map[string]interface{}{"deleted": true, "deleted_reason": reason}).Error; err != nil {
			return err
		}

		replacement = &models.AccessEvent{
			Kind:               original.Kind,
			UnitID:             original.UnitID,
			Outcome:            outcome,
			GuardPersonID:      original.GuardPersonID,
			AuthorizerPersonID: original.AuthorizerPersonID,
			VisitorID:          original.VisitorID,
			VehicleID:          original.VehicleID,
			PlateDetected:      original.PlateDetected,
			BiometricOK:        original.BiometricOK,
			PlateOK:            original.PlateOK,
			Attempts:           original.Attempts,
			CreatedAt:          now,
			CreatedBy:          actor,
		}
		if observation != "" {
			replacement.Observation = &observation
		}
		return access.CreateEvent(ctx, replacement)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("✅ Access event %d superseded by %d", eventID, replacement.ID)
	return replacement, nil
}

// RecordPhoneAuthorization attaches one phone callback result to an event.
func (s *AccessService) RecordPhoneAuthorization(ctx context.Context, in PhoneAuthorizationInput, actor string) (*models.PhoneAuthorization, error) {
	if in.Phone == "" {
		return nil, domain.Validationf("phone is required")
	}
	if !in.Outcome.Valid() {
		return nil, domain.Validationf("unknown phone outcome %q", in.Outcome)
	}

	now := s.clock.Now()
	if _, err := s.accessRepo.GetEventByID(ctx, in.AccessEventID); err != nil {
		return nil, domain.NotFoundf("access event %d not found", in.AccessEventID)
	}

	pa := &models.PhoneAuthorization{
		AccessEventID: in.AccessEventID,
		Phone:         in.Phone,
		Outcome:       &in.Outcome,
		Attempts:      in.Attempts,
		StartedAt:     in.StartedAt,
		EndedAt:       in.EndedAt,
		Audit:         models.Audit{CreatedAt: now, CreatedBy: actor},
	}
	if err := s.accessRepo.CreatePhoneAuthorization(ctx, pa); err != nil {
		return nil, err
	}
	return pa, nil
}

// topUnitsLimit caps the busiest-units ranking.
const topUnitsLimit = 10

// Statistics computes the gate activity aggregate for [from, to].
func (s *AccessService) Statistics(ctx context.Context, from, to time.Time) (*AccessStatistics, error) {
	from = clock.Naive(from)
	to = clock.Naive(to)
	if !from.Before(to) {
		return nil, domain.Validationf("from must precede to")
	}

	stats := &AccessStatistics{From: from, To: to}
	var err error

	if stats.Total, err = s.accessRepo.CountInRange(ctx, from, to); err != nil {
		return nil, err
	}
	if stats.Authorized, err = s.accessRepo.CountByOutcomes(ctx, from, to, []domain.AccessOutcome{domain.OutcomeAuthorized}); err != nil {
		return nil, err
	}
	if stats.Rejected, err = s.accessRepo.CountByOutcomes(ctx, from, to, domain.RejectedOutcomes); err != nil {
		return nil, err
	}
	if stats.Pending, err = s.accessRepo.CountByOutcomes(ctx, from, to, domain.PendingOutcomes); err != nil {
		return nil, err
	}
	if stats.DistinctVisitors, err = s.accessRepo.CountDistinctVisitors(ctx, from, to); err != nil {
		return nil, err
	}
	if stats.ByKind, err = s.accessRepo.CountByKind(ctx, from, to); err != nil {
		return nil, err
	}
	if stats.ByOutcome, err = s.accessRepo.CountByOutcome(ctx, from, to); err != nil {
		return nil, err
	}
	if stats.TopUnits, err = s.accessRepo.TopUnits(ctx, from, to, topUnitsLimit); err != nil {
		return nil, err
	}
	return stats, nil
}
