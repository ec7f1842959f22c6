package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"condogate/internal/adapters/persistence/models"
	"condogate/internal/adapters/persistence/repositories"
	"condogate/internal/pkg/clock"
)

// PushGateway delivers a push message to one device identified by the
// account's external UID.
type PushGateway interface {
	Push(ctx context.Context, externalUID, title, body string) error
}

// DocumentReplica mirrors gate-relevant records into the document store
// the guard booth tablets read from.
type DocumentReplica interface {
	SaveToken(ctx context.Context, token *models.AccessToken) error
	SaveAccessEvent(ctx context.Context, event *models.AccessEvent) error
}

// NotificationService fans messages out to a unit's household and mirrors
// records to the gate replica. Every outbound call runs after the owning
// transaction commits and never blocks or fails the caller; a lost push is
// logged and forgotten.
type NotificationService struct {
	auditRepo     *repositories.AuditRepository
	accountRepo   *repositories.AccountRepository
	occupancyRepo *repositories.OccupancyRepository
	gateway       PushGateway
	replica       DocumentReplica
	clock         clock.Clock
}

// NewNotificationService creates a new notification service. Gateway and
// replica may be nil; the corresponding deliveries are then skipped.
func NewNotificationService(
	auditRepo *repositories.AuditRepository,
	accountRepo *repositories.AccountRepository,
	occupancyRepo *repositories.OccupancyRepository,
	gateway PushGateway,
	replica DocumentReplica,
	clk clock.Clock,
) *NotificationService {
	return &NotificationService{
		auditRepo:     auditRepo,
		accountRepo:   accountRepo,
		occupancyRepo: occupancyRepo,
		gateway:       gateway,
		replica:       replica,
		clock:         clk,
	}
}

const deliveryTimeout = 10 * time.Second

// TokenIssued mirrors a freshly issued token to the gate replica.
func (s *NotificationService) TokenIssued(token *models.AccessToken) {
	if s == nil || s.replica == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
		defer cancel()
		if err := s.replica.SaveToken(ctx, token); err != nil {
			log.Printf("❌ Token %d replica sync failed: %v", token.ID, err)
		}
	}()
}

// AccessRecorded mirrors an access event to the gate replica and notifies
// the unit's household.
func (s *NotificationService) AccessRecorded(event *models.AccessEvent, message string) {
	if s == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
		defer cancel()

		if s.replica != nil {
			if err := s.replica.SaveAccessEvent(ctx, event); err != nil {
				log.Printf("❌ Access event %d replica sync failed: %v", event.ID, err)
			}
		}
		if err := s.notifyHousehold(ctx, event.UnitID, "access", message, nil); err != nil {
			log.Printf("❌ Access event %d notification failed: %v", event.ID, err)
		}
	}()
}

// NotifyHousehold sends an ad-hoc message to the active household of a
// unit, asynchronously.
func (s *NotificationService) NotifyHousehold(unitID uint, kind, message string, senderPersonID *uint) {
	if s == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
		defer cancel()
		if err := s.notifyHousehold(ctx, unitID, kind, message, senderPersonID); err != nil {
			log.Printf("❌ Notification to unit %d failed: %v", unitID, err)
		}
	}()
}

// notifyHousehold persists the notification with one target per household
// person, then attempts push delivery per target and records the result.
func (s *NotificationService) notifyHousehold(ctx context.Context, unitID uint, kind, message string, senderPersonID *uint) error {
	personIDs, err := householdPersonIDs(ctx, s.occupancyRepo, unitID)
	if err != nil {
		return err
	}
	if len(personIDs) == 0 {
		return nil
	}

	now := s.clock.Now()
	notification := &models.Notification{
		Kind:           kind,
		Message:        message,
		SenderPersonID: senderPersonID,
		Audit:          models.Audit{CreatedAt: now, CreatedBy: "system"},
	}
	for _, pid := range personIDs {
		notification.Targets = append(notification.Targets, models.NotificationTarget{
			RecipientPersonID: pid,
			Audit:             models.Audit{CreatedAt: now, CreatedBy: "system"},
		})
	}
	if err := s.auditRepo.CreateNotification(ctx, notification); err != nil {
		return err
	}

	if s.gateway == nil {
		return nil
	}

	accounts, err := s.accountRepo.ListByPersonIDs(ctx, personIDs)
	if err != nil {
		return err
	}
	byPerson := make(map[uint]*models.Account, len(accounts))
	for _, a := range accounts {
		if a.IsActive() {
			byPerson[a.PersonID] = a
		}
	}

	for i := range notification.Targets {
		target := &notification.Targets[i]
		account, ok := byPerson[target.RecipientPersonID]
		if !ok {
			continue
		}
		pushErr := s.gateway.Push(ctx, account.ExternalUID, kind, message)
		var errText *string
		if pushErr != nil {
			t := pushErr.Error()
			errText = &t
			log.Printf("❌ Push to account %d failed: %v", account.ID, pushErr)
		}
		if err := s.auditRepo.MarkNotificationDelivered(ctx, target.ID, s.clock.Now(), errText); err != nil {
			return fmt.Errorf("marking delivery of target %d: %w", target.ID, err)
		}
	}
	return nil
}

// ListForPerson returns the notifications addressed to a person, newest
// first.
func (s *NotificationService) ListForPerson(ctx context.Context, personID uint, offset, limit int) ([]*models.Notification, int64, error) {
	return s.auditRepo.ListNotificationsByPerson(ctx, personID, offset, limit)
}
