package payment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/thoriqulumar/kostan-be/internal/billing"
	"github.com/thoriqulumar/kostan-be/internal/database"
	"github.com/thoriqulumar/kostan-be/internal/notification"
	"github.com/thoriqulumar/kostan-be/internal/room"
	"github.com/thoriqulumar/kostan-be/internal/storage"
)

// ReceiptPrefix is the blob key prefix of receipt images
const ReceiptPrefix = "payment-receipts"

// Common errors
var (
	ErrReceiptNotFound       = errors.New("payment receipt not found")
	ErrNoReceiptsForRoom     = errors.New("no payment receipts found for this room")
	ErrReceiptFileMissing    = errors.New("receipt file not found")
	ErrNoRoomRented          = errors.New("you are not currently renting any room")
	ErrRoomNotFound          = errors.New("room not found")
	ErrAlreadyApproved       = errors.New("payment has already been approved")
	ErrAlreadyRejected       = errors.New("payment has already been rejected")
	ErrPeriodAlreadyApproved = errors.New("payment for this month has already been approved")
	ErrInvalidStatusChange   = errors.New("invalid status change")
	ErrAmountMismatch        = errors.New("payment amount does not match room rent")
	ErrReasonRequired        = errors.New("rejection reason is required")
	ErrNotOwner              = errors.New("you can only access your own payment receipts")
	ErrCannotDeleteApproved  = errors.New("cannot delete approved payment receipts, please contact an admin")
)

// Viewer is the user a query runs for
type Viewer struct {
	UserID  uuid.UUID
	IsAdmin bool
}

func (v Viewer) owns(rc *Receipt) bool {
	return v.IsAdmin || rc.UserID == v.UserID
}

// Service handles the receipt review workflow
type Service struct {
	db       *sqlx.DB
	repo     *Repository
	incomes  *IncomeRepository
	rooms    *room.Repository
	notifier *notification.Service
	blobs    *storage.BlobStore
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a new payment service
func NewService(db *sqlx.DB, notifier *notification.Service, blobs *storage.BlobStore, logger *slog.Logger) *Service {
	return &Service{
		db:       db,
		repo:     NewRepository(db),
		incomes:  NewIncomeRepository(db),
		rooms:    room.NewRepository(db),
		notifier: notifier,
		blobs:    blobs,
		logger:   logger.With("component", "payment"),
		now:      time.Now,
	}
}

// Upload stores a receipt image and records a pending receipt for the room
// the tenant currently rents
func (s *Service) Upload(ctx context.Context, tenantID uuid.UUID, req *UploadReceiptRequest, filename string, file io.Reader) (*Receipt, error) {
	rm, err := s.rooms.GetByTenantID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if rm == nil {
		return nil, ErrNoRoomRented
	}

	period, err := billing.NewPeriod(req.PaymentMonth, req.PaymentYear)
	if err != nil {
		return nil, err
	}
	if err := billing.ValidateAmount(req.Amount); err != nil {
		return nil, err
	}

	paid, err := s.repo.HasApproved(ctx, tenantID, rm.ID, period)
	if err != nil {
		return nil, err
	}
	if paid {
		return nil, ErrPeriodAlreadyApproved
	}

	key, err := s.blobs.SaveImage(ReceiptPrefix, filename, file)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	rc := &Receipt{
		ID:              uuid.New(),
		UserID:          tenantID,
		RoomID:          rm.ID,
		PaymentMonth:    int(period.Month),
		PaymentYear:     period.Year,
		Amount:          req.Amount,
		ReceiptFilePath: key,
		Status:          StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if desc := billing.CleanText(req.Description); desc != "" {
		rc.Description = &desc
	}

	if err := s.repo.Create(ctx, rc); err != nil {
		if delErr := s.blobs.Delete(key); delErr != nil {
			s.logger.Warn("failed to remove orphaned receipt image", "key", key, "error", delErr)
		}
		return nil, err
	}

	s.logger.Info("payment receipt uploaded",
		"receipt_id", rc.ID, "user_id", tenantID, "room_id", rm.ID, "period", period.String())
	return rc, nil
}

// Approve accepts a pending receipt. The status change, the income entry and
// the tenant notification are written in one transaction; the notification
// is pushed after commit.
func (s *Service) Approve(ctx context.Context, receiptID, adminID uuid.UUID) (*Receipt, error) {
	var (
		approved *Receipt
		staged   *notification.Notification
	)

	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		repo := s.repo.WithTx(tx)

		rc, err := repo.GetByID(ctx, receiptID)
		if err != nil {
			return err
		}
		if rc == nil {
			return ErrReceiptNotFound
		}
		switch rc.Status {
		case StatusApproved:
			return ErrAlreadyApproved
		case StatusRejected:
			return ErrInvalidStatusChange
		}

		rm, err := s.rooms.WithTx(tx).GetByID(ctx, rc.RoomID)
		if err != nil {
			return err
		}
		if rm == nil {
			return ErrRoomNotFound
		}
		if !rc.Amount.Equal(rm.Price) {
			return fmt.Errorf("%w: paid %s, rent is %s",
				ErrAmountMismatch, rc.Amount.String(), rm.Price.String())
		}

		period := rc.Period()
		paid, err := repo.HasApproved(ctx, rc.UserID, rc.RoomID, period)
		if err != nil {
			return err
		}
		if paid {
			return ErrPeriodAlreadyApproved
		}

		now := s.now().UTC()
		ok, err := repo.Approve(ctx, rc.ID, adminID, now)
		if err != nil {
			if database.IsUniqueViolation(err) {
				return ErrPeriodAlreadyApproved
			}
			return err
		}
		if !ok {
			return ErrInvalidStatusChange
		}

		income := &Income{
			ID:                 uuid.New(),
			PaymentReceiptID:   rc.ID,
			RoomID:             rc.RoomID,
			UserID:             rc.UserID,
			Amount:             rc.Amount,
			PaymentMonth:       rc.PaymentMonth,
			PaymentYear:        rc.PaymentYear,
			Description:        fmt.Sprintf("Payment %s - %s", period, rm.Name),
			ConfirmedByAdminID: adminID,
			CreatedAt:          now,
		}
		if err := s.incomes.WithTx(tx).Create(ctx, income); err != nil {
			if database.IsUniqueViolation(err) {
				return ErrAlreadyApproved
			}
			return err
		}

		staged, err = s.notifier.Stage(ctx, tx, rc.UserID, notification.PaymentApproved{
			Room:        rm.Name,
			Period:      period,
			Amount:      rc.Amount,
			Description: income.Description,
		})
		if err != nil {
			return err
		}

		rc.Status = StatusApproved
		rc.ConfirmedByAdminID = &adminID
		rc.ConfirmedAt = &now
		rc.UpdatedAt = now
		approved = rc
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment approved",
		"receipt_id", approved.ID, "user_id", approved.UserID, "admin_id", adminID,
		"period", approved.Period().String(), "amount", approved.Amount.String())
	s.notifier.Publish(ctx, staged)
	return approved, nil
}

// Reject refuses a pending receipt with a reason. The tenant is notified
// after commit.
func (s *Service) Reject(ctx context.Context, receiptID, adminID uuid.UUID, reason string) (*Receipt, error) {
	reason = billing.CleanText(reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}

	var (
		rejected *Receipt
		staged   *notification.Notification
	)

	err := database.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		repo := s.repo.WithTx(tx)

		rc, err := repo.GetByID(ctx, receiptID)
		if err != nil {
			return err
		}
		if rc == nil {
			return ErrReceiptNotFound
		}
		switch rc.Status {
		case StatusApproved:
			return ErrAlreadyApproved
		case StatusRejected:
			return ErrAlreadyRejected
		}

		roomName := ""
		rm, err := s.rooms.WithTx(tx).GetByID(ctx, rc.RoomID)
		if err != nil {
			return err
		}
		if rm != nil {
			roomName = rm.Name
		}

		now := s.now().UTC()
		ok, err := repo.Reject(ctx, rc.ID, adminID, reason, now)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidStatusChange
		}

		staged, err = s.notifier.Stage(ctx, tx, rc.UserID, notification.PaymentRejected{
			Room:   roomName,
			Period: rc.Period(),
			Reason: reason,
		})
		if err != nil {
			return err
		}

		rc.Status = StatusRejected
		rc.RejectionReason = &reason
		rc.ConfirmedByAdminID = &adminID
		rc.ConfirmedAt = &now
		rc.UpdatedAt = now
		rejected = rc
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment rejected",
		"receipt_id", rejected.ID, "user_id", rejected.UserID, "admin_id", adminID,
		"period", rejected.Period().String())
	s.notifier.Publish(ctx, staged)
	return rejected, nil
}

// Delete removes a receipt the viewer owns, or any receipt for an admin.
// Approved receipts are never deleted. The image is removed best effort.
func (s *Service) Delete(ctx context.Context, receiptID uuid.UUID, viewer Viewer) error {
	rc, err := s.repo.GetByID(ctx, receiptID)
	if err != nil {
		return err
	}
	if rc == nil {
		return ErrReceiptNotFound
	}
	if !viewer.owns(rc) {
		return ErrNotOwner
	}
	if rc.Status == StatusApproved {
		return ErrCannotDeleteApproved
	}

	ok, err := s.repo.Delete(ctx, rc.ID)
	if err != nil {
		return err
	}
	if !ok {
		// Approved or deleted between the read and the delete.
		return ErrCannotDeleteApproved
	}

	if err := s.blobs.Delete(rc.ReceiptFilePath); err != nil {
		s.logger.Error("failed to delete receipt image", "receipt_id", rc.ID, "key", rc.ReceiptFilePath, "error", err)
	}
	s.logger.Info("payment receipt deleted", "receipt_id", rc.ID, "by", viewer.UserID)
	return nil
}

// GetByID retrieves a receipt by its ID
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Receipt, error) {
	rc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rc == nil {
		return nil, ErrReceiptNotFound
	}
	return rc, nil
}

// HasApproved reports whether a period is already settled for the tenancy
func (s *Service) HasApproved(ctx context.Context, tenantID, roomID uuid.UUID, period billing.Period) (bool, error) {
	return s.repo.HasApproved(ctx, tenantID, roomID, period)
}

// ListMine retrieves a tenant's payment history
func (s *Service) ListMine(ctx context.Context, userID uuid.UUID) ([]*Receipt, error) {
	return s.repo.ListByUserID(ctx, userID)
}

// ListPending retrieves receipts awaiting review
func (s *Service) ListPending(ctx context.Context) ([]*Receipt, error) {
	return s.repo.ListByStatus(ctx, StatusPending)
}

// ListAll retrieves every receipt
func (s *Service) ListAll(ctx context.Context) ([]*Receipt, error) {
	return s.repo.ListAll(ctx)
}

// ListByRoom retrieves the receipts of a room visible to the viewer: all of
// them for admins, the viewer's own otherwise
func (s *Service) ListByRoom(ctx context.Context, roomID uuid.UUID, viewer Viewer) ([]*Receipt, error) {
	var only *uuid.UUID
	if !viewer.IsAdmin {
		only = &viewer.UserID
	}

	receipts, err := s.repo.ListByRoomID(ctx, roomID, only)
	if err != nil {
		return nil, err
	}
	if len(receipts) == 0 {
		return nil, ErrNoReceiptsForRoom
	}
	return receipts, nil
}

// LatestByRoom retrieves the newest receipt of a room visible to the viewer
func (s *Service) LatestByRoom(ctx context.Context, roomID uuid.UUID, viewer Viewer) (*Receipt, error) {
	receipts, err := s.ListByRoom(ctx, roomID, viewer)
	if err != nil {
		return nil, err
	}
	return receipts[0], nil
}

// ReceiptForViewer retrieves a receipt the viewer may see
func (s *Service) ReceiptForViewer(ctx context.Context, id uuid.UUID, viewer Viewer) (*Receipt, error) {
	rc, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !viewer.owns(rc) {
		return nil, ErrNotOwner
	}
	return rc, nil
}

// OpenImage opens the stored image of a receipt
func (s *Service) OpenImage(rc *Receipt) (io.ReadSeekCloser, error) {
	f, err := s.blobs.Open(rc.ReceiptFilePath)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidKey) {
			return nil, ErrReceiptFileMissing
		}
		return nil, err
	}
	return f, nil
}

// IncomeReport lists the ledger for a year, or every year when year is zero
func (s *Service) IncomeReport(ctx context.Context, year int) ([]*Income, error) {
	return s.incomes.List(ctx, year)
}

// IncomeSummary totals the ledger for a year, or every year when year is zero
func (s *Service) IncomeSummary(ctx context.Context, year int) (*IncomeSummary, error) {
	return s.incomes.Summary(ctx, year)
}
