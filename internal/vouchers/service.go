package vouchers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/vouchers-backend/pkg/artifact"
	pkgdb "github.com/angelmondragon/vouchers-backend/pkg/db"
	"github.com/angelmondragon/vouchers-backend/pkg/db/models"
	"github.com/angelmondragon/vouchers-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/vouchers-backend/pkg/errors"
	"github.com/angelmondragon/vouchers-backend/pkg/logger"
	"github.com/angelmondragon/vouchers-backend/pkg/metrics"
)

type vouchersRepository interface {
	Create(ctx context.Context, voucher *models.Voucher) (*models.Voucher, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Voucher, error)
	ListAll(ctx context.Context) ([]models.Voucher, error)
	MarkUsedIfUnused(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
}

type artifactRenderer interface {
	RenderAs(ctx context.Context, voucher *models.Voucher, format enums.ArtifactFormat) (*artifact.Artifact, error)
	Format() enums.ArtifactFormat
}

// ArtifactSender dispatches a rendered voucher after issuance.
type ArtifactSender interface {
	SendVoucher(ctx context.Context, voucher *models.Voucher, art *artifact.Artifact) error
}

// Service exposes the voucher lifecycle: issue, claim, list, fetch, render.
type Service interface {
	CreateVoucher(ctx context.Context, input CreateVoucherInput) (*models.Voucher, *artifact.Artifact, error)
	ClaimVoucher(ctx context.Context, voucherID uuid.UUID) (*models.Voucher, error)
	ListVouchers(ctx context.Context) ([]models.Voucher, error)
	GetVoucher(ctx context.Context, voucherID uuid.UUID) (*models.Voucher, error)
	RenderArtifact(ctx context.Context, voucherID uuid.UUID, format enums.ArtifactFormat) (*artifact.Artifact, error)
}

// CreateVoucherInput holds the attributes of a voucher to issue.
type CreateVoucherInput struct {
	FirstName  string
	LastName   string
	Percentage string
	ExpiryDate *time.Time
}

type service struct {
	repo           vouchersRepository
	renderer       artifactRenderer
	sender         ArtifactSender
	metrics        *metrics.VoucherMetrics
	logg           *logger.Logger
	conflictStatus int
	now            func() time.Time
}

// NewService builds a voucher service. sender may be nil, in which case no
// email dispatch happens after issuance.
func NewService(
	repo vouchersRepository,
	renderer artifactRenderer,
	sender ArtifactSender,
	voucherMetrics *metrics.VoucherMetrics,
	logg *logger.Logger,
	conflictStatus int,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("voucher repository required")
	}
	if renderer == nil {
		return nil, fmt.Errorf("artifact renderer required")
	}
	if conflictStatus == 0 {
		conflictStatus = 409
	}
	return &service{
		repo:           repo,
		renderer:       renderer,
		sender:         sender,
		metrics:        voucherMetrics,
		logg:           logg,
		conflictStatus: conflictStatus,
		now:            time.Now,
	}, nil
}

// CreateVoucher persists a new unused voucher, then renders its artifact from
// the stored record. Persist happens first: a voucher that rendered but never
// stored would scan as invalid, while a stored voucher can always be
// re-rendered later.
func (s *service) CreateVoucher(ctx context.Context, input CreateVoucherInput) (*models.Voucher, *artifact.Artifact, error) {
	if err := validateCreateInput(input); err != nil {
		return nil, nil, err
	}

	voucher := &models.Voucher{
		VoucherID:  uuid.New(),
		FirstName:  strings.TrimSpace(input.FirstName),
		LastName:   strings.TrimSpace(input.LastName),
		Percentage: strings.TrimSpace(input.Percentage),
		ExpiryDate: input.ExpiryDate,
		Status:     enums.VoucherStatusUnused,
	}

	created, err := s.repo.Create(ctx, voucher)
	if err != nil {
		if pkgdb.IsUniqueViolation(err, "") {
			// Colliding ids are practically impossible; one retry covers it.
			voucher.VoucherID = uuid.New()
			created, err = s.repo.Create(ctx, voucher)
		}
		if err != nil {
			return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create voucher")
		}
	}

	art, err := s.render(ctx, created, s.renderer.Format())
	if err != nil {
		return nil, nil, err
	}

	s.metrics.IncIssued()

	if s.sender != nil {
		if sendErr := s.sender.SendVoucher(ctx, created, art); sendErr != nil && s.logg != nil {
			logCtx := s.logg.WithVoucherID(ctx, created.VoucherID.String())
			logCtx = s.logg.WithField(logCtx, "send_error", sendErr.Error())
			s.logg.Warn(logCtx, "voucher email dispatch failed")
		}
	}

	return created, art, nil
}

// ClaimVoucher marks the voucher used. The conditional store update decides
// races: of two simultaneous claims one wins and the other reports the
// voucher as already used.
func (s *service) ClaimVoucher(ctx context.Context, voucherID uuid.UUID) (*models.Voucher, error) {
	voucher, err := s.findVoucher(ctx, voucherID)
	if err != nil {
		s.metrics.IncClaimRejected("not_found")
		return nil, err
	}

	now := s.now()
	if err := voucher.MarkUsed(now); err != nil {
		return nil, s.claimRejection(err)
	}

	updated, err := s.repo.MarkUsedIfUnused(ctx, voucherID, now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update voucher status")
	}
	if !updated {
		// Lost the race to a concurrent claim.
		return nil, s.claimRejection(models.ErrVoucherAlreadyUsed)
	}

	s.metrics.IncClaimed()
	voucher.UpdatedAt = now
	return voucher, nil
}

// ListVouchers returns every voucher, newest first.
func (s *service) ListVouchers(ctx context.Context) ([]models.Voucher, error) {
	rows, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list vouchers")
	}
	return rows, nil
}

// GetVoucher returns a single voucher by id.
func (s *service) GetVoucher(ctx context.Context, voucherID uuid.UUID) (*models.Voucher, error) {
	return s.findVoucher(ctx, voucherID)
}

// RenderArtifact re-renders the stored voucher in the requested format. Any
// voucher can be rendered at any time, claimed or not.
func (s *service) RenderArtifact(ctx context.Context, voucherID uuid.UUID, format enums.ArtifactFormat) (*artifact.Artifact, error) {
	voucher, err := s.findVoucher(ctx, voucherID)
	if err != nil {
		return nil, err
	}
	if format == "" {
		format = s.renderer.Format()
	}
	return s.render(ctx, voucher, format)
}

func (s *service) render(ctx context.Context, voucher *models.Voucher, format enums.ArtifactFormat) (*artifact.Artifact, error) {
	start := s.now()
	art, err := s.renderer.RenderAs(ctx, voucher, format)
	if err != nil {
		if errors.Is(err, artifact.ErrTemplateUnavailable) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "voucher template not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "render voucher artifact")
	}
	s.metrics.ObserveRenderDuration(format.String(), time.Since(start))
	return art, nil
}

func (s *service) findVoucher(ctx context.Context, voucherID uuid.UUID) (*models.Voucher, error) {
	if voucherID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "voucher id is required")
	}
	voucher, err := s.repo.FindByID(ctx, voucherID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "voucher not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup voucher")
	}
	return voucher, nil
}

// claimRejection maps transition failures to conflict responses. The status
// is configurable because older clients expect 400 where 409 is the truthful
// answer.
func (s *service) claimRejection(err error) error {
	switch {
	case errors.Is(err, models.ErrVoucherExpired):
		s.metrics.IncClaimRejected("expired")
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "voucher has expired").
			WithHTTPStatus(s.conflictStatus)
	case errors.Is(err, models.ErrVoucherAlreadyUsed):
		s.metrics.IncClaimRejected("already_used")
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "voucher has already been used").
			WithHTTPStatus(s.conflictStatus)
	default:
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "claim voucher")
	}
}

func validateCreateInput(input CreateVoucherInput) error {
	if strings.TrimSpace(input.FirstName) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "first_name is required")
	}
	if strings.TrimSpace(input.LastName) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "last_name is required")
	}
	percentage := strings.TrimSpace(input.Percentage)
	if percentage == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "percentage is required")
	}
	value, err := strconv.Atoi(percentage)
	if err != nil || value < 1 || value > 100 {
		return pkgerrors.New(pkgerrors.CodeValidation, "percentage must be a whole number between 1 and 100")
	}
	return nil
}
