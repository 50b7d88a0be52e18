package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pestid/internal/dto"
	"pestid/internal/metrics"
	"pestid/internal/models"
	"pestid/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Reviewer 审核人，取自登录令牌
type Reviewer struct {
	ID   uint
	Name string
}

// VerificationOutcome 一次状态变更的结果
type VerificationOutcome struct {
	Verification   *models.Verification        `json:"verification"`
	History        *models.VerificationHistory `json:"history"`
	PreviousStatus string                      `json:"previousStatus"`
	Status         string                      `json:"status"`
}

// CheckTransition 校验状态变更：
// pending 可直接变为 verified/rejected；
// verified/rejected 之间的修改需要原因；
// not pest 不可变更
func CheckTransition(from, to, reason string) error {
	if to != models.StatusVerified && to != models.StatusRejected {
		return fmt.Errorf("%w: 目标状态 %q", ErrInvalidTransition, to)
	}

	switch from {
	case models.StatusPending:
		return nil
	case models.StatusVerified, models.StatusRejected:
		if strings.TrimSpace(reason) == "" {
			return ErrReasonRequired
		}
		return nil
	default:
		return fmt.Errorf("%w: %q -> %q", ErrInvalidTransition, from, to)
	}
}

// VerificationService 人工审核
type VerificationService struct {
	db               *gorm.DB
	verificationRepo *repository.VerificationRepository
	detectionRepo    *repository.DetectionRepository
	metrics          *metrics.Metrics
	logger           *logrus.Logger
	now              func() time.Time
}

// NewVerificationService 创建审核服务
func NewVerificationService(db *gorm.DB, m *metrics.Metrics, logger *logrus.Logger) *VerificationService {
	return &VerificationService{
		db:               db,
		verificationRepo: repository.NewVerificationRepository(db),
		detectionRepo:    repository.NewDetectionRepository(db),
		metrics:          m,
		logger:           logger,
		now:              time.Now,
	}
}

// Submit 提交审核结论
func (s *VerificationService) Submit(ctx context.Context, req *dto.VerificationRequest, reviewer Reviewer) (*VerificationOutcome, error) {
	return s.apply(ctx, req.DetectionID, &req.VerificationFields, reviewer)
}

// Update 修改审核结论
func (s *VerificationService) Update(ctx context.Context, id string, req *dto.VerificationUpdateRequest, reviewer Reviewer) (*VerificationOutcome, error) {
	if strings.TrimSpace(req.Reason) == "" {
		return nil, ErrReasonRequired
	}

	existing, err := s.verificationRepo.GetByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrVerificationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询审核记录失败: %w", err)
	}

	return s.apply(ctx, existing.DetectionID, &req.VerificationFields, reviewer)
}

// apply 在一个事务中读取检测、写审核结论、追加日志、更新检测状态，任何一步失败全部回滚
func (s *VerificationService) apply(ctx context.Context, detectionID string, fields *dto.VerificationFields, reviewer Reviewer) (*VerificationOutcome, error) {
	var outcome *VerificationOutcome

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		detections := repository.NewDetectionRepository(tx)
		verifications := repository.NewVerificationRepository(tx)

		detection, err := detections.GetByID(detectionID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrDetectionNotFound
		}
		if err != nil {
			return err
		}

		previous := detection.CurVeriStatus
		if err := CheckTransition(previous, fields.Status, fields.Reason); err != nil {
			return err
		}

		verification, err := verifications.FindByDetectionID(detectionID)
		if err != nil {
			return err
		}
		if verification == nil {
			verification = &models.Verification{ID: uuid.NewString(), DetectionID: detectionID}
		}
		verification.Status = fields.Status
		verification.Category = fields.Category
		verification.Confidence = *fields.Confidence
		verification.NeedsExpertReview = *fields.NeedsExpertReview
		verification.CanReuseForAI = *fields.CanReuseForAI
		verification.CorrectedSpecies = fields.CorrectedSpecies
		verification.Notes = fields.Notes
		verification.ReviewerID = reviewer.ID
		verification.ReviewerName = reviewer.Name
		if err := verifications.Save(verification); err != nil {
			return err
		}

		history := &models.VerificationHistory{
			ID:             uuid.NewString(),
			DetectionID:    detectionID,
			VerificationID: verification.ID,
			PreviousStatus: previous,
			NewStatus:      fields.Status,
			ChangedByID:    reviewer.ID,
			ChangedBy:      reviewer.Name,
			ChangedAt:      s.now().UTC(),
			Reason:         fields.Reason,
		}
		if err := verifications.AppendHistory(history); err != nil {
			return err
		}

		if err := detections.UpdateStatus(detectionID, fields.Status); err != nil {
			return err
		}

		outcome = &VerificationOutcome{
			Verification:   verification,
			History:        history,
			PreviousStatus: previous,
			Status:         fields.Status,
		}
		return nil
	})
	if err != nil {
		if isVerificationError(err) {
			return nil, err
		}
		s.logger.WithFields(logrus.Fields{
			"detection_id": detectionID,
			"reviewer_id":  reviewer.ID,
			"error":        err.Error(),
		}).Error("审核事务失败")
		return nil, fmt.Errorf("保存审核结论失败: %w", err)
	}

	s.metrics.RecordTransition(outcome.PreviousStatus, outcome.Status)
	s.logger.WithFields(logrus.Fields{
		"detection_id": detectionID,
		"from":         outcome.PreviousStatus,
		"to":           outcome.Status,
		"reviewer_id":  reviewer.ID,
	}).Info("审核状态变更")
	return outcome, nil
}

func isVerificationError(err error) bool {
	return errors.Is(err, ErrDetectionNotFound) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrReasonRequired)
}

// Get 检测当前的审核结论
func (s *VerificationService) Get(detectionID string) (*models.Verification, error) {
	v, err := s.verificationRepo.FindByDetectionID(detectionID)
	if err != nil {
		return nil, fmt.Errorf("查询审核记录失败: %w", err)
	}
	if v == nil {
		return nil, ErrVerificationNotFound
	}
	return v, nil
}

// History 审核日志分页
func (s *VerificationService) History(detectionID string, query *dto.CursorQuery) (repository.Page[models.VerificationHistory], error) {
	cursor, err := repository.DecodeCursor(query.Cursor)
	if err != nil {
		return repository.Page[models.VerificationHistory]{}, err
	}
	page, err := s.verificationRepo.ListHistory(detectionID, cursor, query.Limit)
	if err != nil {
		return page, fmt.Errorf("查询审核日志失败: %w", err)
	}
	return page, nil
}

// CheckConsistency 检测状态是否等于最近一条日志的新状态；
// 没有日志时状态应为初始值
func (s *VerificationService) CheckConsistency(detectionID string) (*dto.ConsistencyResponse, error) {
	detection, err := s.detectionRepo.GetByID(detectionID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDetectionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询检测失败: %w", err)
	}

	latest, err := s.verificationRepo.LatestHistory(detectionID)
	if err != nil {
		return nil, fmt.Errorf("查询审核日志失败: %w", err)
	}
	count, err := s.verificationRepo.CountHistory(detectionID)
	if err != nil {
		return nil, fmt.Errorf("查询审核日志失败: %w", err)
	}

	resp := &dto.ConsistencyResponse{
		DetectionID:   detectionID,
		CurrentStatus: detection.CurVeriStatus,
		HistoryCount:  count,
	}
	if latest == nil {
		resp.Consistent = detection.CurVeriStatus == models.StatusPending || detection.CurVeriStatus == models.StatusNotPest
		return resp, nil
	}
	resp.LatestStatus = latest.NewStatus
	resp.Consistent = latest.NewStatus == detection.CurVeriStatus
	return resp, nil
}
