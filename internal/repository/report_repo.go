package repository

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/demesis221/PawRescue/internal/model"
)

// ErrStatusChanged signals that a guarded status update lost the race: the
// row's status no longer matches the state the caller read.
var ErrStatusChanged = errors.New("report status changed concurrently")

// ReportRepo is the CRUD facade over the reports table.
type ReportRepo struct {
	db *gorm.DB
}

func NewReportRepo(db *gorm.DB) *ReportRepo {
	return &ReportRepo{db: db}
}

// Create inserts a new report row. The id is assigned here, never by callers.
func (r *ReportRepo) Create(ctx context.Context, report *model.Report) error {
	report.ID = uuid.New()
	if report.Status == "" {
		report.Status = model.StatusReported
	}
	if report.ImageURLs == nil {
		report.ImageURLs = []string{}
	}
	return r.db.WithContext(ctx).Create(report).Error
}

// GetByID returns a report with its reporter profile, or nil when no row matches.
func (r *ReportRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Report, error) {
	var report model.Report
	err := r.db.WithContext(ctx).Preload("Reporter").First(&report, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &report, nil
}

// List returns reports matching the filter, newest first, each with its
// reporter profile. No pagination.
func (r *ReportRepo) List(ctx context.Context, f model.ReportFilter) ([]model.Report, error) {
	q := r.db.WithContext(ctx).Model(&model.Report{}).Preload("Reporter")
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Urgency != "" {
		q = q.Where("urgency = ?", f.Urgency)
	}
	if f.AnimalType != "" {
		q = q.Where("animal_type = ?", f.AnimalType)
	}

	reports := make([]model.Report, 0)
	if err := q.Order("created_at DESC").Find(&reports).Error; err != nil {
		return nil, err
	}
	return reports, nil
}

// Update merges the given column values into the stored record and returns the
// result, or nil when no row matches.
func (r *ReportRepo) Update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) (*model.Report, error) {
	updates["updated_at"] = time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&model.Report{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return r.GetByID(ctx, id)
}

// ApplyStatus moves a report from one status to another and records the audit
// entry, atomically. The update is guarded on the old status so interleaved
// transitions cannot silently overwrite each other.
func (r *ReportRepo) ApplyStatus(ctx context.Context, id uuid.UUID, from, to model.Status, actorID *uuid.UUID, comment string) (*model.Report, error) {
	var updated model.Report
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Report{}).
			Where("id = ? AND status = ?", id, from).
			Updates(map[string]interface{}{
				"status":     to,
				"updated_at": time.Now().UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStatusChanged
		}

		audit := model.StatusUpdate{
			ID:        uuid.New(),
			ReportID:  id,
			OldStatus: from,
			NewStatus: to,
			ActorID:   actorID,
			Comment:   comment,
		}
		if err := tx.Create(&audit).Error; err != nil {
			return err
		}

		return tx.First(&updated, "id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// SetImages replaces the report's image URL list and media-pending flag.
func (r *ReportRepo) SetImages(ctx context.Context, id uuid.UUID, urls []string, mediaPending bool) error {
	if urls == nil {
		urls = []string{}
	}
	return r.db.WithContext(ctx).Model(&model.Report{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"image_urls":    datatypes.NewJSONSlice(urls),
			"media_pending": mediaPending,
		}).Error
}

// Delete removes the row. Returns false when no row matched.
func (r *ReportRepo) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Delete(&model.Report{}, "id = ?", id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// StatusHistory returns the audit trail of a report, oldest first.
func (r *ReportRepo) StatusHistory(ctx context.Context, reportID uuid.UUID) ([]model.StatusUpdate, error) {
	updates := make([]model.StatusUpdate, 0)
	err := r.db.WithContext(ctx).
		Where("report_id = ?", reportID).
		Order("created_at ASC").
		Find(&updates).Error
	if err != nil {
		return nil, err
	}
	return updates, nil
}

// Stats computes the dashboard aggregates in a single pass per dimension.
func (r *ReportRepo) Stats(ctx context.Context) (*model.DashboardStats, error) {
	stats := &model.DashboardStats{
		ByStatus:  make(map[model.Status]int64),
		ByUrgency: make(map[model.Urgency]int64),
	}

	if err := r.db.WithContext(ctx).Model(&model.Report{}).Count(&stats.TotalReports).Error; err != nil {
		return nil, err
	}

	var byStatus []struct {
		Status model.Status
		Count  int64
	}
	if err := r.db.WithContext(ctx).Model(&model.Report{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&byStatus).Error; err != nil {
		return nil, err
	}
	for _, row := range byStatus {
		stats.ByStatus[row.Status] = row.Count
	}

	var byUrgency []struct {
		Urgency model.Urgency
		Count   int64
	}
	if err := r.db.WithContext(ctx).Model(&model.Report{}).
		Select("urgency, COUNT(*) AS count").
		Group("urgency").
		Scan(&byUrgency).Error; err != nil {
		return nil, err
	}
	for _, row := range byUrgency {
		stats.ByUrgency[row.Urgency] = row.Count
	}

	if stats.TotalReports > 0 {
		resolved := stats.ByStatus[model.StatusRescued] + stats.ByStatus[model.StatusAdopted]
		stats.SuccessRate = math.Round(float64(resolved) / float64(stats.TotalReports) * 100)
	}

	return stats, nil
}
