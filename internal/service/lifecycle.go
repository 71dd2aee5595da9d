package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/demesis221/PawRescue/internal/model"
	"github.com/demesis221/PawRescue/internal/repository"
)

// LifecycleService applies status transitions to reports. Transitions are
// forward-only (reported -> in_progress -> rescued -> adopted); re-applying
// the current status is accepted and refreshes updated_at.
type LifecycleService struct {
	reports *repository.ReportRepo
	events  *Events
}

func NewLifecycleService(reports *repository.ReportRepo, events *Events) *LifecycleService {
	return &LifecycleService{reports: reports, events: events}
}

// UpdateStatus validates and applies a transition, recording an audit entry
// with the acting user and optional comment.
func (s *LifecycleService) UpdateStatus(ctx context.Context, reportID, newStatus string, actorID *uuid.UUID, comment string) (*model.Report, error) {
	rid, err := parseReportID(reportID)
	if err != nil {
		return nil, err
	}

	status, ok := model.ParseStatus(newStatus)
	if !ok {
		return nil, ErrInvalidStatus
	}

	cctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	// One re-read when a concurrent transition wins the guarded update
	for attempt := 0; attempt < 2; attempt++ {
		report, err := s.reports.GetByID(cctx, rid)
		if err != nil {
			return nil, &UpstreamError{Op: "select", Err: err}
		}
		if report == nil {
			return nil, ErrReportNotFound
		}

		if !model.CanTransition(report.Status, status) {
			return nil, ErrInvalidTransition
		}

		updated, err := s.reports.ApplyStatus(cctx, rid, report.Status, status, actorID, comment)
		if errors.Is(err, repository.ErrStatusChanged) {
			continue
		}
		if err != nil {
			return nil, &UpstreamError{Op: "update", Err: err}
		}

		s.events.Publish(ctx, ReportEvent{Action: "UPDATE", ReportID: rid.String(), Status: updated.Status})
		return updated, nil
	}

	return nil, ErrInvalidTransition
}

// History returns a report's audit trail, oldest first.
func (s *LifecycleService) History(ctx context.Context, reportID string) ([]model.StatusUpdate, error) {
	rid, err := parseReportID(reportID)
	if err != nil {
		return nil, err
	}

	cctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	report, err := s.reports.GetByID(cctx, rid)
	if err != nil {
		return nil, &UpstreamError{Op: "select", Err: err}
	}
	if report == nil {
		return nil, ErrReportNotFound
	}

	history, err := s.reports.StatusHistory(cctx, rid)
	if err != nil {
		return nil, &UpstreamError{Op: "select", Err: err}
	}
	return history, nil
}
