package service

import (
	"context"
	"mime/multipart"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/demesis221/PawRescue/internal/model"
	"github.com/demesis221/PawRescue/internal/repository"
)

// opTimeout bounds every call against the backing store. The upstream
// enforces no timeout of its own.
const opTimeout = 8 * time.Second

// readRetries is how many times idempotent reads and the image attach step
// are retried before the failure is surfaced.
const readRetries = 2

const retryBackoff = 200 * time.Millisecond

// NewReportInput carries the raw report form fields before validation.
type NewReportInput struct {
	AnimalType   string
	Breed        string
	Urgency      string
	Description  string
	Location     string
	ContactPhone string
	Coordinates  string // "[lat,lng]"
	UserID       string // optional; empty for anonymous reports
}

// ReportService implements the report CRUD intents plus the image pipeline.
type ReportService struct {
	reports   *repository.ReportRepo
	storage   Storage
	events    *Events
	maxUpload int64
	timeout   time.Duration
}

func NewReportService(reports *repository.ReportRepo, storage Storage, events *Events, maxUpload int64) *ReportService {
	return &ReportService{
		reports:   reports,
		storage:   storage,
		events:    events,
		maxUpload: maxUpload,
		timeout:   opTimeout,
	}
}

// Create validates and inserts a new report, then attaches the image if one
// was sent. A failed attach does not roll the row back: the report is marked
// media-pending and a PartialFailureError carrying the new id is returned
// alongside it so the client can retry the attach step.
func (s *ReportService) Create(ctx context.Context, in NewReportInput, image *multipart.FileHeader) (*model.Report, error) {
	create, err := s.validate(in)
	if err != nil {
		return nil, err
	}

	// Reject a bad file before any row insert or storage I/O
	if image != nil {
		if err := ValidateImage(image, s.maxUpload); err != nil {
			return nil, err
		}
	}

	report := &model.Report{
		AnimalType:   create.AnimalType,
		Breed:        create.Breed,
		Description:  create.Description,
		LocationName: create.LocationName,
		Latitude:     create.Latitude,
		Longitude:    create.Longitude,
		Urgency:      create.Urgency,
		ContactPhone: create.ContactPhone,
		Status:       model.StatusReported,
		UserID:       create.UserID,
	}

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.reports.Create(cctx, report); err != nil {
		return nil, &UpstreamError{Op: "insert", Err: err}
	}

	if image != nil {
		url, err := s.storeImage(ctx, report.ID, image)

		// The upload may have eaten the insert deadline; the URL write
		// gets its own.
		uctx, ucancel := context.WithTimeout(ctx, s.timeout)
		defer ucancel()

		if err != nil {
			zap.L().Error("Image attach failed after report insert",
				zap.String("report_id", report.ID.String()),
				zap.Error(err))
			report.MediaPending = true
			if mErr := s.reports.SetImages(uctx, report.ID, nil, true); mErr != nil {
				zap.L().Error("Failed to flag report media-pending", zap.Error(mErr))
			}
			s.events.Publish(ctx, ReportEvent{Action: "INSERT", ReportID: report.ID.String(), Status: report.Status})
			return report, &PartialFailureError{ReportID: report.ID.String(), Err: err}
		}
		report.ImageURLs = []string{url}
		if err := s.reports.SetImages(uctx, report.ID, []string{url}, false); err != nil {
			return nil, &UpstreamError{Op: "update", Err: err}
		}
	}

	s.events.Publish(ctx, ReportEvent{Action: "INSERT", ReportID: report.ID.String(), Status: report.Status})
	return report, nil
}

// List returns reports newest first, narrowed by the filter.
func (s *ReportService) List(ctx context.Context, f model.ReportFilter) ([]model.Report, error) {
	var reports []model.Report
	err := s.withRetry(ctx, func(c context.Context) error {
		var err error
		reports, err = s.reports.List(c, f)
		return err
	})
	if err != nil {
		return nil, &UpstreamError{Op: "select", Err: err}
	}
	return reports, nil
}

// Get returns one report with its reporter profile.
func (s *ReportService) Get(ctx context.Context, id string) (*model.Report, error) {
	rid, err := parseReportID(id)
	if err != nil {
		return nil, err
	}

	var report *model.Report
	rErr := s.withRetry(ctx, func(c context.Context) error {
		var err error
		report, err = s.reports.GetByID(c, rid)
		return err
	})
	if rErr != nil {
		return nil, &UpstreamError{Op: "select", Err: rErr}
	}
	if report == nil {
		return nil, ErrReportNotFound
	}
	return report, nil
}

// Update merges the provided fields into the stored record.
func (s *ReportService) Update(ctx context.Context, id string, in model.UpdateReport) (*model.Report, error) {
	rid, err := parseReportID(id)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if in.AnimalType != nil {
		at, ok := model.ParseAnimalType(*in.AnimalType)
		if !ok {
			return nil, &model.ValidationError{Field: "animal_type", Msg: "unknown animal type"}
		}
		updates["animal_type"] = at
	}
	if in.Urgency != nil {
		u, ok := model.ParseUrgency(*in.Urgency)
		if !ok {
			return nil, &model.ValidationError{Field: "urgency", Msg: "unknown urgency"}
		}
		updates["urgency"] = u
	}
	if in.Breed != nil {
		updates["breed"] = *in.Breed
	}
	if in.Description != nil {
		if strings.TrimSpace(*in.Description) == "" {
			return nil, &model.ValidationError{Field: "description", Msg: "must not be empty"}
		}
		updates["description"] = *in.Description
	}
	if in.LocationName != nil {
		if strings.TrimSpace(*in.LocationName) == "" {
			return nil, &model.ValidationError{Field: "location_name", Msg: "must not be empty"}
		}
		updates["location_name"] = *in.LocationName
	}
	if in.Latitude != nil {
		if *in.Latitude < -90 || *in.Latitude > 90 {
			return nil, &model.ValidationError{Field: "latitude", Msg: "out of range"}
		}
		updates["latitude"] = *in.Latitude
	}
	if in.Longitude != nil {
		if *in.Longitude < -180 || *in.Longitude > 180 {
			return nil, &model.ValidationError{Field: "longitude", Msg: "out of range"}
		}
		updates["longitude"] = *in.Longitude
	}
	if in.ContactPhone != nil {
		updates["contact_phone"] = *in.ContactPhone
	}
	if len(updates) == 0 {
		return nil, &model.ValidationError{Msg: "no fields to update"}
	}

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	report, err := s.reports.Update(cctx, rid, updates)
	if err != nil {
		return nil, &UpstreamError{Op: "update", Err: err}
	}
	if report == nil {
		return nil, ErrReportNotFound
	}

	s.events.Publish(ctx, ReportEvent{Action: "UPDATE", ReportID: report.ID.String(), Status: report.Status})
	return report, nil
}

// Delete removes the report and its stored images. Never retried: a replayed
// delete after a lost response would mask the outcome of the first attempt.
func (s *ReportService) Delete(ctx context.Context, id string) error {
	rid, err := parseReportID(id)
	if err != nil {
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	report, err := s.reports.GetByID(cctx, rid)
	if err != nil {
		return &UpstreamError{Op: "select", Err: err}
	}
	if report == nil {
		return ErrReportNotFound
	}

	deleted, err := s.reports.Delete(cctx, rid)
	if err != nil {
		return &UpstreamError{Op: "delete", Err: err}
	}
	if !deleted {
		return ErrReportNotFound
	}

	// Remove the stored objects so deletes no longer orphan files
	for _, url := range report.ImageURLs {
		if err := s.storage.Delete(url); err != nil {
			zap.L().Warn("Failed to delete stored image",
				zap.String("url", url), zap.Error(err))
		}
	}

	s.events.Publish(ctx, ReportEvent{Action: "DELETE", ReportID: rid.String()})
	return nil
}

// AttachImage stores an image for an existing report and writes its URL into
// image_urls, clearing the media-pending flag. This is also the retry path
// after a partial create failure.
func (s *ReportService) AttachImage(ctx context.Context, id string, image *multipart.FileHeader) (*model.Report, error) {
	rid, err := parseReportID(id)
	if err != nil {
		return nil, err
	}
	if err := ValidateImage(image, s.maxUpload); err != nil {
		return nil, err
	}

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	report, err := s.reports.GetByID(cctx, rid)
	if err != nil {
		return nil, &UpstreamError{Op: "select", Err: err}
	}
	if report == nil {
		return nil, ErrReportNotFound
	}

	url, err := s.storeImage(ctx, rid, image)
	if err != nil {
		return nil, &UpstreamError{Op: "upload", Err: err}
	}

	// Single-image contract: the new URL replaces any previous one
	for _, old := range report.ImageURLs {
		if dErr := s.storage.Delete(old); dErr != nil {
			zap.L().Warn("Failed to delete replaced image", zap.String("url", old), zap.Error(dErr))
		}
	}

	uctx, ucancel := context.WithTimeout(ctx, s.timeout)
	defer ucancel()
	if err := s.reports.SetImages(uctx, rid, []string{url}, false); err != nil {
		return nil, &UpstreamError{Op: "update", Err: err}
	}
	report.ImageURLs = []string{url}
	report.MediaPending = false

	s.events.Publish(ctx, ReportEvent{Action: "UPDATE", ReportID: rid.String(), Status: report.Status})
	return report, nil
}

// Stats returns the dashboard aggregates.
func (s *ReportService) Stats(ctx context.Context) (*model.DashboardStats, error) {
	var stats *model.DashboardStats
	err := s.withRetry(ctx, func(c context.Context) error {
		var err error
		stats, err = s.reports.Stats(c)
		return err
	})
	if err != nil {
		return nil, &UpstreamError{Op: "select", Err: err}
	}
	return stats, nil
}

func (s *ReportService) validate(in NewReportInput) (*model.CreateReport, error) {
	animalType, ok := model.ParseAnimalType(in.AnimalType)
	if !ok {
		return nil, &model.ValidationError{Field: "animalType", Msg: "unknown animal type"}
	}
	urgency, ok := model.ParseUrgency(in.Urgency)
	if !ok {
		return nil, &model.ValidationError{Field: "urgency", Msg: "unknown urgency"}
	}
	if strings.TrimSpace(in.Description) == "" {
		return nil, &model.ValidationError{Field: "description", Msg: "is required"}
	}
	if strings.TrimSpace(in.Location) == "" {
		return nil, &model.ValidationError{Field: "location", Msg: "is required"}
	}

	lat, lng, err := model.ParseCoordinates(in.Coordinates)
	if err != nil {
		return nil, err
	}

	var userID *uuid.UUID
	if in.UserID != "" {
		uid, err := uuid.Parse(in.UserID)
		if err != nil {
			return nil, &model.ValidationError{Field: "userId", Msg: "must be a valid id"}
		}
		userID = &uid
	}

	return &model.CreateReport{
		AnimalType:   animalType,
		Breed:        strings.TrimSpace(in.Breed),
		Description:  strings.TrimSpace(in.Description),
		LocationName: strings.TrimSpace(in.Location),
		Latitude:     lat,
		Longitude:    lng,
		Urgency:      urgency,
		ContactPhone: strings.TrimSpace(in.ContactPhone),
		UserID:       userID,
	}, nil
}

// storeImage saves the file under a report-namespaced key. The attach is
// retried under the same policy as reads: writing the same key twice is
// harmless.
func (s *ReportService) storeImage(ctx context.Context, reportID uuid.UUID, header *multipart.FileHeader) (string, error) {
	key := ImageKey(reportID, header.Filename)

	var url string
	err := s.withRetry(ctx, func(context.Context) error {
		src, err := header.Open()
		if err != nil {
			return err
		}
		defer src.Close()

		url, err = s.storage.Save(key, header.Header.Get("Content-Type"), src)
		return err
	})
	return url, err
}

// withRetry runs fn with a bounded per-attempt timeout, retrying transient
// failures with a short backoff.
func (s *ReportService) withRetry(ctx context.Context, fn func(context.Context) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		cctx, cancel := context.WithTimeout(ctx, s.timeout)
		err = fn(cctx)
		cancel()
		if err == nil || attempt >= readRetries || ctx.Err() != nil {
			return err
		}
		time.Sleep(retryBackoff)
	}
}

func parseReportID(id string) (uuid.UUID, error) {
	rid, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, &model.ValidationError{Field: "id", Msg: "must be a valid report id"}
	}
	return rid, nil
}
