package auditlog

import (
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jszwec/csvutil"

	apperrors "github.com/yanqian/horizon/pkg/errors"
)

// Service records and lists analysis attempts.
type Service interface {
	Record(ctx context.Context, entry Entry) error
	Recent(ctx context.Context, limit int) ([]Entry, error)
	ExportCSV(ctx context.Context, w io.Writer, limit int) error
}

type service struct {
	cfg    Config
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// NewService wires the audit log.
func NewService(cfg Config, repo Repository, logger *slog.Logger) Service {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 50
	}
	if cfg.MaxLimit < cfg.DefaultLimit {
		cfg.MaxLimit = cfg.DefaultLimit
	}
	return &service{
		cfg:    cfg,
		repo:   repo,
		logger: logger.With("component", "auditlog.service"),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

func (s *service) Record(ctx context.Context, entry Entry) error {
	if strings.TrimSpace(string(entry.Outcome)) == "" {
		return apperrors.Wrap("invalid_input", "outcome cannot be empty", nil)
	}
	if entry.ID == "" {
		entry.ID = s.newID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now().UTC()
	}
	if err := s.repo.Insert(ctx, entry); err != nil {
		return apperrors.Wrap("audit_failed", "failed to record analysis", err)
	}
	s.logger.Debug("analysis recorded", "id", entry.ID, "outcome", entry.Outcome)
	return nil
}

func (s *service) Recent(ctx context.Context, limit int) ([]Entry, error) {
	entries, err := s.repo.Recent(ctx, s.clamp(limit))
	if err != nil {
		return nil, apperrors.Wrap("audit_failed", "failed to list analyses", err)
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}

// ExportCSV writes the most recent entries with a header row.
func (s *service) ExportCSV(ctx context.Context, w io.Writer, limit int) error {
	entries, err := s.Recent(ctx, limit)
	if err != nil {
		return err
	}
	writer := csv.NewWriter(w)
	enc := csvutil.NewEncoder(writer)
	if len(entries) == 0 {
		err = enc.EncodeHeader(Entry{})
	} else {
		err = enc.Encode(entries)
	}
	if err != nil {
		return apperrors.Wrap("audit_failed", "failed to encode csv", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return apperrors.Wrap("audit_failed", "failed to write csv", err)
	}
	return nil
}

func (s *service) clamp(limit int) int {
	if limit <= 0 {
		return s.cfg.DefaultLimit
	}
	if limit > s.cfg.MaxLimit {
		return s.cfg.MaxLimit
	}
	return limit
}
