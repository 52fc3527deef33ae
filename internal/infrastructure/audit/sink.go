package audit

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/erp/catalogsync/internal/domain/integration"
	"github.com/erp/catalogsync/internal/infrastructure/logger"
)

// Uploader copies a finished artifact to remote storage and returns its key
type Uploader interface {
	Upload(ctx context.Context, path string) (string, error)
}

// ArtifactSink writes CSV or XLSX artifacts. Real runs are only written
// when always is set.
type ArtifactSink struct {
	dir      string
	writer   Writer
	always   bool
	uploader Uploader
}

// NewArtifactSink creates an artifact sink
func NewArtifactSink(dir string, format Format, always bool) *ArtifactSink {
	return &ArtifactSink{dir: dir, writer: NewWriter(format), always: always}
}

// WithUploader attaches remote storage for written artifacts
func (s *ArtifactSink) WithUploader(u Uploader) *ArtifactSink {
	s.uploader = u
	return s
}

// Record implements integration.AuditSink
func (s *ArtifactSink) Record(ctx context.Context, batch integration.AuditBatch) error {
	if !batch.DryRun && !s.always {
		return nil
	}
	path, err := s.writer.Write(s.dir, batch)
	if err != nil {
		return err
	}
	logger.L(ctx).Info("Audit artifact written",
		zap.String("path", path),
		zap.Int("rows", len(batch.Rows)),
	)

	if s.uploader == nil {
		return nil
	}
	key, err := s.uploader.Upload(ctx, path)
	if err != nil {
		return fmt.Errorf("audit: upload %s: %w", path, err)
	}
	logger.L(ctx).Info("Audit artifact uploaded", zap.String("key", key))
	return nil
}

// MultiSink delivers a batch to every sink. A failing sink does not stop
// the others; all failures are joined.
type MultiSink struct {
	sinks []integration.AuditSink
}

// NewMultiSink creates a fan-out sink, skipping nil entries
func NewMultiSink(sinks ...integration.AuditSink) *MultiSink {
	m := &MultiSink{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Add appends a sink
func (m *MultiSink) Add(s integration.AuditSink) {
	if s != nil {
		m.sinks = append(m.sinks, s)
	}
}

// Len returns the number of sinks
func (m *MultiSink) Len() int { return len(m.sinks) }

// Record implements integration.AuditSink
func (m *MultiSink) Record(ctx context.Context, batch integration.AuditBatch) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Record(ctx, batch); err != nil {
			logger.L(ctx).Warn("Audit sink failed",
				zap.String("sink", fmt.Sprintf("%T", s)),
				zap.Error(err),
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ integration.AuditSink = (*ArtifactSink)(nil)
	_ integration.AuditSink = (*MultiSink)(nil)
)
