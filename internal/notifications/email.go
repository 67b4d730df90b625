package notifications

import (
	"context"

	"github.com/craftline/storefront-backend/pkg/logger"
)

// EmailSink delivers transactional merchant email. Template rendering and
// the delivery provider live behind this interface.
type EmailSink interface {
	Send(ctx context.Context, to, template string, data map[string]any)
}

type logEmailSink struct {
	from string
	log  *logger.Logger
}

// NewLogEmailSink returns an EmailSink that only logs the send. It stands
// in until a delivery provider is wired.
func NewLogEmailSink(from string, log *logger.Logger) EmailSink {
	return &logEmailSink{from: from, log: log}
}

func (s *logEmailSink) Send(ctx context.Context, to, template string, data map[string]any) {
	if s.log == nil {
		return
	}
	fields := map[string]any{
		"from":     s.from,
		"to":       to,
		"template": template,
		"data":     data,
	}
	s.log.Info(s.log.WithFields(ctx, fields), "email dispatched")
}
