package audit

import (
	"context"

	"github.com/sirupsen/logrus"
)

// LogLogger writes audit entries to a structured logger. It backs the
// in-memory deployment where no audit table exists.
type LogLogger struct {
	logger logrus.FieldLogger
}

// NewLogLogger constructs a LogLogger.
func NewLogLogger(logger logrus.FieldLogger) *LogLogger {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LogLogger{logger: logger}
}

// Log writes an audit entry.
func (l *LogLogger) Log(_ context.Context, entry Entry) error {
	entry.fillDefaults()
	l.logger.WithFields(logrus.Fields{
		"audit_id":      entry.ID,
		"account":       entry.AccountNumber,
		"actor":         entry.Actor,
		"role":          entry.Role,
		"resource_type": entry.ResourceType,
		"resource_id":   entry.ResourceID,
		"metadata":      string(entry.Metadata),
		"ip":            entry.IP,
	}).Info(entry.Action)
	return nil
}
