package session

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

const DefaultCleanupInterval = 10 * time.Minute

// StartCleaner reaps idle sessions every interval until ctx is cancelled.
func (s *Store) StartCleaner(ctx context.Context, interval time.Duration, log logrus.FieldLogger) {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	go s.cleanupLoop(ctx, interval, log)
}

func (s *Store) cleanupLoop(ctx context.Context, interval time.Duration, log logrus.FieldLogger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Cleanup(); n > 0 {
				log.WithField("removed", n).Info("expired agent sessions removed")
			}
		}
	}
}
