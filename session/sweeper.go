package session

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// StartSweeper periodically purges expired sessions from stores that need
// it. It returns nil when the store expires sessions itself.
func StartSweeper(store Store, spec string, logger *logrus.Entry) (*cron.Cron, error) {
	sw, ok := store.(Sweeper)
	if !ok {
		return nil, nil
	}

	l := logger.WithFields(logrus.Fields{
		"module": "session.sweeper",
		"spec":   spec,
	})

	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		n, err := sw.Sweep(context.Background(), time.Now())
		if err != nil {
			l.Errorf("Sweep failed: %v", err)
			return
		}
		if n > 0 {
			l.Infof("Removed %d expired sessions", n)
		}
	})
	if err != nil {
		return nil, err
	}

	c.Start()
	l.Info("Session sweeper started")
	return c, nil
}
