package server

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"loan-eda/utils"
)

const refreshTimeout = 10 * time.Minute

// StartScheduler rebuilds the store's table on the cron schedule spec. An
// empty spec disables scheduling and returns a nil *cron.Cron.
func StartScheduler(spec string, store *TableStore, logger *utils.Logger) (*cron.Cron, error) {
	if spec == "" {
		return nil, nil
	}

	c := cron.New(cron.WithLogger(cron.PrintfLogger(log.New(logger.Writer(), "[cron] ", 0))))
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()
		logger.Info("[cron] Scheduled table rebuild starting")
		if err := store.Refresh(ctx); err != nil {
			logger.Warn("[cron] Scheduled rebuild failed: %v", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("server: parse refresh schedule %q: %w", spec, err)
	}

	c.Start()
	logger.Info("[cron] Table rebuild scheduled: %s", spec)
	return c, nil
}
