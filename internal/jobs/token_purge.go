// File: internal/jobs/token_purge.go
package jobs

import (
	"context"
	"fmt"
	"time"

	"membership_backend/internal/config"
	"membership_backend/internal/intent"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// TokenPurgeJob periodically deletes expired ephemeral tokens. Lookups
// already filter on expiry, so the purge is hygiene, not correctness: it
// keeps the table small and the recency scan cheap.
type TokenPurgeJob struct {
	store         intent.Store
	logger        *zap.Logger
	cfg           *config.Config
	cronScheduler *cron.Cron
}

// NewTokenPurgeJob creates a new TokenPurgeJob.
func NewTokenPurgeJob(
	store intent.Store,
	logger *zap.Logger,
	cfg *config.Config,
) *TokenPurgeJob {
	scheduler := cron.New(cron.WithLogger(NewCronLogger(logger.Named("cron"))))

	return &TokenPurgeJob{
		store:         store,
		logger:        logger.Named("TokenPurgeJob"),
		cfg:           cfg,
		cronScheduler: scheduler,
	}
}

// SetupAndStart schedules and starts the cron job.
func (j *TokenPurgeJob) SetupAndStart() error {
	jobSpec := j.cfg.TokenPurgeJobSchedule // e.g., "@hourly"
	if jobSpec == "" {
		j.logger.Warn("Token purge job schedule not defined (TOKEN_PURGE_JOB_SCHEDULE). Job will not run.")
		return nil
	}

	jobID, err := j.cronScheduler.AddFunc(jobSpec, j.runJob)
	if err != nil {
		j.logger.Error("Failed to schedule token purge job", zap.String("spec", jobSpec), zap.Error(err))
		return err
	}

	j.logger.Info("Token purge job scheduled", zap.String("spec", jobSpec), zap.Any("jobID", jobID))
	j.cronScheduler.Start()
	return nil
}

func (j *TokenPurgeJob) runJob() {
	j.logger.Info("Starting token purge job run...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	purged, err := j.store.DeleteExpired(ctx)
	if err != nil {
		j.logger.Error("Token purge job run failed", zap.Error(err))
	} else {
		j.logger.Info("Token purge job run completed", zap.Int64("tokens_purged", purged))
	}
}

// Stop gracefully stops the cron scheduler.
func (j *TokenPurgeJob) Stop() {
	if j.cronScheduler != nil {
		j.logger.Info("Stopping token purge job scheduler...")
		stopCtx := j.cronScheduler.Stop()
		select {
		case <-stopCtx.Done():
			j.logger.Info("Token purge job scheduler stopped gracefully.")
		case <-time.After(10 * time.Second):
			j.logger.Warn("Token purge job scheduler stop timed out.")
		}
	}
}

// cronLogger adapts zap.Logger to the cron.Logger interface.
type cronLogger struct {
	zl *zap.Logger
}

// NewCronLogger creates a new cronLogger.
func NewCronLogger(zl *zap.Logger) cron.Logger {
	return &cronLogger{zl: zl}
}

func (cl *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	cl.zl.Info(msg, cl.parseKeysAndValues(keysAndValues...)...)
}

func (cl *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	fields := cl.parseKeysAndValues(keysAndValues...)
	fields = append(fields, zap.Error(err))
	cl.zl.Error(msg, fields...)
}

func (cl *cronLogger) parseKeysAndValues(keysAndValues ...interface{}) []zap.Field {
	var fields []zap.Field
	for i := 0; i < len(keysAndValues); i += 2 {
		if i+1 < len(keysAndValues) {
			fields = append(fields, zap.Any(fmt.Sprintf("%v", keysAndValues[i]), keysAndValues[i+1]))
		} else {
			fields = append(fields, zap.Any(fmt.Sprintf("%v", keysAndValues[i]), "MISSING_VALUE"))
		}
	}
	return fields
}
