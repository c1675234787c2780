package scheduler

import (
	"github.com/aristath/riskparity/internal/database"
	"github.com/rs/zerolog"
)

// largeWALFrames is the frame count above which a passive checkpoint is reported
const largeWALFrames = 1000

// WALCheckpointJob runs a passive WAL checkpoint on the price cache and
// reports how much of the log is still pending
type WALCheckpointJob struct {
	db  *database.DB
	log zerolog.Logger

	lastFrames       int
	lastCheckpointed int
}

// NewWALCheckpointJob creates a checkpoint job for db. A nil db makes Run a no-op.
func NewWALCheckpointJob(db *database.DB) *WALCheckpointJob {
	return &WALCheckpointJob{
		db:  db,
		log: zerolog.Nop(),
	}
}

// SetLogger sets the logger for the job
func (j *WALCheckpointJob) SetLogger(log zerolog.Logger) {
	j.log = log.With().Str("job", j.Name()).Logger()
}

// Name returns the job name
func (j *WALCheckpointJob) Name() string {
	return "wal_checkpoint"
}

// Run executes the passive checkpoint
func (j *WALCheckpointJob) Run() error {
	if j.db == nil {
		return nil
	}

	// PRAGMA wal_checkpoint returns: busy, log, checkpointed
	var busy, frames, checkpointed int
	err := j.db.Conn().QueryRow("PRAGMA wal_checkpoint(PASSIVE)").Scan(&busy, &frames, &checkpointed)
	if err != nil {
		j.log.Warn().
			Err(err).
			Str("database", j.db.Name()).
			Msg("Failed to check WAL checkpoint")
		return err
	}
	j.lastFrames, j.lastCheckpointed = frames, checkpointed

	if frames > largeWALFrames {
		j.log.Warn().
			Str("database", j.db.Name()).
			Int("wal_frames", frames).
			Int("checkpointed", checkpointed).
			Msg("WAL file is large, checkpoint may be needed")
	} else {
		j.log.Debug().
			Str("database", j.db.Name()).
			Int("wal_frames", frames).
			Msg("WAL checkpoint status OK")
	}
	return nil
}
