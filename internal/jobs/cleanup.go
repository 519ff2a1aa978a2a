package jobs

import (
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openclaw/intake-bot-go/internal/audit"
	"github.com/openclaw/intake-bot-go/internal/store"
)

// CleanupJob periodically purges idle sessions and releases their attachment
// directories. A purged session is simply gone; the next message from that
// user starts a fresh dialogue.
type CleanupJob struct {
	sessions *store.SessionStore
	idleTTL  time.Duration
	interval time.Duration
	done     chan struct{}
}

func NewCleanupJob(sessions *store.SessionStore, idleTTL, interval time.Duration) *CleanupJob {
	return &CleanupJob{
		sessions: sessions,
		idleTTL:  idleTTL,
		interval: interval,
		done:     make(chan struct{}),
	}
}

func (j *CleanupJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Dur("idleTtl", j.idleTTL).Msg("cleanup job started")
}

func (j *CleanupJob) Stop() {
	close(j.done)
	log.Info().Msg("cleanup job stopped")
}

func (j *CleanupJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.Cleanup()
		}
	}
}

// Cleanup runs one purge pass.
func (j *CleanupJob) Cleanup() {
	purged := j.sessions.PurgeIdle(j.idleTTL)
	for _, sess := range purged {
		audit.Log(audit.Event{Type: audit.EventSessionPurged, UserID: sess.UserID, SessionID: sess.ID})
		if sess.TempDir == "" {
			continue
		}
		if err := os.RemoveAll(sess.TempDir); err != nil {
			log.Warn().Err(err).Str("dir", sess.TempDir).Msg("failed to remove attachment directory")
		}
	}
	if len(purged) > 0 {
		log.Info().Int("count", len(purged)).Msg("purged idle sessions")
	}
}
