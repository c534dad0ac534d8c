package editor

import (
	"context"
	"log/slog"
	"time"
)

// DefaultAutosaveInterval matches the editor's historical one-minute cadence.
const DefaultAutosaveInterval = time.Minute

// Autosaver calls AutosaveTick on a fixed wall-clock interval, regardless
// of user activity.
type Autosaver struct {
	session  *Session
	interval time.Duration
	logger   *slog.Logger
}

func NewAutosaver(session *Session, interval time.Duration, logger *slog.Logger) *Autosaver {
	if interval <= 0 {
		interval = DefaultAutosaveInterval
	}
	return &Autosaver{session: session, interval: interval, logger: logger}
}

// Run blocks until ctx is cancelled or the session closes.
func (a *Autosaver) Run(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	a.session.setAutosaveRunning(true)
	defer a.session.setAutosaveRunning(false)

	a.logger.Debug("autosave started", "editor_session", a.session.ID(), "interval", a.interval)
	defer a.logger.Debug("autosave stopped", "editor_session", a.session.ID())

	for {
		select {
		case <-ctx.Done():
			return
		case <-a.session.Done():
			return
		case <-ticker.C:
			a.session.AutosaveTick(ctx)
		}
	}
}
