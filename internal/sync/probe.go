package sync

import "context"

// Probe issues one bounded read against the remote store and reports the
// mode the engine may operate in. Any error or timeout selects local mode.
func (e *Engine) Probe(ctx context.Context) Mode {
	if e.remote == nil {
		e.log.Info("no remote store configured")
		return ModeLocal
	}

	ctx, cancel := context.WithTimeout(ctx, e.probeTimeout)
	defer cancel()

	if err := e.remote.Ping(ctx); err != nil {
		e.log.Warn("remote store unreachable, starting in local mode", "error", err)
		return ModeLocal
	}
	return ModeRemote
}
