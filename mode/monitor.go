package mode

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/khaledhikmat/fr-attendance/model"
	"github.com/khaledhikmat/fr-attendance/pipeline"
	"github.com/khaledhikmat/fr-attendance/service/lgr"
)

// plan is what one discovery round asks the monitor to do.
type plan struct {
	Start   []string
	Restart []string
	Release []string
}

// reconcile compares discovered cameras with the sessions currently held.
// New or idle cameras are started, failed or stopped ones restarted, and
// sessions for cameras that disappeared are released.
func reconcile(discovered []string, current map[string]pipeline.State) plan {
	p := plan{}
	seen := make(map[string]bool, len(discovered))
	for _, id := range discovered {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true

		state, ok := current[id]
		switch {
		case !ok || state == pipeline.Idle:
			p.Start = append(p.Start, id)
		case state.Terminal():
			p.Restart = append(p.Restart, id)
		}
	}
	for id := range current {
		if !seen[id] {
			p.Release = append(p.Release, id)
		}
	}

	slices.Sort(p.Start)
	slices.Sort(p.Restart)
	slices.Sort(p.Release)
	return p
}

// Monitor keeps one recognition session per discovered camera. Failed
// sessions are not retried by the session itself; the next discovery round
// restarts them.
func Monitor(canxCtx context.Context, svcs ServicesFactory) error {
	discoveryStream, err := svcs.DiscoverySvc.Subscribe()
	if err != nil {
		return err
	}

	// Buffered so a failing tick never waits on this loop
	errorStream := make(chan interface{}, 64)
	observer := newSessionObserver(svcs, "monitor", errorStream)

	registry := pipeline.NewRegistry(svcs.CfgSvc, svcs.CameraSvc, func(cameraID string) *pipeline.Session {
		return pipeline.NewSession(svcs.CfgSvc, svcs.CameraSvc, svcs.InferenceSvc, cameraID)
	})

	var monitorStartTime = time.Now().Unix()
	var totalSessions int64
	var statsRounds int64
	monitorStats := model.MonitorStats{}

	statsTicker := time.NewTicker(time.Duration(svcs.CfgSvc.GetMonitorPeriodicTimeout()) * time.Second)
	defer statsTicker.Stop()

	for {
		select {
		case <-canxCtx.Done():
			lgr.Logger.Info(
				"monitor context cancelled",
			)
			goto resume

		case cameras := <-discoveryStream:
			monitorStats.DiscoveryRounds++
			p := reconcile(cameras, registry.States())

			for _, id := range p.Release {
				registry.Release(id)
				monitorStats.Released++
			}

			unaccommodated := 0
			for _, id := range append(p.Start, p.Restart...) {
				session, err := registry.Acquire(id)
				if errors.Is(err, model.ErrCapacity) {
					unaccommodated++
					continue
				}
				if err != nil {
					procError(svcs.JournalSvc, model.GenError("monitor",
						err,
						map[string]interface{}{"camera": id},
						"error acquiring session for camera: %s",
						id))
					continue
				}

				if err := session.Start(canxCtx, observer); err != nil {
					procError(svcs.JournalSvc, model.GenError("monitor",
						err,
						map[string]interface{}{"camera": id},
						"error starting session for camera: %s",
						id))
					continue
				}

				if slices.Contains(p.Restart, id) {
					monitorStats.Restarted++
				} else {
					monitorStats.Started++
				}
			}

			// If there are unaccommodated cameras, let it be known
			if unaccommodated > 0 {
				monitorStats.Unaccommodated += int64(unaccommodated)
				lgr.Logger.Debug(
					"monitor could not accommodate these cameras",
					slog.Int("unaccommodated", unaccommodated),
					slog.Int("maxSessions", svcs.CfgSvc.GetMaxSessions()),
				)
			}

		case <-statsTicker.C:
			statsRounds++
			for id := range registry.List() {
				totalSessions++
				if session, ok := registry.Get(id); ok {
					procStats(svcs.JournalSvc, session.Stats())
				}
			}
			procStats(svcs.JournalSvc, registry.Stats())

			monitorStats.Uptime = time.Now().Unix() - monitorStartTime
			monitorStats.AvgSessions = float64(totalSessions) / float64(statsRounds)
			procStats(svcs.JournalSvc, monitorStats)

		case e := <-errorStream:
			procError(svcs.JournalSvc, e)
		}
	}

	// Wait in a non-blocking way for `GetModeMaxShutdownTime` for all the go routines to exit
	// This is needed because the sessions may need to report errors as they are existing
resume:
	lgr.Logger.Info(
		"monitor is waiting for all sessions to exit",
	)

	if err := svcs.DiscoverySvc.Unsubscribe(); err != nil {
		lgr.Logger.Warn("error unsubscribing from discovery", slog.Any("error", err))
	}
	held := []*pipeline.Session{}
	for id := range registry.States() {
		if session, ok := registry.Get(id); ok {
			held = append(held, session)
		}
	}
	registry.Close()
	for _, session := range held {
		procStats(svcs.JournalSvc, session.Stats())
	}
	procStats(svcs.JournalSvc, registry.Stats())
	monitorStats.Uptime = time.Now().Unix() - monitorStartTime
	procStats(svcs.JournalSvc, monitorStats)

	timer := time.NewTimer(time.Duration(svcs.CfgSvc.GetModeMaxShutdownTime()) * time.Second)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			// Timer expired, proceed with shutdown
			lgr.Logger.Info(
				"monitor shutdown waiting period expired. Exiting now",
				slog.Duration("period", time.Duration(svcs.CfgSvc.GetModeMaxShutdownTime())*time.Second),
			)

			return nil

		case e := <-errorStream:
			procError(svcs.JournalSvc, e)
		}
	}
}
