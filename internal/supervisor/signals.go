package supervisor

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// HandleSignals installs the supervisor's signal policy (spec.md §4.G):
// SIGINT/SIGTERM stop the loop and terminate children; SIGQUIT stops the
// loop but leaves children running to be adopted on the next boot;
// SIGPIPE is ignored via signal.Ignore, so a write to a closed pipe
// (stdout and stderr included) returns EPIPE instead of ending the process;
// SIGSEGV triggers a best-effort shutdown and a failing exit. It returns a
// stop function the caller should invoke to release the signal channel.
func (s *Supervisor) HandleSignals(ctx context.Context, cancel context.CancelFunc) func() {
	ch := make(chan os.Signal, 4)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGSEGV)
	signal.Ignore(syscall.SIGPIPE)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case sig, ok := <-ch:
				if !ok {
					return
				}
				s.handleSignal(sig, cancel)
			}
		}
	}()

	return func() {
		signal.Stop(ch)
		close(ch)
	}
}

func (s *Supervisor) handleSignal(sig os.Signal, cancel context.CancelFunc) {
	switch sig {
	case syscall.SIGINT, syscall.SIGTERM:
		// Stop (not cancel) lets Run drain to its top-of-loop check and
		// run ShutdownAll there; canceling ctx here would race Run's
		// select and skip ShutdownAll entirely (spec.md §4.G/§5).
		s.logger.Info("received shutdown signal", "signal", sig)
		s.audit.LogSystemShutdown(sig.String(), true)
		s.Stop(true)
	case syscall.SIGQUIT:
		s.logger.Info("received adopt-on-exit signal", "signal", sig)
		s.audit.LogSystemShutdown(sig.String(), true)
		if err := s.PersistRunningPids(); err != nil {
			s.logger.Error("failed to persist pids for adoption", "error", err)
		}
		s.Stop(false)
	case syscall.SIGSEGV:
		// Best-effort shutdown without terminating children (spec.md §7):
		// no signals are sent to any instance, unlike the SIGINT/SIGTERM
		// path's ShutdownAll.
		s.logger.Error("received SIGSEGV, attempting best-effort shutdown", "signal", sig)
		s.audit.LogSystemShutdown(sig.String(), false)
		s.Stop(false)
		os.Exit(1)
	}
}
