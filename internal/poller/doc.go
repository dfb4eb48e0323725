// Package poller runs the recurring change-detection cycle.
//
// Engine.RunCycle walks every tracker once: it backfills missing target ids, fetches
// the current following list, and when newcomers appear it notifies the tracker's
// address and only then replaces the stored baseline. A cycle with no newcomers
// writes nothing. One tracker's failure is logged and never aborts the cycle.
//
// Scheduler fires RunCycle on a cron expression and skips ticks that arrive while
// a previous cycle is still running.
package poller
