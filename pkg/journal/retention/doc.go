// Package retention prunes old session records.
//
// A Pruner removes records older than the configured number of days and then
// trims the journal to MaxRecords, newest kept. The Scheduler runs it on a
// cron expression through robfig/cron.
package retention
