// Package cron fires events on a schedule.
//
// An [Entry] couples a cron expression with an event name and static
// arguments. When the entry comes due the [Scheduler] publishes the event
// on its [Publisher], normally the same *event.Bus that chains subscribe
// to, so a scheduled entry triggers chains exactly as a manual publish
// would.
//
// Schedules use the standard 5-field syntax ("0 9 * * 1-5") or a
// descriptor ("@hourly", "@every 30s").
//
//	sched := cron.NewScheduler(bus)
//	sched.Register("nightly-invoices", "0 2 * * *", "invoices.due")
//	_ = sched.Start(ctx)
//
// Entries can be enabled or disabled at runtime via the admin API
// (POST /v1/crons/:name/enable and POST /v1/crons/:name/disable).
// Entries live in process memory; each running instance fires its own.
package cron
