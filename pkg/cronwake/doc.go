/*
Package cronwake delivers cron-scheduled wake hints to background pool tasks.

Pool tasks self-throttle when they find no work, sleeping out the pool's idle
interval between attempts. When the useful moments are known in advance, a
Waker can cut those sleeps short: it evaluates cron expressions and calls
Wake() on the registered handles when their schedule fires, making the tasks
eligible for prompt re-examination without changing how they compete for
selection.

	w := cronwake.New()
	defer func() { <-w.Stop() }()
	w.Start()

	handle := p.AddTask(compactTable)

	// Re-check the table at the top of every hour.
	if err := w.Add("hourly-compaction", "@hourly", handle); err != nil {
		log.Fatal(err)
	}

Expressions use the robfig/cron format with an optional seconds field and
descriptors ("@hourly", "@daily", "@every 5m"). Firing granularity is bounded
by the configured tick interval (default one second); wakes are best-effort
hints, so a missed tick only delays re-examination, it never loses work.
*/
package cronwake
