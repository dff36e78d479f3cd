/*
Package export publishes background pool state to external systems.

The RedisExporter makes a pool's in-flight counters visible across
processes: it registers itself as a regular pool task and, once per
interval, writes the counter snapshot, instance metadata, and instance-set
membership to Redis in a single pipeline. Between intervals it reports no
useful work, so the pool's own backoff provides the pacing.

	exporter, err := export.NewRedisExporter(export.Config{
		Redis:    redis.NewClient(&redis.Options{Addr: "localhost:6379"}),
		Key:      "bgpool:housekeeping",
		Interval: 30 * time.Second,
	})
	if err != nil {
		log.Fatal(err)
	}

	handle := exporter.Attach(p)
	defer exporter.Detach(p)

	// Force an early snapshot after a burst of activity.
	handle.Wake()

Publish failures are never fatal: they surface through the pool's failure
path (logged, retried on the next eligible turn) and stale keys age out via
their TTL.
*/
package export
