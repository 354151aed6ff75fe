// Package queue gates how fast and how many chains start from each named
// queue.
//
// Every submitted chain carries a queue name (default: "default"). The
// worker pool polls the queues listed in [jobchain.Config.Queues] and asks
// the [Manager] before starting a claimed task:
//
//	m := queue.NewManager(
//	    queue.Config{Name: "mail", MaxConcurrency: 5},
//	    queue.Config{Name: "bulk", RateLimit: 5, RateBurst: 10},
//	)
//	if m.Acquire("mail") {
//	    defer m.Release("mail")
//	    // run the chain
//	}
//
// Rate limits use a token bucket from golang.org/x/time/rate. Queues
// without a [Config] are only bounded by the pool-wide concurrency.
package queue
