/*
Package resilience provides a circuit breaker for calls to remote hosts.

The download transfer client and the runtime client each guard their
transport with a breaker. A device without a reachable CDN fails fast
instead of burning the retry budget of every queued download.

# Usage

	breaker := resilience.New("transfer", resilience.Settings{
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 10
		},
	})

	// Short calls
	err := breaker.Execute(func() error { return client.Call() })

	// Long calls classified after the fact
	ticket, err := breaker.Allow()
	if err != nil {
		return err
	}
	ok := transfer()
	ticket.Done(ok)

# States

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                       [failure]
	                                           v
	                                         Open
*/
package resilience
