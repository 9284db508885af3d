package queue

// Redis key layout for one named queue. All keys share the
// "notify:{queue}:" prefix so several queues can live in one database.
//
//	notify:{q}:job:{id}  hash   job fields
//	notify:{q}:wait      zset   score = priority<<32 + sequence
//	notify:{q}:delayed   zset   score = run-at (unix ms)
//	notify:{q}:active    zset   score = lock deadline (unix ms)
//	notify:{q}:completed zset   score = finished-on (unix ms)
//	notify:{q}:failed    zset   score = finished-on (unix ms)
//	notify:{q}:seq       string FIFO tie-breaker within a priority
const keyPrefix = "notify:"

type keys struct {
	base      string
	wait      string
	delayed   string
	active    string
	completed string
	failed    string
	seq       string
}

func newKeys(queue string) keys {
	base := keyPrefix + queue + ":"
	return keys{
		base:      base,
		wait:      base + "wait",
		delayed:   base + "delayed",
		active:    base + "active",
		completed: base + "completed",
		failed:    base + "failed",
		seq:       base + "seq",
	}
}

// jobPrefix is passed to scripts that resolve job hashes from ids.
func (k keys) jobPrefix() string { return k.base + "job:" }

func (k keys) job(id string) string { return k.jobPrefix() + id }
