package s3driver

import "time"

// backoffFor returns the per-part retry backoff for the given attempt
// number (1-indexed): 1s * 2^(attempt-1).
func backoffFor(attempt int) time.Duration {
	d := time.Second
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	return d
}

func timeAfter(d time.Duration) <-chan time.Time {
	return time.After(d)
}
