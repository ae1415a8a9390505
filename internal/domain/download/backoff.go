package download

import "math"

// goldenRatio drives the retry backoff growth
const goldenRatio = 1.6180339887

// nextWait returns the backoff, in units, that follows prev
func nextWait(prev int) int {
	return int(math.Round(float64(prev) * goldenRatio))
}

// Backoff returns the waits, in units, before each retry of a download with
// the given budget. The first attempt has no wait.
func Backoff(retries uint32) []int {
	if retries < 2 {
		return nil
	}
	waits := make([]int, 0, retries-1)
	wait := 1
	for i := uint32(1); i < retries; i++ {
		wait = nextWait(wait)
		waits = append(waits, wait)
	}
	return waits
}
