// Throttle is the per-user request limiter of the tax assistant chat bot.
//
// It tracks, per chat user and request category, the admissions made in a
// sliding window and rejects requests over quota. By default a user may
// ask 10 text questions per hour and submit 3 documents for analysis per
// day. State is held in memory only.
//
// Usage:
//
//	# Start the HTTP service
//	throttle run --config /etc/throttle/config.yaml
//
//	# Check a configuration file and print the quota table
//	throttle validate --format yaml
//
//	# Replay a burst of requests against the configured quotas
//	throttle simulate --category document_analysis --count 5 --interval 2h
//
//	# Show version information
//	throttle version
package main

import "os"

func main() {
	os.Exit(Execute())
}
