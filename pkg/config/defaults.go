package config

import "time"

// Scan defaults.
const (
	DefaultCommitsFile      = "commits.txt"
	DefaultWorkers          = 0
	DefaultSample           = 50
	DefaultSeed             = 0
	DefaultTreeCacheSize    = "1GiB"
	DefaultBlobCacheSize    = "1GiB"
	DefaultGateContent      = false
	DefaultMaxDepth         = 0
	DefaultJobTimeout       = time.Duration(0)
	DefaultProgressEnabled  = true
	DefaultProgressInterval = time.Second
)

// Output defaults.
const (
	DefaultOutputFormat = "json"
	DefaultOutputSort   = "completion"
	DefaultSummary      = false
)

// Logging defaults.
const (
	DefaultLogLevel = "info"
	DefaultLogJSON  = false
)
