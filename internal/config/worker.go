package config

import "time"

// WorkerConfig holds background report job configuration
type WorkerConfig struct {
	Workers    int
	QueueSize  int
	JobTimeout time.Duration
}

// DefaultWorkerConfig returns the default worker configuration
func DefaultWorkerConfig() *WorkerConfig {
	return &WorkerConfig{
		Workers:    3,
		QueueSize:  100,
		JobTimeout: 30 * time.Minute,
	}
}
