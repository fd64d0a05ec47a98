package research_engine

import "time"

// Config bounds how the generator talks to the provider.
type Config struct {
	Concurrency   int           // max vectors in flight per batch
	VectorTimeout time.Duration // budget for one provider call
	BatchTimeout  time.Duration // budget for a queued job, all vectors included
	QueueSize     int
}

func DefaultConfig() Config {
	return Config{
		Concurrency:   4,
		VectorTimeout: 90 * time.Second,
		BatchTimeout:  10 * time.Minute,
		QueueSize:     64,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Concurrency < 1 {
		c.Concurrency = d.Concurrency
	}
	if c.VectorTimeout <= 0 {
		c.VectorTimeout = d.VectorTimeout
	}
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = d.BatchTimeout
	}
	if c.QueueSize < 1 {
		c.QueueSize = d.QueueSize
	}
	return c
}
