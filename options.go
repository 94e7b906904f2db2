package redisq

import "time"

// Option configures a Registry. Use NewRegistry(opts...) to construct one
// via the usual functional-options idiom.
type Option func(*Config)

// WithQueue sets the active queue name Q. Required before Submit.
func WithQueue(name string) Option {
	return func(c *Config) { c.Queue = name }
}

// WithChunkSize sets the maximum number of task indices per pushed chunk.
func WithChunkSize(n int) Option {
	return func(c *Config) { c.ChunkSize = n }
}

// WithExport adds symbol names to include in every job's envelope, beyond
// auto-discovered free variables and any per-job export list.
func WithExport(names ...string) Option {
	return func(c *Config) { c.Export = append(c.Export, names...) }
}

// WithPackages sets the external packages/modules a worker must load
// before executing a task body.
func WithPackages(pkgs ...string) Option {
	return func(c *Config) { c.Packages = append(c.Packages, pkgs...) }
}

// WithReduce enables (or disables) two-level reduction for the registry.
func WithReduce(r Reduce) Option {
	return func(c *Config) { c.Reduce = r }
}

// WithFTInterval sets the fault-tolerance polling period. Values below
// MinFTInterval are clamped up during NewRegistry.
func WithFTInterval(d time.Duration) Option {
	return func(c *Config) { c.FTInterval = d }
}

// WithEnvelopeSizeLimit overrides the default 500 MiB envelope size bound.
func WithEnvelopeSizeLimit(n int64) Option {
	return func(c *Config) { c.EnvelopeSizeLimit = n }
}

// WithStoreAddr sets the backing store's address, password, and logical
// database index.
func WithStoreAddr(addr, password string, db int) Option {
	return func(c *Config) { c.Addr = addr; c.Password = password; c.DB = db }
}
