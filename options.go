package compose

import "github.com/goliatone/go-compose/pkg/activity"

// Option configures a Composer at Compose time.
type Option func(*composerConfig)

type composerConfig struct {
	logger    PassLogger
	hooks     activity.Hooks
	channel   string
	tracing   bool
	retention SlotRetention
	cache     ProgramCache
}

func applyOptions(opts []Option) composerConfig {
	cfg := composerConfig{
		logger:    noopPassLogger{},
		retention: SlotRetention{MaxIdlePasses: 1},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithPassLogger attaches a logger receiving one event per pass.
func WithPassLogger(logger PassLogger) Option {
	return func(cfg *composerConfig) {
		if logger == nil {
			cfg.logger = noopPassLogger{}
			return
		}
		cfg.logger = logger
	}
}

// WithActivityHooks registers lifecycle hooks. Events are buffered during a
// pass and fanned out only when it commits; a rolled-back pass delivers
// nothing.
func WithActivityHooks(hooks ...activity.Hook) Option {
	return func(cfg *composerConfig) {
		cfg.hooks = append(cfg.hooks, hooks...)
	}
}

// WithActivityChannel overrides the default "compose" channel stamped on
// emitted events.
func WithActivityChannel(channel string) Option {
	return func(cfg *composerConfig) {
		cfg.channel = channel
	}
}

// WithTracing records a PassTrace for every committed pass, retrievable via
// Recomposer.LastTrace.
func WithTracing() Option {
	return func(cfg *composerConfig) {
		cfg.tracing = true
	}
}

// WithSlotRetention overrides the subcomposition retention policy.
func WithSlotRetention(retention SlotRetention) Option {
	return func(cfg *composerConfig) {
		if retention.MaxIdlePasses < 0 {
			retention.MaxIdlePasses = 0
		}
		cfg.retention = retention
	}
}

// WithProgramCache registers a compiled-program cache for diagnostics
// queries.
func WithProgramCache(cache ProgramCache) Option {
	return func(cfg *composerConfig) {
		cfg.cache = cache
	}
}
