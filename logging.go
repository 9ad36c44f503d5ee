package compose

import "time"

// PassLogEvent describes one composition pass for logging.
type PassLogEvent struct {
	PassID    string
	Kind      string
	Duration  time.Duration
	Executed  int
	Skipped   int
	Unmounted int
	Err       error
}

// PassLogger records pass events.
type PassLogger interface {
	LogPass(PassLogEvent)
}

// PassLoggerFunc adapts a function to PassLogger.
type PassLoggerFunc func(PassLogEvent)

// LogPass implements PassLogger.
func (f PassLoggerFunc) LogPass(event PassLogEvent) {
	if f != nil {
		f(event)
	}
}

type noopPassLogger struct{}

func (noopPassLogger) LogPass(PassLogEvent) {}
