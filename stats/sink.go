package stats

import "adshield/logger"

// LoggerSink renders log entries through the leveled logger: warnings at
// WARN, everything else at INFO.
func LoggerSink() Sink {
	return func(message string, category Category) {
		logger.Event(string(category), message)
	}
}
