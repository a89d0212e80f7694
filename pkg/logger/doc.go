// Package logger provides the structured logging interface used across the
// scraper. It wraps zerolog and adds:
//   - leveled logging with attached fields
//   - colored console output when attached to a terminal, JSON lines otherwise
//   - optional tee to a log file
//   - a capturing TestLogger and a no-op logger for tests
//
// Usage:
//
//	cfg := &config.LoggingConfig{Level: "info"}
//	if err := logger.Initialize(cfg); err != nil {
//		return err
//	}
//
//	log := logger.GetLogger().WithField("county", "hays")
//	log.InfoWithFields("search completed", map[string]interface{}{
//		"officer": "39607",
//		"records": 12,
//	})
package logger
