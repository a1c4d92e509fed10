// Package logging provides structured logging with per-module log level configuration.
//
// # Usage
//
// Initialize the logging system once at startup:
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"engine":    "debug",
//			"transport": "warn",
//		},
//	})
//
// Get a logger for your module:
//
//	logger := logging.GetLogger("session")
//	logger.Info("Stream opened", "input", inID, "output", outID)
//
// Loggers created before Initialize are rebuilt with the configured format
// and level. The audio callback never logs; it counts, and the control loop
// reports.
//
// # Output
//
// Logs go to stdout by default. When the terminal UI owns the screen, call
// SetOutput with a log file before Initialize.
//
// Example TOML configuration:
//
//	[logging]
//	level = "info"
//	format = "text"
//
//	[logging.modules]
//	engine = "debug"
package logging
