// Package logger provides structured logging for photoflow using zerolog.
//
// It supports JSON and console output, level configuration and
// component-scoped loggers. Every line of an ingest run carries the run's
// run_id once the context has been tagged with ContextWithRunID.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.GetGlobalLogger().WithComponent("output")
//	log.Warn("item dropped", logger.ItemFields(src, "output"))
package logger
