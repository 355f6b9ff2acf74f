// Package errorlog records handled failures for later triage.
//
// Controllers report every error they translate into an HTTP response:
//
//	errorlog.Report(ctx, sink, logger, errorlog.Entry{
//	    Controller: "AuthController",
//	    Function:   "login",
//	    Message:    "Error on login",
//	    Err:        err,
//	})
//
// DBSink persists entries in the log_errors table, LogSink writes them to the
// structured logger and MultiSink fans out to several sinks. A recording
// failure is logged and never changes the caller's outcome.
package errorlog
