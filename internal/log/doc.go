// Package log builds the slog loggers used by linkmark.
//
// Every logger is wrapped in a RedactingHandler that masks secrets before
// they reach the output:
//   - attributes whose key names a secret (password, token, cookie, ...)
//   - values that look like credentials (bearer tokens, JWTs, private keys)
//   - the password part of URLs, e.g. Redis DSNs and proxy URLs
//
// Logs go to the given writer and, optionally, to a size-rotated file.
//
// # Usage
//
//	logger, closeLog, err := log.New(os.Stderr, log.Options{Verbose: true})
//	if err != nil {
//	    return err
//	}
//	defer closeLog()
//
//	logger.Info("bootstrap cache", "redis", "redis://:hunter2@cache:6379/0")
//	// redis=redis://:xxxxx@cache:6379/0
package log
