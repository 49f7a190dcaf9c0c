// Package logging builds the service's structured logger on log/slog.
//
// # Overview
//
// The logging package wraps Go's standard log/slog package to provide:
//   - JSON and text output with a configurable level
//   - Context-aware logging: request ID, user ID and category stored in a
//     context.Context are added to every record logged with that context
//   - Optional pseudonymization of user IDs, since chat user IDs identify
//     real people
//
// # Usage
//
//	logger, err := logging.New(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	})
//	if err != nil {
//	    return err
//	}
//	slog.SetDefault(logger)
//
//	ctx = logging.WithRequestID(ctx, "req-123")
//	ctx = logging.WithUser(ctx, "42")
//	logger.InfoContext(ctx, "quota checked", "remaining", 7)
//	// {"level":"INFO","msg":"quota checked","remaining":7,"request_id":"req-123","user_id":"42"}
package logging
