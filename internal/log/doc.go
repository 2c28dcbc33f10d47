// Package log provides secure logging functionality with automatic sanitization
// of sensitive information, built on top of the standard slog package.
//
// Scanner command lines end up in debug logs, and they carry the session
// cookie and proxy credentials from the run configuration. The SecureHandler
// masks:
//   - attributes whose key names a secret (cookie, proxy, bot_token, chat_id,
//     authorization, anything containing "token" or "password")
//   - values that are secrets on their own (JWT, Bearer, Basic, AWS keys)
//   - secrets embedded in longer values: Cookie headers, --cookie flags,
//     user:pass@ in proxy URLs and Telegram bot tokens
//
// Even in verbose mode, sensitive values are masked.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, true)
//	logger.Debug("starting attempt",
//	    "command", `nuclei -l live.txt -H "Cookie: session=abc"`, // Cookie: ***REDACTED***
//	    "proxy", "http://127.0.0.1:8080",                         // ***REDACTED***
//	)
package log
