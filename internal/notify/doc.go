// Package notify delivers run notifications to a Telegram chat through the
// Bot API: run start and end, and one alert per findings stage that
// produced results. Traffic follows the run's proxy when one is set.
package notify
