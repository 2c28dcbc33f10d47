// Package signature detects hostile blocking in scanner output.
//
// External scanners rarely exit non-zero when a web application firewall
// starts answering with challenge pages. The only reliable signal is the
// text they print: a Cloudflare challenge marker, an "Access Denied" page,
// a vendor banner. Matcher scans captured stdout and stderr for a fixed list
// of such markers so the runner can stop the whole pipeline before the
// operator's address gets burned.
package signature
