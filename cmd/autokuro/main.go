// Package main provides the entry point for the autokuro CLI.
//
// autokuro runs a fixed sequence of external reconnaissance tools against
// a root domain. Each stage feeds the next through files in a per-target,
// per-day run directory, so an interrupted run resumes where it stopped.
//
// Usage:
//
//	autokuro start -d example.com
//	autokuro start -d example.com -m ghost --proxy http://127.0.0.1:8080
//	autokuro verify
//
// See --help for all available options.
package main

// main is the entry point for autokuro.
func main() {
	Execute()
}
