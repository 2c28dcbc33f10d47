// Package runnertest turns a test binary into a fake scanner.
//
// Tests that need real child processes call Init from TestMain. When the
// binary is re-executed with EnvVar set, Init runs Scanner instead of the
// tests. The fake scanner's behavior is driven by "@" directives passed in
// its arguments, usually through a stage's flag text:
//
//	@exit=N             exit with status N
//	@stdout=TEXT        print TEXT on stdout
//	@stderr=TEXT        print TEXT on stderr
//	@sleep=DUR          sleep before doing anything else
//	@sleep-once=PATH    sleep 1m unless PATH exists; create PATH first
//	@lines=a,b,c        write lines to the file after -o/--o/-output
//	@cat                copy stdin to stdout
//	@record=PATH        append the full argv as one line to PATH
package runnertest

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvVar marks a re-executed test binary.
const EnvVar = "AUTOKURO_FAKE_SCANNER"

// Init runs the fake scanner and exits when the process was started as one.
// Otherwise it sets EnvVar so that children spawned by tests become scanners.
func Init() {
	if os.Getenv(EnvVar) == "1" {
		os.Exit(Scanner(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
	}
	if err := os.Setenv(EnvVar, "1"); err != nil {
		panic(err)
	}
}

// Binary returns the path of the running test binary.
func Binary() string {
	return os.Args[0]
}

// Scanner interprets args and returns the exit status.
func Scanner(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	var (
		exitCode  int
		output    string
		lines     []string
		outText   []string
		errText   []string
		sleep     time.Duration
		sleepOnce string
		cat       bool
		record    string
	)

	for i, a := range args {
		switch {
		case a == "-o" || a == "--o" || a == "-output" || a == "--output":
			if i+1 < len(args) {
				output = args[i+1]
			}
		case strings.HasPrefix(a, "@exit="):
			exitCode, _ = strconv.Atoi(strings.TrimPrefix(a, "@exit="))
		case strings.HasPrefix(a, "@stdout="):
			outText = append(outText, strings.TrimPrefix(a, "@stdout="))
		case strings.HasPrefix(a, "@stderr="):
			errText = append(errText, strings.TrimPrefix(a, "@stderr="))
		case strings.HasPrefix(a, "@sleep="):
			sleep, _ = time.ParseDuration(strings.TrimPrefix(a, "@sleep="))
		case strings.HasPrefix(a, "@sleep-once="):
			sleepOnce = strings.TrimPrefix(a, "@sleep-once=")
		case strings.HasPrefix(a, "@lines="):
			lines = append(lines, strings.Split(strings.TrimPrefix(a, "@lines="), ",")...)
		case a == "@cat":
			cat = true
		case strings.HasPrefix(a, "@record="):
			record = strings.TrimPrefix(a, "@record=")
		}
	}

	if record != "" {
		f, err := os.OpenFile(record, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err == nil {
			fmt.Fprintln(f, strings.Join(args, " "))
			f.Close()
		}
	}

	if sleepOnce != "" {
		if _, err := os.Stat(sleepOnce); os.IsNotExist(err) {
			_ = os.WriteFile(sleepOnce, []byte("slept\n"), 0600)
			time.Sleep(time.Minute)
		}
	}
	if sleep > 0 {
		time.Sleep(sleep)
	}

	if output != "" && len(lines) > 0 {
		if err := os.WriteFile(output, []byte(strings.Join(lines, "\n")+"\n"), 0600); err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
	}
	for _, s := range outText {
		fmt.Fprintln(stdout, s)
	}
	for _, s := range errText {
		fmt.Fprintln(stderr, s)
	}
	if cat {
		_, _ = io.Copy(stdout, stdin)
	}
	return exitCode
}
