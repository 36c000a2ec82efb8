// qeintel is the QE Intelligence command line: it generates test cases from
// JIRA tickets, analyzes Jenkins pipeline failures, and serves run state.
package main

import (
	"errors"
	"os"
)

func main() {
	err := newRootCmd().Execute()
	if err == nil {
		os.Exit(0)
	}
	var exit *exitError
	if errors.As(err, &exit) {
		os.Exit(exit.code)
	}
	os.Exit(1)
}
