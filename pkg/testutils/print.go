// Copyright (C) 2017 ScyllaDB

package testutils

import (
	"fmt"
	"os"
)

// Print prints a test step to stderr.
func Print(msg string) {
	fmt.Fprintf(os.Stderr, "--- %s\n", msg)
}

// Printf prints a formatted test step to stderr.
func Printf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "--- "+format+"\n", args...)
}
