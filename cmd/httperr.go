package main

import (
	"errors"
	"net"
)

// classifyHTTPErr maps a resty transport error to the exit code an
// operator-facing command should return: a dial/read timeout is
// distinguished from every other transport failure so scripts can
// retry timeouts without retrying on a hard connection refusal.
func classifyHTTPErr(err error) int {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return exitTimeout
	}
	return exitOrchestrator
}
