package main

import (
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// backendBaseURL turns a configured listen address (":8080" or
// "0.0.0.0:8080") into a URL the CLI can dial from the same host the
// server listens on. An address that already carries a scheme is used
// unchanged, so --config pointed at a remote deployment still works.
func backendBaseURL(addr string) string {
	if strings.Contains(addr, "://") {
		return strings.TrimSuffix(addr, "/")
	}
	if strings.HasPrefix(addr, ":") {
		return "http://localhost" + addr
	}
	return "http://" + addr
}

func newAPIClient() *resty.Client {
	return resty.New().SetTimeout(10 * time.Second)
}
