// Package build carries version metadata injected at link time.
package build

import "strings"

var (
	Version = "dev"
	AppName = "Conductor"
	Slug    = ""
)

func init() {
	if Slug == "" {
		Slug = strings.ToLower(AppName)
	}
}
