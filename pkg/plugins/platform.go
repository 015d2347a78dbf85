package plugins

import (
	"fmt"
	"runtime"
	"strings"
)

// Platform identifies the operating system and architecture a backend binary is built for
type Platform struct {
	OS   string
	Arch string
}

// CurrentPlatform returns the platform the host is running on
func CurrentPlatform() Platform {
	return Platform{OS: runtime.GOOS, Arch: runtime.GOARCH}
}

func (p Platform) String() string {
	return fmt.Sprintf("%s/%s", p.OS, p.Arch)
}

// executable returns the platform qualified file name for base, e.g. gpx_foo_linux_amd64
func (p Platform) executable(base string) string {
	osName := strings.ToLower(p.OS)
	ext := ""
	if osName == "windows" {
		ext = ".exe"
	}
	return fmt.Sprintf("%s_%s_%s%s", base, osName, strings.ToLower(p.Arch), ext)
}
