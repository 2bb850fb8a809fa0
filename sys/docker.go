package sys

import (
	"os"
	"regexp"
	"strings"
)

var isCgroupMatch = regexp.MustCompile("(docker|lxc|rkt|libpod|kubepods|containerd)")

// Exists reports whether a file or directory exists at path
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// markers are checked before falling back to the cgroup of pid 1
var markers = []string{"/.dockerenv", "/run/.containerenv"}

const cgroupFile = "/proc/1/cgroup"

// IsRunningInsideContainer returns true if the process is running inside a container environment.
func IsRunningInsideContainer() bool {
	return insideContainer(markers, cgroupFile)
}

func insideContainer(markers []string, cgroup string) bool {
	for _, m := range markers {
		if Exists(m) {
			return true
		}
	}
	buf, err := os.ReadFile(cgroup)
	if err != nil {
		return false
	}
	return isCgroupMatch.MatchString(strings.TrimSpace(string(buf)))
}
