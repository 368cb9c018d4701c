package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	info := Get()
	if info.GoVersion != runtime.Version() {
		t.Errorf("GoVersion = %s", info.GoVersion)
	}
	if !strings.HasPrefix(info.String(), gitVersion+" (commit: "+gitCommit) {
		t.Errorf("String() = %s", info.String())
	}
}
