package version

import (
	"fmt"
	"runtime"
)

// set via -ldflags "-X github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/version.gitVersion=..."
var (
	gitVersion = "v0.0.0-dev"
	gitCommit  = "unknown"
	buildDate  = "1970-01-01T00:00:00Z"
)

type Info struct {
	GitVersion string `json:"gitVersion"`
	GitCommit  string `json:"gitCommit"`
	BuildDate  string `json:"buildDate"`
	GoVersion  string `json:"goVersion"`
	Compiler   string `json:"compiler"`
	Platform   string `json:"platform"`
}

func (i Info) String() string {
	return fmt.Sprintf("%s (commit: %s, built: %s, %s)", i.GitVersion, i.GitCommit, i.BuildDate, i.Platform)
}

func Get() Info {
	return Info{
		GitVersion: gitVersion,
		GitCommit:  gitCommit,
		BuildDate:  buildDate,
		GoVersion:  runtime.Version(),
		Compiler:   runtime.Compiler,
		Platform:   fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}
