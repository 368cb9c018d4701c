package command

import (
	"context"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v2"

	"github.com/NikhilVijayakumar/mlflow-dvc-poc/pkg/errors"
)

const (
	DVCBinary   = "dvc"
	DVCFile     = "dvc.yaml"
	DVCLockFile = "dvc.lock"
)

type DVC struct {
	Runner Runner
}

func (d DVC) run(ctx context.Context, args ...string) error {
	_, err := d.Runner.Run(ctx, DVCBinary, args...)
	return err
}

func (d DVC) Init(ctx context.Context) error {
	return d.run(ctx, "init")
}

func (d DVC) RemoteAdd(ctx context.Context, name, url string, isDefault, force bool) error {
	args := []string{"remote", "add"}
	if isDefault {
		args = append(args, "-d")
	}
	if force {
		args = append(args, "--force")
	}
	return d.run(ctx, append(args, name, url)...)
}

func (d DVC) RemoteModify(ctx context.Context, name, key, value string) error {
	return d.run(ctx, "remote", "modify", name, key, value)
}

// RemoteModifyLocal stores the option in .dvc/config.local, which is not committed.
func (d DVC) RemoteModifyLocal(ctx context.Context, name, key, value string) error {
	return d.run(ctx, "remote", "modify", "--local", name, key, value)
}

func (d DVC) Pull(ctx context.Context) error {
	return d.run(ctx, "pull")
}

func (d DVC) Push(ctx context.Context) error {
	return d.run(ctx, "push")
}

func (d DVC) Repro(ctx context.Context) error {
	return d.run(ctx, "repro")
}

type Stage struct {
	Cmd     string   `yaml:"cmd"`
	Deps    []string `yaml:"deps,omitempty"`
	Outs    []string `yaml:"outs,omitempty"`
	Params  []string `yaml:"params,omitempty"`
	Metrics []any    `yaml:"metrics,omitempty"`
}

type pipelineFile struct {
	Stages map[string]Stage `yaml:"stages"`
}

// Stages parses the stage declarations of a dvc.yaml file, sorted by name.
func Stages(path string) ([]string, map[string]Stage, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, errors.NewConfigNotFoundError(path)
		}
		return nil, nil, errors.NewInternalError(err)
	}
	var file pipelineFile
	if err := yaml.Unmarshal(content, &file); err != nil {
		return nil, nil, errors.NewConfigInvalidError(fmt.Sprintf("parse %s: %v", path, err))
	}
	names := make([]string, 0, len(file.Stages))
	for name, stage := range file.Stages {
		if stage.Cmd == "" {
			return nil, nil, errors.NewConfigInvalidError(fmt.Sprintf("%s: stage %s has no cmd", path, name))
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, file.Stages, nil
}
