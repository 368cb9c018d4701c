package command

import "context"

const GitBinary = "git"

type Git struct {
	Runner Runner
}

func (g Git) Add(ctx context.Context, files ...string) error {
	_, err := g.Runner.Run(ctx, GitBinary, append([]string{"add"}, files...)...)
	return err
}

func (g Git) Commit(ctx context.Context, message string) error {
	_, err := g.Runner.Run(ctx, GitBinary, "commit", "-m", message)
	return err
}
