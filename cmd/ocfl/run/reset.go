package run

import (
	"context"
	"fmt"
)

const resetHelp = "Discard staged changes to an object"

type resetCmd struct {
	ID    string   `name:"id" short:"i" required:"" help:"The ID for the object to reset"`
	Paths []string `arg:"" optional:"" name:"path" help:"Logical path(s) to reset. Without any, all staged changes are discarded."`
}

func (cmd *resetCmd) Run(ctx context.Context, env *runEnv) error {
	store, err := env.stagingStore()
	if err != nil {
		return err
	}
	if !store.HasStaged(cmd.ID) {
		fmt.Fprintln(env.stdout, "no staged changes for", cmd.ID)
		return nil
	}
	staged, err := store.Stage(ctx, cmd.ID)
	if err != nil {
		return err
	}
	defer staged.Close()
	return staged.Reset(cmd.Paths...)
}
