package run

import (
	"context"
	"errors"
)

const rmHelp = "Remove logical paths from an object's staged version"

type rmCmd struct {
	ID        string   `name:"id" short:"i" required:"" help:"The ID for the object to update"`
	Recursive bool     `name:"recursive" short:"R" help:"Remove directories and their contents"`
	Paths     []string `arg:"" name:"path" help:"Logical path(s) to remove"`
}

func (cmd *rmCmd) Run(ctx context.Context, env *runEnv) error {
	if len(cmd.Paths) == 0 {
		return errors.New("missing logical path(s) to remove")
	}
	store, err := env.stagingStore()
	if err != nil {
		return err
	}
	staged, err := store.Stage(ctx, cmd.ID)
	if err != nil {
		return err
	}
	defer staged.Close()
	for _, p := range cmd.Paths {
		if err := staged.Remove(p, cmd.Recursive); err != nil {
			return err
		}
	}
	return nil
}
