package run

import (
	"context"
	"fmt"
	"io/fs"

	"github.com/ocflkit/ocfl"
)

const upgradeHelp = "Upgrade the storage root or an object to a later OCFL specification"

type upgradeCmd struct {
	ID   string `name:"id" short:"i" optional:"" help:"The ID of the object to upgrade. Without it, the storage root declaration is upgraded."`
	Spec string `name:"ocflv" default:"1.1" help:"The OCFL specification version to upgrade to"`
}

func (cmd *upgradeCmd) Run(ctx context.Context, env *runEnv) error {
	newSpec := ocfl.Spec(cmd.Spec)
	if cmd.ID == "" {
		if err := env.root.Upgrade(ctx, newSpec); err != nil {
			return err
		}
		fmt.Fprintln(env.stdout, "storage root now declares OCFL", "v"+cmd.Spec)
		return nil
	}
	obj, err := env.root.NewObject(ctx, cmd.ID)
	if err != nil {
		return fmt.Errorf("reading object id: %q: %w", cmd.ID, err)
	}
	if !obj.Exists() {
		return fmt.Errorf("object %q not found at root path %s: %w", cmd.ID, obj.Path(), fs.ErrNotExist)
	}
	if err := obj.Upgrade(ctx, newSpec); err != nil {
		return err
	}
	fmt.Fprintln(env.stdout, cmd.ID, "now declares OCFL", "v"+cmd.Spec)
	return nil
}
