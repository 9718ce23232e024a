package run

import (
	"context"
	"fmt"
	"io/fs"
)

const infoHelp = "Summarize a storage root or an object"

type infoCmd struct {
	ID    string `name:"id" short:"i" optional:"" help:"The ID of the object to summarize. Without it, the storage root is summarized."`
	Count bool   `name:"count" help:"Count objects in the storage root (walks the entire root)"`
}

func (cmd *infoCmd) Run(ctx context.Context, env *runEnv) error {
	if cmd.ID == "" {
		fmt.Fprintln(env.stdout, "storage root:", env.location)
		fmt.Fprintln(env.stdout, "OCFL version:", env.root.Spec())
		if l := env.root.LayoutName(); l != "" {
			fmt.Fprintln(env.stdout, "layout:", l)
		}
		if d := env.root.Description(); d != "" {
			fmt.Fprintln(env.stdout, "description:", d)
		}
		if cmd.Count {
			var count int
			for _, err := range env.root.ObjectDeclarations(ctx) {
				if err != nil {
					return err
				}
				count++
			}
			fmt.Fprintln(env.stdout, "objects:", count)
		}
		return nil
	}
	obj, err := env.root.NewObject(ctx, cmd.ID)
	if err != nil {
		return fmt.Errorf("reading object id: %q: %w", cmd.ID, err)
	}
	if !obj.Exists() {
		return fmt.Errorf("object %q not found at root path %s: %w", cmd.ID, obj.Path(), fs.ErrNotExist)
	}
	inv := obj.Inventory()
	fmt.Fprintln(env.stdout, "id:", inv.ID)
	fmt.Fprintln(env.stdout, "path:", obj.Path())
	fmt.Fprintln(env.stdout, "OCFL version:", inv.Spec())
	fmt.Fprintln(env.stdout, "digest algorithm:", inv.DigestAlgorithm)
	fmt.Fprintln(env.stdout, "head:", inv.Head)
	fmt.Fprintln(env.stdout, "versions:", inv.Head.Num())
	fmt.Fprintln(env.stdout, "content directory:", inv.EffectiveContentDirectory())
	fmt.Fprintln(env.stdout, "manifest entries:", len(inv.Manifest))
	return nil
}
