package run

import (
	"context"
	"fmt"
	"io/fs"
	"time"

	"github.com/ocflkit/ocfl"
	"github.com/ocflkit/ocfl/cmd/ocfl/internal/diff"
)

const showHelp = "Show an object version's metadata and changes"

type showCmd struct {
	ID      string `name:"id" short:"i" required:"" help:"The ID of the object"`
	Version int    `name:"version" short:"v" default:"0" help:"The version number (unpadded) to show. The default (0) shows the latest version."`
}

func (cmd *showCmd) Run(ctx context.Context, env *runEnv) error {
	obj, err := env.root.NewObject(ctx, cmd.ID)
	if err != nil {
		return fmt.Errorf("reading object id: %q: %w", cmd.ID, err)
	}
	if !obj.Exists() {
		return fmt.Errorf("object %q not found at root path %s: %w", cmd.ID, obj.Path(), fs.ErrNotExist)
	}
	inv := obj.Inventory()
	ver := inv.Version(cmd.Version)
	if ver == nil {
		return fmt.Errorf("version %d not found in object %q", cmd.Version, cmd.ID)
	}
	vnum := inv.Head
	if cmd.Version != 0 {
		vnum = ocfl.V(cmd.Version, inv.Head.Padding())
	}
	fmt.Fprintln(env.stdout, headStyle.Render(cmd.ID), vnum.String())
	fmt.Fprintln(env.stdout, "created:", ver.Created.Format(time.RFC3339))
	if ver.User != nil {
		line := ver.User.Name
		if ver.User.Address != "" {
			line += " <" + ver.User.Address + ">"
		}
		fmt.Fprintln(env.stdout, "user:", line)
	}
	if ver.Message != "" {
		fmt.Fprintln(env.stdout, "message:", ver.Message)
	}
	// changes relative to the previous version (everything is new in v1)
	prevPaths := ocfl.PathMap{}
	if prev, err := vnum.Prev(); err == nil {
		if prevVer := inv.Version(prev.Num()); prevVer != nil {
			prevPaths = prevVer.State.PathMap()
		}
	}
	result, err := diff.Diff(prevPaths, ver.State.PathMap())
	if err != nil {
		return err
	}
	if !result.Empty() {
		fmt.Fprintln(env.stdout)
		fmt.Fprint(env.stdout, result.String())
	}
	return nil
}
