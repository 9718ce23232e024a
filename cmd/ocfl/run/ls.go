package run

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"github.com/ocflkit/ocfl"
	"github.com/ocflkit/ocfl/internal/natsort"
)

const lsHelp = "List objects in a storage root or contents of an object version"

type lsCmd struct {
	ID          string `name:"id" short:"i" optional:"" help:"The id of object to list contents from."`
	Version     int    `name:"version" short:"v" default:"0" help:"The object version number (unpadded) to list contents from. The default (0) lists the latest version."`
	WithDigests bool   `name:"digests" short:"d" help:"Show digests when listing contents of an object version."`
	Long        bool   `name:"long" short:"l" help:"Show the version and date each file was last updated."`
	DirMode     bool   `name:"dirs" short:"D" help:"List directory contents instead of all logical paths."`
	Dir         string `arg:"" optional:"" name:"path" help:"Logical path to list (a directory with --dirs)."`
	Lexical     bool   `name:"lexical" help:"Sort object contents lexically instead of in natural order."`
}

func (cmd *lsCmd) Run(ctx context.Context, env *runEnv) error {
	if cmd.ID == "" {
		// list object ids in root, in the order the scan yields them
		for obj, err := range env.root.Objects(ctx) {
			if err != nil {
				return fmt.Errorf("while listing objects in root: %w", err)
			}
			fmt.Fprintln(env.stdout, obj.Inventory().ID)
		}
		return nil
	}
	// list contents of an object
	obj, err := env.root.NewObject(ctx, cmd.ID)
	if err != nil {
		return fmt.Errorf("listing contents from object %q: %w", cmd.ID, err)
	}
	if !obj.Exists() {
		// the object doesn't exist at the expected location
		err := fmt.Errorf("object %q not found at root path %s: %w", cmd.ID, obj.Path(), fs.ErrNotExist)
		return err
	}
	var infos []ocfl.PathInfo
	for info, err := range obj.ListLogicalPaths(cmd.Version, cmd.Dir, cmd.DirMode) {
		if err != nil {
			return err
		}
		infos = append(infos, info)
	}
	less := func(i, j int) bool { return natsort.Less(infos[i].LogicalPath, infos[j].LogicalPath) }
	if cmd.Lexical {
		less = func(i, j int) bool { return infos[i].LogicalPath < infos[j].LogicalPath }
	}
	sort.Slice(infos, less)
	for _, info := range infos {
		name := info.LogicalPath
		if info.IsDir {
			name += "/"
		}
		switch {
		case cmd.Long && cmd.WithDigests:
			fmt.Fprintln(env.stdout, info.LastUpdatedVersion, dimStyle.Render(info.LastUpdatedTime.Format(time.DateOnly)), dimStyle.Render(info.Digest), name)
		case cmd.Long:
			fmt.Fprintln(env.stdout, info.LastUpdatedVersion, dimStyle.Render(info.LastUpdatedTime.Format(time.DateOnly)), name)
		case cmd.WithDigests:
			fmt.Fprintln(env.stdout, dimStyle.Render(info.Digest), name)
		default:
			fmt.Fprintln(env.stdout, name)
		}
	}
	return nil
}
