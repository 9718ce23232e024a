package run

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"runtime"

	"github.com/ocflkit/ocfl/staging"
)

const (
	cpHelp = "Copy local files, or files within an object, into an object's staged version"
	mvHelp = "Move local files, or files within an object, into an object's staged version"
)

type cpCmd struct {
	ID       string   `name:"id" short:"i" required:"" help:"The ID for the object to update"`
	Internal bool     `name:"internal" help:"Source paths are logical paths within the object, not local files"`
	Src      []string `arg:"" name:"src" help:"Source file(s) or directory"`
	Dst      string   `arg:"" name:"dst" help:"Destination logical path in the object"`
}

func (cmd *cpCmd) Run(ctx context.Context, env *runEnv) error {
	return stageSources(ctx, env, cmd.ID, cmd.Src, cmd.Dst, cmd.Internal, false)
}

type mvCmd struct {
	ID       string   `name:"id" short:"i" required:"" help:"The ID for the object to update"`
	Internal bool     `name:"internal" help:"Source paths are logical paths within the object, not local files"`
	Src      []string `arg:"" name:"src" help:"Source file(s) or directory"`
	Dst      string   `arg:"" name:"dst" help:"Destination logical path in the object"`
}

func (cmd *mvCmd) Run(ctx context.Context, env *runEnv) error {
	return stageSources(ctx, env, cmd.ID, cmd.Src, cmd.Dst, cmd.Internal, true)
}

// stageSources adds each source to the object's staged version at dst. With
// move set, sources are removed after they are staged: local files are
// deleted from disk; internal sources are removed from the staged state.
func stageSources(ctx context.Context, env *runEnv, id string, srcs []string, dst string, internal bool, move bool) error {
	if len(srcs) == 0 {
		return errors.New("missing source path(s)")
	}
	store, err := env.stagingStore()
	if err != nil {
		return err
	}
	staged, err := store.Stage(ctx, id)
	if err != nil {
		return err
	}
	defer staged.Close()
	if internal {
		for _, src := range srcs {
			dstPath := dst
			if len(srcs) > 1 {
				dstPath = path.Join(dst, path.Base(src))
			}
			if move {
				err = staged.Rename(src, dstPath)
			} else {
				err = staged.CopyPath(src, dstPath)
			}
			if err != nil {
				return err
			}
		}
		return nil
	}
	for _, src := range srcs {
		if err := stageLocalSource(ctx, staged, src, dst, len(srcs) > 1); err != nil {
			return err
		}
		if move {
			if err := os.RemoveAll(src); err != nil {
				return fmt.Errorf("removing source after move: %w", err)
			}
		}
	}
	return nil
}

func stageLocalSource(ctx context.Context, staged *staging.StagedObject, src string, dst string, multi bool) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	dstPath := dst
	if multi || (info.IsDir() && staged.Exists(dst)) {
		dstPath = path.Join(dst, path.Base(src))
	}
	if info.IsDir() {
		return staged.AddDir(ctx, src, dstPath, runtime.NumCPU())
	}
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := staged.WriteFile(ctx, dstPath, f); err != nil {
		return err
	}
	return nil
}
