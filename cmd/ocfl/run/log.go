package run

import (
	"context"
	"fmt"
	"io/fs"
	"time"

	"github.com/ocflkit/ocfl"
)

const logHelp = "Show an object's version history"

type logCmd struct {
	ID      string `name:"id" short:"i" required:"" help:"The ID of the object"`
	Path    string `arg:"" optional:"" name:"path" help:"Only show versions that added, changed, or removed this logical path"`
	Reverse bool   `name:"reverse" help:"Show versions oldest-first"`
}

func (cmd *logCmd) Run(ctx context.Context, env *runEnv) error {
	obj, err := env.root.NewObject(ctx, cmd.ID)
	if err != nil {
		return fmt.Errorf("reading object id: %q: %w", cmd.ID, err)
	}
	if !obj.Exists() {
		return fmt.Errorf("object %q not found at root path %s: %w", cmd.ID, obj.Path(), fs.ErrNotExist)
	}
	inv := obj.Inventory()
	nums := inv.Head.Lineage()
	if !cmd.Reverse {
		for i, j := 0, len(nums)-1; i < j; i, j = i+1, j-1 {
			nums[i], nums[j] = nums[j], nums[i]
		}
	}
	for _, vnum := range nums {
		ver := inv.Version(vnum.Num())
		if ver == nil {
			continue
		}
		if cmd.Path != "" && !versionTouchedPath(inv, vnum, cmd.Path) {
			continue
		}
		fmt.Fprintln(env.stdout, headStyle.Render(vnum.String()), dimStyle.Render(ver.Created.Format(time.RFC3339)))
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
		fmt.Fprintln(env.stdout)
	}
	return nil
}

// versionTouchedPath returns true if the version added, changed, or removed
// the logical path relative to the previous version.
func versionTouchedPath(inv *ocfl.Inventory, vnum ocfl.VNum, lpath string) bool {
	ver := inv.Version(vnum.Num())
	if ver == nil {
		return false
	}
	var prevDigest string
	if prev, err := vnum.Prev(); err == nil {
		if prevVer := inv.Version(prev.Num()); prevVer != nil {
			prevDigest = prevVer.State.GetDigest(lpath)
		}
	}
	return ver.State.GetDigest(lpath) != prevDigest
}
