package run

import (
	"context"
	"fmt"
	"io"
	"io/fs"

	"github.com/ocflkit/ocfl/digest"
)

const catHelp = "Print the contents of a file in an object version"

type catCmd struct {
	ID      string `name:"id" short:"i" required:"" help:"The ID of the object"`
	Version int    `name:"version" short:"v" default:"0" help:"The version number (unpadded) to read from. The default (0) reads from the latest version."`
	Fixity  bool   `name:"fixity" help:"Verify the file's digest while reading. The command fails if the content doesn't match the digest recorded in the object's manifest."`
	Path    string `arg:"" name:"path" help:"Logical path of the file to print"`
}

func (cmd *catCmd) Run(ctx context.Context, env *runEnv) error {
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
	dig := ver.State.GetDigest(cmd.Path)
	if dig == "" {
		return fmt.Errorf("%q: %w", cmd.Path, fs.ErrNotExist)
	}
	versionFS, err := obj.OpenVersion(ctx, cmd.Version)
	if err != nil {
		return err
	}
	f, err := versionFS.Open(cmd.Path)
	if err != nil {
		return err
	}
	defer f.Close()
	if !cmd.Fixity {
		_, err = io.Copy(env.stdout, f)
		return err
	}
	digester, err := digest.DefaultRegistry().NewDigester(inv.DigestAlgorithm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(io.MultiWriter(env.stdout, digester), f); err != nil {
		return err
	}
	if !digest.Equal(digester.String(), dig) {
		return fmt.Errorf("content of %q doesn't match its recorded %s value", cmd.Path, inv.DigestAlgorithm)
	}
	return nil
}
