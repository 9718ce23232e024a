package run

import (
	"context"
	"fmt"
)

const newHelp = "Stage a new object with no committed versions"

type newCmd struct {
	ID         string `name:"id" short:"i" required:"" help:"The ID for the new object"`
	Alg        string `name:"alg" default:"sha512" help:"Digest algorithm for the object (sha512 or sha256)"`
	ContentDir string `name:"content-dir" default:"" help:"Name for the object's content directory ('content' if not set)"`
	Padding    int    `name:"padding" short:"p" default:"0" help:"Zero-padding width for the object's version numbers"`
}

func (cmd *newCmd) Run(ctx context.Context, env *runEnv) error {
	store, err := env.stagingStore()
	if err != nil {
		return err
	}
	staged, err := store.StageNew(ctx, cmd.ID, cmd.Alg, cmd.ContentDir, cmd.Padding)
	if err != nil {
		return err
	}
	defer staged.Close()
	if err := staged.Save(); err != nil {
		return err
	}
	fmt.Fprintln(env.stdout, "staged new object", cmd.ID, staged.Version().String())
	return nil
}
