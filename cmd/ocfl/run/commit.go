package run

import (
	"context"
	"errors"
	"fmt"

	"github.com/ocflkit/ocfl"
)

const commitHelp = "Commit staged changes, or a local directory, as a new object version"

type commitCmd struct {
	ID      string `name:"id" short:"i" help:"The ID for the object to create or update"`
	Message string `name:"message" short:"m" help:"Message to include in the object version metadata"`
	Name    string `name:"name" short:"n" env:"OCFL_USER_NAME" help:"Username to include in the object version metadata"`
	Email   string `name:"email" short:"e" env:"OCFL_USER_EMAIL" help:"User email to include in the object version metadata"`
	Spec    string `name:"ocflv" default:"1.1" help:"OCFL spec for the new object"`
	Alg     string `name:"alg" default:"sha512" help:"Digest Algorithm used to digest content"`
	Path    string `arg:"" optional:"" name:"path" help:"Local directory with object state to commit. Without it, the object's staged changes are committed."`
}

func (cmd *commitCmd) Run(ctx context.Context, env *runEnv) error {
	user := env.user(cmd.Name, cmd.Email)
	if user.Name == "" {
		return errors.New("a user name is required to commit: use --name or set author_name in the config")
	}
	if cmd.Path == "" {
		// commit the object's staged changes
		store, err := env.stagingStore()
		if err != nil {
			return err
		}
		if !store.HasStaged(cmd.ID) {
			return fmt.Errorf("object %q has no staged changes to commit", cmd.ID)
		}
		staged, err := store.Stage(ctx, cmd.ID)
		if err != nil {
			return err
		}
		defer staged.Close()
		if err := staged.Commit(ctx, cmd.Message, user); err != nil {
			return err
		}
		fmt.Fprintln(env.stdout, "committed", cmd.ID, staged.Version().String())
		return nil
	}
	// commit a local directory as the object's complete next version state
	readFS := ocfl.DirFS(cmd.Path)
	obj, err := env.root.NewObject(ctx, cmd.ID)
	if err != nil {
		return err
	}
	stage, err := ocfl.StageDir(ctx, readFS, ".", cmd.Alg)
	if err != nil {
		return err
	}
	for name := range stage.State.PathMap() {
		fmt.Fprintln(env.stdout, name)
	}
	return obj.Commit(ctx, &ocfl.Commit{
		ID:      cmd.ID,
		Stage:   stage,
		Message: cmd.Message,
		User:    user,
		Spec:    ocfl.Spec(cmd.Spec),
	})
}
