package run

import (
	"context"
	"fmt"
	"sort"

	"github.com/ocflkit/ocfl/cmd/ocfl/internal/diff"
)

const statusHelp = "Show staged changes for an object, or list objects with staged changes"

type statusCmd struct {
	ID string `name:"id" short:"i" optional:"" help:"The ID of the object to show staged changes for"`
}

func (cmd *statusCmd) Run(ctx context.Context, env *runEnv) error {
	store, err := env.stagingStore()
	if err != nil {
		return err
	}
	if cmd.ID == "" {
		// list objects with staged changes
		var ids []string
		for id, err := range store.StagedIDs(ctx) {
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Fprintln(env.stdout, id)
		}
		return nil
	}
	if !store.HasStaged(cmd.ID) {
		fmt.Fprintln(env.stdout, "no staged changes for", cmd.ID)
		return nil
	}
	staged, err := store.Stage(ctx, cmd.ID)
	if err != nil {
		return err
	}
	defer staged.Close()
	fmt.Fprintln(env.stdout, headStyle.Render(cmd.ID), dimStyle.Render("staging "+staged.Version().String()))
	result, err := diff.Diff(staged.BaseState().PathMap(), staged.State().PathMap())
	if err != nil {
		return err
	}
	if result.Empty() {
		fmt.Fprintln(env.stdout, "no changes")
		return nil
	}
	for _, n := range result.Added {
		fmt.Fprintln(env.stdout, addStyle.Render("+"), n)
	}
	for _, n := range result.Removed {
		fmt.Fprintln(env.stdout, removeStyle.Render("-"), n)
	}
	for _, n := range result.Modified {
		fmt.Fprintln(env.stdout, modStyle.Render("~"), n)
	}
	return nil
}
