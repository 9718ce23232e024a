package run

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
)

const purgeHelp = "Permanently remove an object and its staged changes"

type purgeCmd struct {
	ID  string `name:"id" short:"i" required:"" help:"The ID of the object to remove"`
	Yes bool   `name:"yes" help:"Skip the interactive confirmation prompt"`
}

func (cmd *purgeCmd) Run(ctx context.Context, env *runEnv) error {
	store, err := env.stagingStore()
	if err != nil {
		return err
	}
	confirm := func(objPath string) bool {
		if cmd.Yes {
			return true
		}
		fmt.Fprintf(env.stdout, "permanently remove %q (%s)? [y/N]: ", cmd.ID, objPath)
		stdin := env.stdin
		if stdin == nil {
			stdin = os.Stdin
		}
		line, err := bufio.NewReader(stdin).ReadString('\n')
		if err != nil {
			return false
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes"
	}
	if err := store.Purge(ctx, cmd.ID, confirm); err != nil {
		return err
	}
	fmt.Fprintln(env.stdout, "removed", cmd.ID)
	return nil
}
