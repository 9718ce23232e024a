package run

import (
	"context"
	"errors"
	"fmt"

	"github.com/ocflkit/ocfl"
	"github.com/ocflkit/ocfl/validation"
)

const validateHelp = "Validate the storage root or an object in it"

type validateCmd struct {
	ID          string   `name:"id" short:"i" optional:"" help:"The ID of the object to validate. Without it, the entire storage root is validated."`
	SkipDigests bool     `name:"skip-digests" help:"Skip digest verification of object content"`
	Allow       []string `name:"allow" help:"OCFL validation code(s) to ignore (e.g., W004). May be repeated."`
	Jobs        int      `name:"jobs" short:"j" default:"0" help:"Number of concurrent digest workers (0 for the number of CPUs)"`
}

func (cmd *validateCmd) Run(ctx context.Context, env *runEnv) error {
	opts := []ocfl.ObjectValidationOption{
		ocfl.ValidationDigestConcurrency(cmd.Jobs),
		ocfl.ValidationCallback(func(isWarn bool, err error) bool {
			printIssue(env, isWarn, err)
			return true
		}),
	}
	if cmd.SkipDigests {
		opts = append(opts, ocfl.ValidationSkipDigest())
	}
	if len(cmd.Allow) > 0 {
		opts = append(opts, ocfl.ValidationIgnoreCodes(cmd.Allow...))
	}
	if cmd.ID != "" {
		result := env.root.ValidateObject(ctx, cmd.ID, opts...)
		return summarize(env, cmd.ID, result.Err(), len(result.Warn()))
	}
	result := env.root.Validate(ctx, opts...)
	for _, err := range result.Fatal() {
		printIssue(env, false, err)
	}
	for _, err := range result.Warn() {
		printIssue(env, true, err)
	}
	label := fmt.Sprintf("storage root (%d objects)", result.NumObjects())
	return summarize(env, label, result.Err(), len(result.Warn()))
}

func printIssue(env *runEnv, isWarn bool, err error) {
	prefix := errStyle.Render("error")
	if isWarn {
		prefix = warnStyle.Render("warning")
	}
	var coded validation.ErrorCode
	if errors.As(err, &coded) {
		if ref := coded.OCFLRef(); ref != nil {
			prefix += " [" + ref.Code + "]"
		}
	}
	fmt.Fprintln(env.stderr, prefix, err.Error())
}

func summarize(env *runEnv, label string, err error, warnings int) error {
	switch {
	case err != nil:
		return fmt.Errorf("%s is not valid", label)
	case warnings > 0:
		fmt.Fprintf(env.stdout, "%s is valid (%d warnings)\n", label, warnings)
	default:
		fmt.Fprintln(env.stdout, label, "is valid")
	}
	return nil
}
