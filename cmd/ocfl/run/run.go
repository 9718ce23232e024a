package run

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	awsS3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ocflkit/ocfl"
	ocflfs "github.com/ocflkit/ocfl/fs"
	"github.com/ocflkit/ocfl/fs/local"
	"github.com/ocflkit/ocfl/fs/s3"
	"github.com/ocflkit/ocfl/logging"
	"github.com/ocflkit/ocfl/staging"
)

var cli struct {
	ConfigFile string `name:"config-file" env:"OCFL_CONFIG" help:"Path to a TOML configuration file."`
	RepoName   string `name:"repo" env:"OCFL_REPO" help:"Name of a repository table in the configuration file."`
	RootConfig string `name:"root" short:"r" env:"OCFL_ROOT" help:"The prefix/directory of the OCFL storage root used for the command"`
	Debug      bool   `name:"debug" help:"Enable debug log messages"`
	Quiet      bool   `name:"quiet" short:"q" help:"Suppress log messages"`

	InitRoot initRootCmd `cmd:"init-root" aliases:"init" help:"${init_root_help}"`
	Commit   commitCmd   `cmd:"commit" help:"${commit_help}"`
	LS       lsCmd       `cmd:"ls" help:"${ls_help}"`
	Export   exportCmd   `cmd:"export" help:"${export_help}"`
	Diff     DiffCmd     `cmd:"diff" help:"${diff_help}"`
	New      newCmd      `cmd:"new" help:"${new_help}"`
	CP       cpCmd       `cmd:"cp" help:"${cp_help}"`
	MV       mvCmd       `cmd:"mv" help:"${mv_help}"`
	RM       rmCmd       `cmd:"rm" help:"${rm_help}"`
	Reset    resetCmd    `cmd:"reset" help:"${reset_help}"`
	Status   statusCmd   `cmd:"status" help:"${status_help}"`
	Log      logCmd      `cmd:"log" help:"${log_help}"`
	Show     showCmd     `cmd:"show" help:"${show_help}"`
	Cat      catCmd      `cmd:"cat" help:"${cat_help}"`
	Validate validateCmd `cmd:"validate" help:"${validate_help}"`
	Info     infoCmd     `cmd:"info" help:"${info_help}"`
	Upgrade  upgradeCmd  `cmd:"upgrade" help:"${upgrade_help}"`
	Purge    purgeCmd    `cmd:"purge" help:"${purge_help}"`
	Config   configCmd   `cmd:"config" help:"${config_help}"`
}

// runEnv holds the resolved context shared by all commands: the storage
// root, its location string, merged configuration, and output streams.
type runEnv struct {
	root       *ocfl.Root
	location   string // the root's resolved location (path or s3 url)
	settings   repoSettings
	configFile string
	stdin      io.Reader
	stdout     io.Writer
	stderr     io.Writer
	logger     *slog.Logger
}

// stagingStore returns the staging store for the environment's root.
func (env *runEnv) stagingStore() (*staging.Store, error) {
	opts := []staging.Option{staging.WithLogger(env.logger)}
	if env.settings.StagingRoot != "" {
		opts = append(opts, staging.WithBaseDir(env.settings.StagingRoot))
	}
	return staging.NewStore(env.root, env.location, opts...)
}

// user returns the author identity for new object versions, from flag values
// if set, otherwise from the configuration.
func (env *runEnv) user(name, email string) ocfl.User {
	u := ocfl.User{Name: env.settings.AuthorName, Address: env.settings.AuthorAddress}
	if name != "" {
		u.Name = name
	}
	if email != "" {
		u.Address = email
	}
	return u
}

// envRunner is implemented by all subcommands.
type envRunner interface {
	Run(ctx context.Context, env *runEnv) error
}

// usageErr wraps a command line usage error so the CLI can exit with the
// conventional usage exit code.
type usageErr struct{ error }

// ExitCode maps an error returned by [CLI] to the process exit code: 2 for
// usage errors, 130 for interrupts, and 1 otherwise.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.As(err, &usageErr{}):
		return 2
	case errors.Is(err, context.Canceled):
		return 130
	default:
		return 1
	}
}

// zeroCLI is a copy of cli's initial state, used to reset flag values
// between CLI invocations in the same process.
var zeroCLI = cli

func CLI(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cli = zeroCLI
	parser, err := kong.New(&cli, kong.Name("ocfl"),
		kong.Writers(stdout, stderr),
		kong.Description("tools for working with OCFL repositories"),
		kong.Vars{
			"commit_help":    commitHelp,
			"diff_help":      diffHelp,
			"export_help":    exportHelp,
			"init_root_help": initRootHelp,
			"ls_help":        lsHelp,
			"new_help":       newHelp,
			"cp_help":        cpHelp,
			"mv_help":        mvHelp,
			"rm_help":        rmHelp,
			"reset_help":     resetHelp,
			"status_help":    statusHelp,
			"log_help":       logHelp,
			"show_help":      showHelp,
			"cat_help":       catHelp,
			"validate_help":  validateHelp,
			"info_help":      infoHelp,
			"upgrade_help":   upgradeHelp,
			"purge_help":     purgeHelp,
			"config_help":    configHelp,
		},
		kong.ConfigureHelp(kong.HelpOptions{
			Summary: true,
			Compact: true,
		}),
	)
	if err != nil {
		fmt.Fprintln(stderr, "in kong configuration:", err.Error())
		return err
	}
	kongCtx, err := parser.Parse(args[1:])
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		var parseErr *kong.ParseError
		if errors.As(err, &parseErr) {
			parseErr.Context.PrintUsage(true)
			return usageErr{err}
		}
		return err
	}
	switch {
	case cli.Debug:
		logging.SetDefaultLevel(slog.LevelDebug)
	case cli.Quiet:
		logging.SetDefaultLevel(slog.LevelError)
	}
	settings, err := loadSettings(cli.ConfigFile, cli.RepoName)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return err
	}
	settings = settings.merge(repoSettings{Root: cli.RootConfig})
	env := &runEnv{
		location:   settings.location(),
		settings:   settings,
		configFile: cli.ConfigFile,
		stdout:     stdout,
		stderr:     stderr,
		logger:     logging.DefaultLogger(),
	}
	var runner envRunner
	command, _, _ := strings.Cut(kongCtx.Command(), " ")
	switch command {
	case "init-root", "init":
		runner = &cli.InitRoot
	case "commit":
		runner = &cli.Commit
	case "ls":
		runner = &cli.LS
	case "export":
		runner = &cli.Export
	case "diff":
		runner = &cli.Diff
	case "new":
		runner = &cli.New
	case "cp":
		runner = &cli.CP
	case "mv":
		runner = &cli.MV
	case "rm":
		runner = &cli.RM
	case "reset":
		runner = &cli.Reset
	case "status":
		runner = &cli.Status
	case "log":
		runner = &cli.Log
	case "show":
		runner = &cli.Show
	case "cat":
		runner = &cli.Cat
	case "validate":
		runner = &cli.Validate
	case "info":
		runner = &cli.Info
	case "upgrade":
		runner = &cli.Upgrade
	case "purge":
		runner = &cli.Purge
	case "config":
		runner = &cli.Config
	default:
		kongCtx.PrintUsage(true)
		err = fmt.Errorf("unknown command: %s", kongCtx.Command())
		fmt.Fprintln(stderr, err.Error())
		return usageErr{err}
	}
	// init-root and config run without an existing root
	switch command {
	case "init-root", "init", "config":
		if err := runner.Run(ctx, env); err != nil {
			fmt.Fprintln(stderr, err.Error())
			return err
		}
		return nil
	}
	fsys, dir, err := parseRootConfig(ctx, env.location, settings)
	if err != nil {
		fmt.Fprintln(stderr, "error in OCFL root configuration:", err.Error())
		return err
	}
	root, err := ocfl.NewRoot(ctx, fsys, dir)
	if err != nil {
		rootcnf := rootConfig(fsys, dir)
		fmt.Fprintln(stderr, "error reading OCFL storage root:", rootcnf+":", err.Error())
		return err
	}
	env.root = root
	if err := runner.Run(ctx, env); err != nil {
		fmt.Fprintln(stderr, err.Error())
		return err
	}
	return nil
}

// parseRootConfig resolves a root location string to a backend FS and a
// directory in it. S3 client options (region, profile, endpoint) come from
// settings.
func parseRootConfig(ctx context.Context, name string, settings repoSettings) (ocflfs.WriteFS, string, error) {
	if name == "" {
		return nil, "", fmt.Errorf("the storage root location was not given")
	}
	rl, err := url.Parse(name)
	if err != nil {
		return nil, "", err
	}
	switch rl.Scheme {
	case "s3":
		var loadOpts []func(*awsConfig.LoadOptions) error
		if settings.Region != "" {
			loadOpts = append(loadOpts, awsConfig.WithRegion(settings.Region))
		}
		if settings.Profile != "" {
			loadOpts = append(loadOpts, awsConfig.WithSharedConfigProfile(settings.Profile))
		}
		cfg, err := awsConfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, "", err
		}
		var s3Opts []func(*awsS3.Options)
		if settings.Endpoint != "" {
			endpoint := settings.Endpoint
			s3Opts = append(s3Opts, func(o *awsS3.Options) {
				o.UsePathStyle = true
				o.BaseEndpoint = &endpoint
			})
		}
		fsys := &s3.BucketFS{
			S3:     awsS3.NewFromConfig(cfg, s3Opts...),
			Bucket: rl.Host,
			Logger: logging.DefaultLogger(),
		}
		return fsys, strings.TrimPrefix(rl.Path, "/"), nil
	default:
		absPath, err := filepath.Abs(name)
		if err != nil {
			return nil, "", err
		}
		fsys, err := local.NewFS(absPath)
		if err != nil {
			return nil, "", err
		}
		return fsys, ".", nil
	}
}

func rootConfig(fsys ocflfs.WriteFS, dir string) string {
	switch fsys := fsys.(type) {
	case *s3.BucketFS:
		return "s3://" + path.Join(fsys.Bucket, dir)
	case *local.FS:
		return fsys.Root()
	default:
		panic(errors.New("unsupported backend type"))
	}
}
