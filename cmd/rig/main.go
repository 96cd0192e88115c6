package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	kongtoml "github.com/alecthomas/kong-toml"
	"github.com/kballard/go-shellquote"

	"github.com/alecthomas/rig"
	"github.com/alecthomas/rig/internal/scan"
	"github.com/alecthomas/rig/providers/logging"
)

var cli struct {
	Version kong.VersionFlag   `help:"Print the version and exit."`
	Chdir   kong.ChangeDirFlag `help:"Change to this directory before running." placeholder:"DIR" short:"C"`
	Config  kong.ConfigFlag    `help:"Load default flag values from a TOML file." placeholder:"FILE"`
	Debug   bool               `help:"Enable debug logging."`
	Log     logging.Config     `embed:"" prefix:"log-"`
	Tags    []string           `help:"Tags to enable during type analysis (will also be read from $GOFLAGS)." placeholder:"TAG"`

	Plan     PlanCmd     `cmd:"" help:"Print the construction plan for each root."`
	Graph    GraphCmd    `cmd:"" help:"Dump the scanned dependency universe."`
	Generate GenerateCmd `cmd:"" help:"Generate a build function for each root."`
	Serve    ServeCmd    `cmd:"" help:"Serve an interactive plan explorer over HTTP."`
}

func main() {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		version = info.Main.Version
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	kctx := kong.Parse(&cli,
		kong.Description("rig plans and generates dependency construction for //rig: annotated packages."),
		kong.Configuration(kongtoml.Loader, "~/.config/rig/rig.toml", ".rig.toml"),
		kong.Vars{"version": version},
		kong.BindTo(ctx, (*context.Context)(nil)),
	)
	logConfig := cli.Log
	if cli.Debug {
		logConfig.Level = slog.LevelDebug
	}
	err := kctx.Run(logging.New(logConfig))
	kctx.FatalIfErrorf(err)
}

// analyseFlags are shared by every subcommand that scans packages.
type analyseFlags struct {
	Root     []string `help:"Plan only these roots instead of every annotated root." placeholder:"NAME" short:"r"`
	Dest     string   `help:"Destination package directory to plan for." arg:"" type:"existingdir"`
	Patterns []string `help:"Additional package patterns to scan." arg:"" optional:""`
}

func (f *analyseFlags) analyse(ctx context.Context) (*scan.Graph, error) {
	options := []scan.Option{
		scan.WithRoots(f.Root...),
		scan.WithPatterns(f.Patterns...),
		scan.WithTags(append(cli.Tags, parseGoTags()...)...),
	}
	if cli.Debug {
		options = append(options, scan.WithDebug(true))
	}
	return scan.Analyse(ctx, f.Dest, options...)
}

// keyNode wraps a node reference given on the command line. Planning policies
// only consult the key, so a bare reference suffices.
type keyNode string

func (k keyNode) NodeKey() rig.Key { return rig.Key(k) }
func (k keyNode) String() string   { return string(k) }

// resolveRef maps a command line reference to a node in the universe. A
// provider name resolves to the provider itself; anything else is used
// verbatim, eg. an externally provided type.
func resolveRef(graph *scan.Graph, ref string) rig.Node {
	if provider, ok := graph.ProviderByName(ref); ok {
		return provider
	}
	return keyNode(ref)
}

func parseGoTags() []string {
	goFlags := os.Getenv("GOFLAGS")
	words, err := shellquote.Split(goFlags)
	if err != nil {
		return nil
	}
	tags := []string{}
	for _, word := range words {
		if strings.HasPrefix(word, "-tags=") {
			tags = append(tags, strings.Split(word[6:], ",")...)
		} else if strings.HasPrefix(word, "--tags=") {
			tags = append(tags, strings.Split(word[7:], ",")...)
		}
	}
	return tags
}
