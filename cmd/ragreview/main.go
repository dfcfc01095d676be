package main

import (
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/maxbolgarin/contem"
	"github.com/maxbolgarin/erro"
	"github.com/maxbolgarin/logze/v2"
	"github.com/maxbolgarin/ragreview/internal/app"
)

var (
	Version, Branch, Commit, BuildDate string
)

var (
	cli        = kingpin.New("ragreview", "Retrieval augmented code review for merge requests")
	configPath = cli.Flag("config", "path to config file").Short('c').Envar("RAGREVIEW_CONFIG").String()
	debug      = cli.Flag("debug", "enable debug logs").Bool()

	serveCmd = cli.Command("serve", "run the webhook and index API server").Default()

	reviewCmd     = cli.Command("review", "review merge requests of a project once")
	reviewProject = reviewCmd.Flag("project", "project path, e.g. group/service").Required().String()
	reviewMR      = reviewCmd.Flag("mr", "merge request number, every open one when omitted").Int()

	indexCmd        = cli.Command("index", "build the retrieval index of a repository")
	indexProject    = indexCmd.Flag("project", "namespace of the repository").String()
	indexRepository = indexCmd.Flag("repository", "repository path").Required().String()
	indexBranch     = indexCmd.Flag("branch", "branch to index, default branch when empty").String()

	mcpCmd = cli.Command("mcp", "serve retrieval tools over MCP stdio")
)

func main() {
	cli.Version(Version)
	command := kingpin.MustParse(cli.Parse(os.Args[1:]))

	var err error
	ctx := contem.New(contem.WithLogger(logze.DefaultPtr()), contem.Exit(&err))
	defer ctx.Shutdown()

	err = run(ctx, command)
	if err != nil {
		logze.DefaultPtr().Error("cannot run", "error", err)
	}
}

func run(ctx contem.Context, command string) error {
	level := logze.LevelInfo
	if *debug {
		level = logze.LevelDebug
	}
	logze.Init(logze.C().WithConsole().WithLevel(level))
	logze.Info("starting ragreview", "version", Version, "branch", Branch, "commit", Commit, "build_date", BuildDate, "command", command)

	cfg, err := app.LoadConfig(*configPath)
	if err != nil {
		return erro.Wrap(err, "load config")
	}

	rr, err := app.New(ctx, cfg)
	if err != nil {
		return erro.Wrap(err, "new app")
	}

	switch command {
	case serveCmd.FullCommand():
		return rr.Serve(ctx)
	case reviewCmd.FullCommand():
		return rr.Review(ctx, *reviewProject, *reviewMR)
	case indexCmd.FullCommand():
		return rr.Index(ctx, *indexProject, *indexRepository, *indexBranch)
	case mcpCmd.FullCommand():
		return rr.ServeMCP(Version)
	}

	return erro.New("unknown command: %s", command)
}
