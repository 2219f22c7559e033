package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/opd-ai/montessoricomic/srv/config"
	"github.com/opd-ai/montessoricomic/srv/util"
	comicbot "github.com/opd-ai/montessoricomic/src"
)

// runner carries what every subcommand needs once flags are parsed.
type runner struct {
	cfg *config.Config
	log *zap.Logger
}

func (r *runner) setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.NArg() == 0 {
		// nothing to do, help will be shown
		return ctx, nil
	}

	var err error
	if r.cfg, err = config.Load(cmd.String("secrets")); err != nil {
		return ctx, fmt.Errorf("unable to prepare configuration: %w", err)
	}
	if r.log, err = util.NewLogger(r.cfg.LogLevel, r.cfg.LogMode); err != nil {
		return ctx, fmt.Errorf("unable to prepare logs: %w", err)
	}
	comicbot.SetLogger(r.log)
	r.log.Debug("Program started", zap.Strings("args", os.Args))
	return ctx, nil
}

func (r *runner) teardown(ctx context.Context, cmd *cli.Command) error {
	if r.log != nil {
		// stderr sync fails on some terminals, nothing useful to report
		_ = r.log.Sync()
	}
	return nil
}

func (r *runner) exitErr(ctx context.Context, _ *cli.Command, err error) {
	if r.log != nil {
		r.log.Error("Program ended with error", zap.Error(err))
	}
}

func (r *runner) claude() *comicbot.ClaudeClient {
	return comicbot.NewClaudeClient(r.cfg.AnthropicKey.Reveal(), r.cfg.ClaudeModel, r.cfg.MaxRetries)
}

func (r *runner) parser() *comicbot.StoryParser {
	return comicbot.NewStoryParser(r.cfg.TitleHints...)
}

// newRenderer returns a panel renderer constructor sharing one generator
// and one pacing limiter across all callers.
func (r *runner) newRenderer() (func(p comicbot.Progressor) comicbot.Renderer, error) {
	gen, err := comicbot.NewReplicateClient(r.cfg.ReplicateKey.Reveal())
	if err != nil {
		return nil, err
	}
	var limiter *rate.Limiter
	if r.cfg.ImageRateInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(r.cfg.ImageRateInterval), 1)
	}
	return func(p comicbot.Progressor) comicbot.Renderer {
		pr := comicbot.NewPanelRenderer(gen, p)
		pr.Limiter = limiter
		return pr
	}, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	r := &runner{}
	app := &cli.Command{
		Name:            "montessoricomic",
		Usage:           "generates Montessori-inspired comic books starring a child",
		HideHelpCommand: true,
		Before:          r.setup,
		After:           r.teardown,
		ExitErrHandler:  r.exitErr,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "secrets", Aliases: []string{"s"}, Value: ".env",
				Usage: "read API keys and settings from dotenv `FILE` when it exists"},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Runs the web interface",
				Action: r.serve,
			},
			{
				Name:   "generate",
				Usage:  "Generates one comic and writes it to a directory",
				Action: r.generate,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "theme", Aliases: []string{"t"}, Required: true,
						Usage: "educational `THEME` of the story"},
					&cli.IntFlag{Name: "option", Aliases: []string{"o"}, Value: 1,
						Usage: "story option `NUMBER` to illustrate, starting at 1"},
					&cli.StringFlag{Name: "photo", Aliases: []string{"p"},
						Usage: "PNG or JPEG `FILE` of the child"},
					&cli.StringFlag{Name: "out", Value: "comic",
						Usage: "output `DIRECTORY`"},
					&cli.BoolFlag{Name: "nopagenumbers", Aliases: []string{"np"},
						Usage: "leave page numbers out of Comic.pdf"},
				},
			},
		},
	}

	err := app.Run(ctx, os.Args)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
