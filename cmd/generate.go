package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/opd-ai/montessoricomic/bookcompiler"
	comicbot "github.com/opd-ai/montessoricomic/src"
)

// logProgress reports pipeline progress through the program log.
type logProgress struct {
	log *zap.Logger
}

func (p logProgress) UpdateOutput(message string) {
	p.log.Info(message)
}

func (r *runner) generate(ctx context.Context, cmd *cli.Command) error {
	var photo *comicbot.Photo
	if name := cmd.String("photo"); name != "" {
		f, err := os.Open(name)
		if err != nil {
			return fmt.Errorf("opening photo: %w", err)
		}
		photo, err = comicbot.DecodePhoto(name, f)
		f.Close()
		if err != nil {
			return err
		}
	}

	newRenderer, err := r.newRenderer()
	if err != nil {
		return fmt.Errorf("preparing image generator: %w", err)
	}
	progress := logProgress{log: r.log.Named("progress")}

	comic, err := comicbot.GenerateComic(ctx, r.claude(), r.parser(), newRenderer(progress),
		cmd.String("theme"), cmd.Int("option")-1, photo, progress)
	if comic != nil {
		out := cmd.String("out")
		if serr := comicbot.SaveToFiles(comic, out); serr != nil {
			r.log.Error("Saving comic", zap.String("dir", out), zap.Error(serr))
			if err == nil {
				err = serr
			}
		} else {
			r.log.Info("Comic saved", zap.String("dir", out), zap.Int("panels", len(comic.Panels)))
		}
		if len(comic.Prompts) > 0 {
			if perr := writePDF(comic, filepath.Join(out, "Comic.pdf"), !cmd.Bool("nopagenumbers")); perr != nil {
				r.log.Error("Writing PDF", zap.Error(perr))
				if err == nil {
					err = perr
				}
			}
		}
	}
	return err
}

func writePDF(comic *comicbot.Comic, name string, pageNumbers bool) (err error) {
	f, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("creating %s: %w", name, err)
	}
	defer func() {
		err = multierr.Append(err, f.Close())
	}()
	bc := bookcompiler.NewBookCompiler()
	bc.SetPageNumbers(pageNumbers)
	return bc.Compile(comic, f)
}
