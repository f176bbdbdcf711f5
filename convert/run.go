// Package convert drives book translation: it finds EPUB files, runs their
// content through the markup translation pipeline and writes translated books.
package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/maruel/natural"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"ept/llm"
	"ept/state"
	"ept/tokenizer"
	"ept/translate"
)

func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("translate")

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		return errors.New("no input source has been specified")
	}
	src, err = filepath.Abs(src)
	if err != nil {
		return err
	}

	dst := cmd.Args().Get(1)
	if len(dst) == 0 {
		if dst, err = os.Getwd(); err != nil {
			return fmt.Errorf("unable to get working directory: %w", err)
		}
	}
	if dst, err = filepath.Abs(dst); err != nil {
		return err
	}
	if cmd.Args().Len() > 2 {
		log.Warn("Mailformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[2:]))
	}

	env.NoDirs, env.Overwrite = cmd.Bool("nodirs"), cmd.Bool("overwrite")

	if env.Cfg.Translation.SourceLanguage != "" {
		if env.Source, err = language.Parse(env.Cfg.Translation.SourceLanguage); err != nil {
			return fmt.Errorf("unable to parse source language %q: %w", env.Cfg.Translation.SourceLanguage, err)
		}
	}
	if env.Target, err = language.Parse(env.Cfg.Translation.TargetLanguage); err != nil {
		return fmt.Errorf("unable to parse target language %q: %w", env.Cfg.Translation.TargetLanguage, err)
	}

	tr, err := newPipeline(env, log)
	if err != nil {
		return err
	}

	log.Info("Processing starting",
		zap.String("source", src),
		zap.String("destination", dst),
		zap.Stringer("language", env.Target))
	defer func(start time.Time) {
		log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	return process(ctx, src, dst, tr, log)
}

// newPipeline assembles the translation pipeline from configuration.
func newPipeline(env *state.LocalEnv, log *zap.Logger) (*pipeline, error) {
	enc, err := tokenizer.New(env.Cfg.Translation.Encoding)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize tokenizer: %w", err)
	}

	client := llm.New(llm.Options{
		APIURL:         env.Cfg.API.URL,
		APIKey:         string(env.Cfg.API.Key),
		Model:          env.Cfg.API.Model,
		Timeout:        env.Cfg.API.APITimeout(),
		SourceLanguage: languageName(env.Source),
		TargetLanguage: languageName(env.Target),
	}, log.Named("llm"))

	return &pipeline{
		env:        env,
		translator: translate.NewTranslator(enc, client.Translate, env.Cfg.Translation.MaxChunkTokens, log),
		kind:       env.Cfg.Translation.SubmitMode,
	}, nil
}

// languageName renders a tag the way prompts expect it, empty for the
// undetermined tag.
func languageName(tag language.Tag) string {
	if tag == (language.Tag{}) {
		return ""
	}
	return tag.String()
}

// process determines the input type (directory or single book) and processes
// accordingly.
func process(ctx context.Context, src, dst string, tr *pipeline, log *zap.Logger) error {
	fi, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("input source was not found (%s): %w", src, err)
	}

	if fi.Mode().IsDir() {
		return processDir(ctx, src, dst, tr, log)
	}
	if !fi.Mode().IsRegular() {
		return fmt.Errorf("unexpected path mode for (%s)", src)
	}

	book, err := isBookFile(src)
	if err != nil {
		return fmt.Errorf("unable to check file type: %w", err)
	}
	if !book {
		return fmt.Errorf("input was not recognized as EPUB book (%s)", src)
	}
	return processBook(ctx, src, filepath.Base(src), dst, tr, log)
}

// processDir walks directory tree finding books and processes them in stable
// human order.
func processDir(ctx context.Context, dir, dst string, tr *pipeline, log *zap.Logger) error {
	var books []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err != nil {
			log.Warn("Skipping path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		book, err := isBookFile(path)
		if err != nil {
			log.Warn("Skipping file", zap.String("file", path), zap.Error(err))
			return nil
		}
		if !book {
			log.Debug("Skipping file, not recognized as book", zap.String("file", path))
			return nil
		}
		books = append(books, path)
		return nil
	})
	if err != nil {
		return err
	}

	if len(books) == 0 {
		log.Debug("Nothing to process", zap.String("dir", dir))
		return nil
	}
	sort.Sort(natural.StringSlice(books))

	for _, path := range books {
		if err := ctx.Err(); err != nil {
			return err
		}
		src := strings.TrimPrefix(strings.TrimPrefix(path, dir), string(filepath.Separator))
		if err := processBook(ctx, path, src, dst, tr, log); err != nil {
			log.Error("Unable to process file", zap.String("file", path), zap.Error(err))
		}
	}
	return nil
}
