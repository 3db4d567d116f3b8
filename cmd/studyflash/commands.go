package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"
	"github.com/vytor/studyflash/internal/api"
	"github.com/vytor/studyflash/internal/config"
	"github.com/vytor/studyflash/internal/errors"
	"github.com/vytor/studyflash/internal/flashcard"
	"github.com/vytor/studyflash/internal/models"
)

func runServe(ctx context.Context, cfg *config.Config, fs *pflag.FlagSet, args []string, out io.Writer) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	log := a.log

	log.Info("===========================================")
	log.Info("StudyFlash Server Starting")
	log.Info("===========================================")
	log.Debug("addr=%s", cfg.Addr)
	log.Debug("batch_size=%d", cfg.BatchSize)
	log.Debug("review_max_retries=%d", cfg.ReviewMaxRetries)
	log.Debug("import_worker_count=%d", cfg.ImportWorkerCount)

	srv := &api.Server{
		Scheduler:   a.scheduler,
		Importer:    a.importer,
		Stats:       a.stats,
		DB:          a.db,
		BatchSize:   cfg.BatchSize,
		CORSOrigins: cfg.CORSOrigins,
	}

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      srv.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening on %s", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Error("HTTP server error: %v", err)
			return err
		}
	case <-ctx.Done():
		log.Info("received shutdown signal, initiating graceful shutdown")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	log.Debug("shutting down HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error: %v", err)
	}

	log.Info("===========================================")
	log.Info("StudyFlash Server Stopped")
	log.Info("===========================================")
	return nil
}

func runImport(ctx context.Context, cfg *config.Config, fs *pflag.FlagSet, args []string, out io.Writer) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.NewInvalidInputError("file", "expected exactly one JSON file")
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.importer.ImportFile(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "created %d, unchanged %d, failed %d\n", len(result.Created), len(result.Unchanged), len(result.Failed))
	for _, f := range result.Failed {
		fmt.Fprintf(out, "  #%d %s: %s\n", f.Index, f.ID, f.Error)
	}
	return nil
}

func runDue(ctx context.Context, cfg *config.Config, fs *pflag.FlagSet, args []string, out io.Writer) error {
	limit := fs.IntP("limit", "n", cfg.BatchSize, "maximum number of cards")
	subject := fs.String("subject", "", "only cards of this subject")
	topic := fs.String("topic", "", "only cards of this topic")
	asJSON := fs.Bool("json", false, "print JSON instead of a table")
	if err := fs.Parse(args); err != nil {
		return err
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	cards, err := a.scheduler.NextBatchFiltered(ctx, time.Now(), *limit, models.CardFilter{Subject: *subject, Topic: *topic})
	if err != nil {
		return err
	}
	if *asJSON {
		return writeJSON(out, cards)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSUBJECT\tTOPIC\tDUE\tREPS\tEASE\tFRONT")
	for _, c := range cards {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%.2f\t%s\n",
			c.ID, c.Subject, c.Topic, c.DueAt.Local().Format(time.DateTime), c.Repetitions, c.EaseFactor, c.Front)
	}
	return tw.Flush()
}

func runReview(ctx context.Context, cfg *config.Config, fs *pflag.FlagSet, args []string, out io.Writer) error {
	correct := fs.Bool("correct", false, "whether the answer was correct")
	confidence := fs.IntP("confidence", "c", 0, "self-reported confidence, 0-4")
	percent := fs.Int("percent", 0, "self-reported confidence as 0-100, instead of --confidence")
	rating := fs.String("rating", "", "again, hard, good or easy, instead of --correct/--confidence")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.NewInvalidInputError("card_id", "expected exactly one card id")
	}

	var err error
	switch {
	case fs.Changed("rating"):
		var r flashcard.Rating
		if r, err = flashcard.ParseRating(*rating); err != nil {
			return err
		}
		if *correct, *confidence, err = flashcard.FromRating(r); err != nil {
			return err
		}
	case !fs.Changed("correct"):
		return errors.NewInvalidInputError("correct", "is required")
	case fs.Changed("percent"):
		if *confidence, err = flashcard.FromPercent(*percent); err != nil {
			return err
		}
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.scheduler.RecordReview(ctx, fs.Arg(0), *correct, *confidence)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "quality %d, next review in %d day(s) at %s\n",
		result.Quality, result.Interval, result.Card.DueAt.Local().Format(time.DateTime))
	return nil
}

func runStats(ctx context.Context, cfg *config.Config, fs *pflag.FlagSet, args []string, out io.Writer) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.stats.Report(ctx, time.Now())
	if err != nil {
		return err
	}
	return writeJSON(out, report)
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
