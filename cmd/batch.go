package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/yourusername/linkedin-connector/internal/automation"
	"github.com/yourusername/linkedin-connector/internal/browser"
	"github.com/yourusername/linkedin-connector/internal/config"
	"github.com/yourusername/linkedin-connector/internal/connection"
	"github.com/yourusername/linkedin-connector/internal/cookies"
	"github.com/yourusername/linkedin-connector/internal/report"
	"github.com/yourusername/linkedin-connector/internal/stealth"
	"github.com/yourusername/linkedin-connector/internal/storage"
)

// batchFile is the YAML task list accepted by the batch command
type batchFile struct {
	Mode         string      `yaml:"mode"`
	NoteTemplate string      `yaml:"note_template"`
	Tasks        []batchTask `yaml:"tasks"`
}

type batchTask struct {
	ProfileURL string            `yaml:"profile_url"`
	Note       string            `yaml:"note"`
	Mode       string            `yaml:"mode"`
	Vars       map[string]string `yaml:"vars"`
}

// batchItem is a task with its note rendered and mode resolved
type batchItem struct {
	ProfileURL string
	Note       string
	Mode       connection.Mode
}

func loadBatchFile(path string) ([]batchItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}
	return parseBatch(data)
}

func parseBatch(data []byte) ([]batchItem, error) {
	var f batchFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse batch file: %w", err)
	}
	if len(f.Tasks) == 0 {
		return nil, fmt.Errorf("batch file has no tasks")
	}

	items := make([]batchItem, 0, len(f.Tasks))
	for i, t := range f.Tasks {
		if strings.TrimSpace(t.ProfileURL) == "" {
			return nil, fmt.Errorf("task %d: profile_url is required", i+1)
		}

		mode, err := connection.ParseMode(firstNonEmpty(t.Mode, f.Mode))
		if err != nil {
			return nil, fmt.Errorf("task %d: %w", i+1, err)
		}

		note := t.Note
		if note == "" && f.NoteTemplate != "" {
			note = connection.RenderNote(f.NoteTemplate, t.Vars)
		}

		items = append(items, batchItem{ProfileURL: t.ProfileURL, Note: note, Mode: mode})
	}
	return items, nil
}

// requestRunner is the part of automation.Runner the batch loop uses
type requestRunner interface {
	Run(ctx context.Context, req automation.Request) report.ActionResult
}

type batchSummary struct {
	Total        int
	Succeeded    int
	Failed       int
	Skipped      int
	LimitReached bool
}

// batcher runs tasks one after another with caller-side pacing
type batcher struct {
	cfg           *config.Config
	runner        requestRunner
	store         *storage.Store
	limiter       *rate.Limiter
	human         *stealth.Emulator
	session       cookies.Session
	output        outputFlags
	skipProcessed bool
	log           *zap.SugaredLogger
}

func newLimiter(cfg *config.Config) *rate.Limiter {
	interval := cfg.GetMinInterval()
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

func (b *batcher) run(ctx context.Context, items []batchItem, w io.Writer) (batchSummary, error) {
	summary := batchSummary{Total: len(items)}
	ran := 0

	for i, item := range items {
		if ctx.Err() != nil {
			b.log.Infow("Batch interrupted", "completed", ran, "remaining", len(items)-i)
			break
		}
		profileURL := connection.CleanProfileURL(item.ProfileURL)

		if b.skipProcessed {
			done, err := b.store.Processed(ctx, profileURL)
			if err != nil {
				return summary, err
			}
			if done {
				b.log.Infow("Skipping already processed profile", "profile_url", profileURL)
				summary.Skipped++
				continue
			}
		}

		sentToday, err := b.store.CountToday(ctx)
		if err != nil {
			return summary, fmt.Errorf("failed to check daily limit: %w", err)
		}
		if sentToday >= b.cfg.Batch.DailyLimit {
			b.log.Infow("Daily connection request limit reached", "limit", b.cfg.Batch.DailyLimit, "sent_today", sentToday)
			summary.LimitReached = true
			break
		}

		if ran > 0 {
			if err := b.human.Pause(ctx, b.cfg.GetMinDelay(), b.cfg.GetMaxDelay()); err != nil {
				break
			}
		}
		if err := b.limiter.Wait(ctx); err != nil {
			break
		}

		b.log.Infow("Processing profile",
			"index", i+1,
			"total", len(items),
			"profile_url", profileURL,
			"remaining_requests", b.cfg.Batch.DailyLimit-sentToday,
		)

		req := automation.Request{
			RunID:      newRunID(),
			ProfileURL: item.ProfileURL,
			Note:       item.Note,
			Mode:       item.Mode,
			Session:    b.session,
		}
		res := b.runner.Run(ctx, req)
		ran++

		if _, err := persistResult(ctx, b.store, req, res, b.output.screenshotDir, b.log); err != nil {
			b.log.Warnw("Failed to persist result", "run_id", req.RunID, "error", err)
		}

		if res.Success {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", profileURL, res.Status, res.Action, res.Message)
	}

	return summary, nil
}

func newBatchCmd(a *app) *cobra.Command {
	var (
		headless      bool
		skipProcessed bool
		session       sessionFlags
		output        outputFlags
	)

	cmd := &cobra.Command{
		Use:   "batch <tasks.yaml>",
		Short: "Run a list of profiles sequentially on one browser",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := loadBatchFile(args[0])
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("headless") {
				a.cfg.Browser.Headless = headless
			}
			sess, err := resolveSession(a.cfg.Session, session)
			if err != nil {
				return err
			}

			a.banner()

			ctx, stop := signalContext()
			defer stop()

			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			// one manager for the whole batch so the browser is reused between tasks
			a.cfg.Browser.Reuse = true
			manager := browser.NewManager(a.cfg, a.log)
			defer manager.Close()

			b := &batcher{
				cfg:     a.cfg,
				runner:  automation.NewRunner(a.cfg, automation.FromManager(manager), a.log),
				store:   store,
				limiter: newLimiter(a.cfg),
				human: stealth.New(
					stealth.WithPersonality(stealth.Personality(a.cfg.Human.Personality)),
					stealth.WithLogger(a.log),
				),
				session:       sess,
				output:        output,
				skipProcessed: skipProcessed,
				log:           a.log,
			}

			a.log.Infow("Starting batch", "tasks", len(items), "daily_limit", a.cfg.Batch.DailyLimit)
			summary, err := b.run(ctx, items, cmd.OutOrStdout())
			if err != nil {
				return err
			}

			a.log.Infow("Batch completed",
				"total", summary.Total,
				"succeeded", summary.Succeeded,
				"failed", summary.Failed,
				"skipped", summary.Skipped,
				"limit_reached", summary.LimitReached,
			)
			if summary.Failed > 0 {
				return errRunFailed
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&headless, "headless", true, "run the browser headless")
	cmd.Flags().BoolVar(&skipProcessed, "skip-processed", true, "skip profiles that already have a successful result")
	session.register(cmd)
	cmd.Flags().StringVar(&output.screenshotDir, "screenshot-dir", "", "write each final screenshot PNG into this directory")

	return cmd
}
