package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yourusername/linkedin-connector/internal/automation"
	"github.com/yourusername/linkedin-connector/internal/browser"
	"github.com/yourusername/linkedin-connector/internal/connection"
	"github.com/yourusername/linkedin-connector/internal/report"
	"github.com/yourusername/linkedin-connector/internal/storage"
)

// errRunFailed signals a non-success result that has already been printed
var errRunFailed = errors.New("automation did not succeed")

type outputFlags struct {
	screenshotDir     string
	includeScreenshot bool
	noHistory         bool
}

func (f *outputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.screenshotDir, "screenshot-dir", "", "write the final screenshot PNG into this directory")
	cmd.Flags().BoolVar(&f.includeScreenshot, "include-screenshot", false, "keep the base64 screenshot in the printed result")
	cmd.Flags().BoolVar(&f.noHistory, "no-history", false, "do not record the result in the history database")
}

func newRunCmd(a *app) *cobra.Command {
	var (
		profileURL string
		note       string
		mode       string
		headless   bool
		session    sessionFlags
		output     outputFlags
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect with (or follow) a single profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := connection.ParseMode(mode)
			if err != nil {
				return err
			}
			sess, err := resolveSession(a.cfg.Session, session)
			if err != nil {
				return err
			}

			a.banner()

			ctx, stop := signalContext()
			defer stop()

			var store *storage.Store
			if !output.noHistory {
				if store, err = a.openStore(); err != nil {
					return err
				}
				defer store.Close()
			}

			manager := browser.NewManager(a.cfg, a.log)
			defer manager.Close()
			runner := automation.NewRunner(a.cfg, automation.FromManager(manager), a.log)

			req := automation.Request{
				RunID:      newRunID(),
				ProfileURL: profileURL,
				Note:       note,
				Mode:       m,
				Session:    sess,
			}
			if cmd.Flags().Changed("headless") {
				req.Headless = &headless
			}
			res := runner.Run(ctx, req)

			if _, err := persistResult(ctx, store, req, res, output.screenshotDir, a.log); err != nil {
				a.log.Warnw("Failed to persist result", "run_id", req.RunID, "error", err)
			}
			if err := printResult(cmd.OutOrStdout(), res, output.includeScreenshot); err != nil {
				return err
			}
			if !res.Success {
				return errRunFailed
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&profileURL, "profile", "p", "", "LinkedIn profile URL")
	cmd.Flags().StringVarP(&note, "note", "n", "", "invitation note (truncated to 300 characters)")
	cmd.Flags().StringVarP(&mode, "mode", "m", string(connection.ModeConnect), "connect, follow, or connect_or_follow")
	cmd.Flags().BoolVar(&headless, "headless", true, "run the browser headless")
	session.register(cmd)
	output.register(cmd)
	_ = cmd.MarkFlagRequired("profile")

	return cmd
}

// persistResult writes the screenshot file and the history row. Either may be skipped.
func persistResult(ctx context.Context, store *storage.Store, req automation.Request, res report.ActionResult, shotDir string, log *zap.SugaredLogger) (storage.Record, error) {
	rec := storage.NewRecord(req.RunID, connection.CleanProfileURL(req.ProfileURL), string(req.Mode), res)

	if shotDir != "" && res.Screenshot != "" {
		path, err := writeScreenshot(shotDir, req.RunID, res.Screenshot)
		if err != nil {
			log.Warnw("Failed to write screenshot", "run_id", req.RunID, "error", err)
		} else {
			rec.ScreenshotPath = path
			log.Debugw("Screenshot saved", "path", path)
		}
	}

	if store == nil {
		return rec, nil
	}
	return store.Record(context.WithoutCancel(ctx), rec)
}

func writeScreenshot(dir, runID, encoded string) (string, error) {
	data, err := report.DecodeScreenshot(encoded)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create screenshot directory: %w", err)
	}
	path := filepath.Join(dir, runID+".png")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write screenshot: %w", err)
	}
	return path, nil
}

func printResult(w io.Writer, res report.ActionResult, includeScreenshot bool) error {
	if !includeScreenshot {
		res.Screenshot = ""
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
