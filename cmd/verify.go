package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yourusername/linkedin-connector/internal/auth"
	"github.com/yourusername/linkedin-connector/internal/browser"
	"github.com/yourusername/linkedin-connector/internal/cookies"
)

func newVerifyCmd(a *app) *cobra.Command {
	var session sessionFlags

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check that the session cookies are logged in",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := resolveSession(a.cfg.Session, session)
			if err != nil {
				return err
			}
			jar, err := cookies.New(a.log).FromSession(sess)
			if err != nil {
				return err
			}

			ctx, stop := signalContext()
			defer stop()

			manager := browser.NewManager(a.cfg, a.log)
			defer manager.Close()

			lease, err := manager.Acquire(ctx, browser.LaunchOptions{UserAgent: sess.UserAgent, Cookies: jar})
			if err != nil {
				return err
			}
			defer lease.Close()

			res, err := auth.NewVerifier(a.cfg.Login, a.log).Verify(ctx, lease.Page())
			if err != nil {
				lease.Invalidate()
				return err
			}

			out := cmd.OutOrStdout()
			if !res.LoggedIn {
				fmt.Fprintf(out, "%s (signal: %s", red("not logged in"), res.Signal)
				if res.Challenge != auth.ChallengeNone {
					fmt.Fprintf(out, ", challenge: %s", res.Challenge)
				}
				if res.RedirectedTo != "" {
					fmt.Fprintf(out, ", redirected to %s", res.RedirectedTo)
				}
				fmt.Fprintln(out, ")")
				return errRunFailed
			}

			fmt.Fprintf(out, "%s (signal: %s)\n", green("logged in"), res.Signal)
			return nil
		},
	}

	session.register(cmd)
	return cmd
}
