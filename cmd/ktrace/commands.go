package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ktrace/internal/logger"
	"ktrace/pkg/bootstrap"
	"ktrace/pkg/logging"
	"ktrace/pkg/queue"
)

// withSession runs fn against a fresh session and always closes it.
func withSession(cmd *cobra.Command, fn func(s *session) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.close(); cerr != nil {
			s.log.Warnw("Close incomplete", "error", cerr, "pending", len(s.tracker.Snapshot()))
		}
	}()
	defer s.monitor.Recover()

	return fn(s)
}

func propertyFlag(cmd *cobra.Command, target *[]string) {
	cmd.Flags().StringArrayVarP(target, "prop", "p", nil, "Event property as key=value (repeatable)")
}

func trackCmd() *cobra.Command {
	var props []string
	cmd := &cobra.Command{
		Use:   "track NAME",
		Short: "Track a custom event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			properties, err := parseProperties(props)
			if err != nil {
				return err
			}
			return withSession(cmd, func(s *session) error {
				s.tracker.Track(args[0], properties)
				return nil
			})
		},
	}
	propertyFlag(cmd, &props)
	return cmd
}

func pageviewCmd() *cobra.Command {
	var props []string
	cmd := &cobra.Command{
		Use:   "pageview NAME",
		Short: "Track a page view",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			properties, err := parseProperties(props)
			if err != nil {
				return err
			}
			return withSession(cmd, func(s *session) error {
				s.tracker.TrackPageView(args[0], properties)
				return nil
			})
		},
	}
	propertyFlag(cmd, &props)
	return cmd
}

func identifyCmd() *cobra.Command {
	var props []string
	cmd := &cobra.Command{
		Use:   "identify USER_ID",
		Short: "Associate the session with a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			properties, err := parseProperties(props)
			if err != nil {
				return err
			}
			return withSession(cmd, func(s *session) error {
				s.tracker.Identify(args[0], properties)
				return nil
			})
		},
	}
	propertyFlag(cmd, &props)
	return cmd
}

func errorCmd() *cobra.Command {
	var props []string
	cmd := &cobra.Command{
		Use:   "error MESSAGE",
		Short: "Report an error event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			properties, err := parseProperties(props)
			if err != nil {
				return err
			}
			return withSession(cmd, func(s *session) error {
				s.monitor.CaptureError(errors.New(args[0]), properties)
				return nil
			})
		},
	}
	propertyFlag(cmd, &props)
	return cmd
}

func flushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "flush",
		Short: "Deliver events left over from earlier invocations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, func(s *session) error {
				pending := len(s.tracker.Snapshot())
				if pending == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "queue empty")
					return nil
				}
				s.tracker.Flush(false)
				s.tracker.Wait()
				fmt.Fprintf(cmd.OutOrStdout(), "flushed %d events, %d remaining\n", pending, len(s.tracker.Snapshot()))
				return nil
			})
		},
	}
}

func queueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "queue",
		Short: "Print the persisted queue as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			earlyLog := logging.NewEarlyLog()
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			cfg, err := loadConfig()
			if err != nil {
				earlyLog.Error("Failed to load config: %v", err)
				return err
			}

			db := bootstrap.NewDatabaseConnector(cfg, logger.NopLogger())
			defer db.Shutdown(ctx)

			store, err := db.InitStorage(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			events, err := queue.Load(ctx, store, cfg.Tracker.StorageKey)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(events)
		},
	}
}
