package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/lborres/bantay"
	"github.com/lborres/bantay/core"
	"github.com/lborres/bantay/services"
)

// renderInterval is how often a watch command looks at its view
const renderInterval = 200 * time.Millisecond

// liveWatch renders a view whenever its snapshot key changes. With once set
// it returns after the first resolved tick.
type liveWatch[S any] struct {
	start    func(context.Context)
	stop     func()
	snapshot func() S
	key      func(S) string // empty until the first tick resolved
	render   func(S) error
}

func (w liveWatch[S]) run(ctx context.Context, once bool) error {
	w.start(ctx)
	defer w.stop()

	ticker := time.NewTicker(renderInterval)
	defer ticker.Stop()

	var last string
	for {
		snap := w.snapshot()
		if key := w.key(snap); key != "" && key != last {
			last = key
			if err := w.render(snap); err != nil {
				return err
			}
			if once {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func stamp(updatedAt time.Time, errText string) string {
	if updatedAt.IsZero() && errText == "" {
		return ""
	}
	return updatedAt.Format(time.RFC3339Nano) + "|" + errText
}

func printError(w io.Writer, errText string) {
	if errText != "" {
		fmt.Fprintf(w, "! last update failed: %s\n", errText)
	}
}

// loggedIn wires a dashboard and requires a restored session
func (rt *runtime) loggedIn(cmd *cobra.Command, extra func(*bantay.Config)) (*bantay.Bantay, error) {
	b, err := rt.dashboard(cmd.Context(), extra)
	if err != nil {
		return nil, err
	}
	if _, err := rt.requireLogin(cmd.Context(), b); err != nil {
		return nil, err
	}
	return b, nil
}

func newAlertsCmd(rt *runtime) *cobra.Command {
	var (
		confidence float64
		source     string
		sessionID  int64
		once       bool
	)

	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Watch the live alert stream",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := rt.cfg.AlertFilter()
			if cmd.Flags().Changed("confidence") {
				filter.Confidence = confidence
			}
			if cmd.Flags().Changed("source") {
				filter.Source = core.SourceFilter(source)
			}
			if cmd.Flags().Changed("session") {
				filter.SessionID = &sessionID
			}
			if err := filter.Validate(); err != nil {
				return err
			}

			b, err := rt.loggedIn(cmd, func(c *bantay.Config) { c.AlertFilter = &filter })
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			p := rt.printer(out)
			return liveWatch[services.AlertsSnapshot]{
				start:    b.Alerts.Start,
				stop:     b.Alerts.Stop,
				snapshot: b.Alerts.Snapshot,
				key:      func(s services.AlertsSnapshot) string { return stamp(s.UpdatedAt, s.Error) },
				render: func(s services.AlertsSnapshot) error {
					if p.json {
						return p.JSON(s)
					}
					fmt.Fprintf(out, "\n%s  confidence >= %.2f  source=%s  (%d alerts)\n",
						formatTime(s.UpdatedAt), s.Filter.Confidence, s.Filter.Source, len(s.Alerts))
					printError(out, s.Error)
					return p.Alerts(s.Alerts)
				},
			}.run(cmd.Context(), once)
		},
	}
	cmd.Flags().Float64Var(&confidence, "confidence", core.DefaultConfidence, "minimum detection confidence (0..1)")
	cmd.Flags().StringVar(&source, "source", string(core.SourceAll), "all, video or audio")
	cmd.Flags().Int64Var(&sessionID, "session", 0, "restrict to one examination session")
	cmd.Flags().BoolVar(&once, "once", false, "print the first result and exit")
	return cmd
}

func newFeedCmd(rt *runtime) *cobra.Command {
	var once, quiet bool

	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Watch the violation feed of the active examination",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := rt.loggedIn(cmd, func(c *bantay.Config) {
				if !quiet {
					c.Notifier = &bellNotifier{out: cmd.ErrOrStderr()}
				}
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			p := rt.printer(out)
			return liveWatch[services.FeedSnapshot]{
				start:    b.Feed.Start,
				stop:     b.Feed.Stop,
				snapshot: b.Feed.Snapshot,
				key:      func(s services.FeedSnapshot) string { return stamp(s.UpdatedAt, s.Error) },
				render: func(s services.FeedSnapshot) error {
					if p.json {
						return p.JSON(s)
					}
					scope := "all sessions"
					if s.Exam != nil {
						scope = fmt.Sprintf("%s %s", s.Exam.CourseCode, s.Exam.Title)
					}
					fmt.Fprintf(out, "\n%s  %s  (%d events)\n", formatTime(s.UpdatedAt), scope, len(s.Events))
					printError(out, s.Error)
					return p.Alerts(s.Events)
				},
			}.run(cmd.Context(), once)
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "print the first result and exit")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not ring on new violations")
	return cmd
}

func newExamCmd(rt *runtime) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "exam",
		Short: "Show the active examination and its countdown",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := rt.loggedIn(cmd, nil)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			p := rt.printer(out)
			return liveWatch[services.ActiveExamSnapshot]{
				start:    b.ActiveExam.Start,
				stop:     b.ActiveExam.Stop,
				snapshot: b.ActiveExam.Snapshot,
				key: func(s services.ActiveExamSnapshot) string {
					if k := stamp(s.UpdatedAt, s.Error); k != "" {
						return k + "|" + s.Remaining
					}
					return ""
				},
				render: func(s services.ActiveExamSnapshot) error {
					if p.json {
						return p.JSON(s)
					}
					printError(out, s.Error)
					if s.Exam == nil {
						fmt.Fprintln(out, "No active examination.")
						return nil
					}
					fmt.Fprintf(out, "%s %s  remaining %s\n", s.Exam.CourseCode, s.Exam.Title, s.Remaining)
					return nil
				},
			}.run(cmd.Context(), once)
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "print the first result and exit")
	return cmd
}

type statsSnapshot struct {
	Dashboard services.DashboardStatsSnapshot `json:"dashboard"`
	Session   services.SessionStatsSnapshot   `json:"session"`
}

func newStatsCmd(rt *runtime) *cobra.Command {
	var (
		sessionID int64
		once      bool
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Watch the dashboard counters and one session's statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := rt.loggedIn(cmd, func(c *bantay.Config) {
				if sessionID > 0 {
					c.StatsSessionID = sessionID
				}
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			p := rt.printer(out)
			return liveWatch[statsSnapshot]{
				start: func(ctx context.Context) {
					b.Stats.Start(ctx)
					b.SessionStats.Start(ctx)
				},
				stop: func() {
					b.Stats.Stop()
					b.SessionStats.Stop()
				},
				snapshot: func() statsSnapshot {
					return statsSnapshot{Dashboard: b.Stats.Snapshot(), Session: b.SessionStats.Snapshot()}
				},
				key: func(s statsSnapshot) string {
					d := stamp(s.Dashboard.UpdatedAt, s.Dashboard.Error)
					if d == "" {
						return ""
					}
					return d + "|" + stamp(s.Session.UpdatedAt, s.Session.Error)
				},
				render: func(s statsSnapshot) error {
					if p.json {
						return p.JSON(s)
					}
					return renderStats(out, s)
				},
			}.run(cmd.Context(), once)
		},
	}
	cmd.Flags().Int64Var(&sessionID, "session", 0, "session to report on (default from config)")
	cmd.Flags().BoolVar(&once, "once", false, "print the first result and exit")
	return cmd
}

func renderStats(out io.Writer, s statsSnapshot) error {
	d := s.Dashboard
	fmt.Fprintf(out, "\n%s  students %d  active sessions %d  violations %d  critical %d\n",
		formatTime(d.UpdatedAt), d.TotalStudents, d.ActiveSessions, d.DetectedViolations, d.CriticalAlerts)
	printError(out, d.Error)

	st := s.Session.Stats
	if st == nil {
		printError(out, s.Session.Error)
		return nil
	}
	fmt.Fprintf(out, "session %d: %d events, avg confidence %.0f%%, %d high confidence\n",
		s.Session.SessionID, st.TotalEvents, st.AverageConfidence*100, st.HighConfidenceEvents)
	types := make([]string, 0, len(st.EventTypeCounts))
	for t := range st.EventTypeCounts {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Fprintf(out, "  %-24s %d\n", t, st.EventTypeCounts[t])
	}
	printError(out, s.Session.Error)
	return nil
}
