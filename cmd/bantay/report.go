package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/lborres/bantay/adapters/rest"
	"github.com/lborres/bantay/core"
)

func newSummaryCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show the integrity report of the active examination",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := rt.loggedIn(cmd, nil)
			if err != nil {
				return err
			}
			summary, err := b.Summary.Load(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			p := rt.printer(out)
			if p.json {
				return p.JSON(summary)
			}
			if summary.Exam == nil {
				fmt.Fprintln(out, "No active examination.")
				return nil
			}
			fmt.Fprintf(out, "%s %s (%d min)\n", summary.Exam.CourseCode, summary.Exam.Title, summary.Exam.DurationMinutes)
			if st := summary.Stats; st != nil {
				fmt.Fprintf(out, "events %d  avg confidence %.0f%%  high confidence %d\n",
					st.TotalEvents, st.AverageConfidence*100, st.HighConfidenceEvents)
				types := make([]string, 0, len(st.EventTypeCounts))
				for t := range st.EventTypeCounts {
					types = append(types, t)
				}
				sort.Strings(types)
				for _, t := range types {
					fmt.Fprintf(out, "  %-24s %d\n", t, st.EventTypeCounts[t])
				}
			} else {
				fmt.Fprintln(out, "statistics unavailable")
			}
			fmt.Fprintf(out, "report: %s\n", summary.ExportURL)
			return nil
		},
	}
}

func newExportCmd(rt *runtime) *cobra.Command {
	var output string
	var printURL bool

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Download the report of the active examination",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			b, err := rt.loggedIn(cmd, nil)
			if err != nil {
				return err
			}
			if printURL {
				url, err := b.Summary.ExportURL(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), url)
				return nil
			}

			client, ok := b.Backend.(*rest.Client)
			if !ok {
				return errors.New("export download needs the HTTP backend")
			}
			exam, err := b.Backend.ActiveExamination(ctx)
			if err != nil {
				return err
			}
			if exam == nil {
				return core.ErrNoActiveExamination
			}

			if output == "-" {
				_, err := client.Export(ctx, exam.ID, cmd.OutOrStdout())
				return err
			}
			return exportToFile(cmd, client, exam.ID, output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write (default: server-provided name, - for stdout)")
	cmd.Flags().BoolVar(&printURL, "url", false, "print the download URL instead of downloading")
	return cmd
}

// exportToFile downloads into a temp file first so a failed export never
// leaves a truncated report behind
func exportToFile(cmd *cobra.Command, client *rest.Client, examID int64, output string) error {
	dir := "."
	if output != "" {
		dir = filepath.Dir(output)
	}
	tmp, err := os.CreateTemp(dir, ".bantay-export-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	name, err := client.Export(cmd.Context(), examID, tmp)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	if output == "" {
		output = filepath.Join(dir, filepath.Base(name))
	}
	if err := os.Rename(tmp.Name(), output); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "report written to %s\n", output)
	return nil
}

func newMediaCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "media",
		Short: "Control the local camera and captions service",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the capture state and stream URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := rt.loggedIn(cmd, nil)
			if err != nil {
				return err
			}
			status := b.Media.Refresh(cmd.Context())
			p := rt.printer(cmd.OutOrStdout())
			if p.json {
				return p.JSON(map[string]any{"status": status, "streamUrl": b.Media.StreamURL()})
			}
			printMedia(cmd.OutOrStdout(), status, b.Media.StreamURL())
			return nil
		},
	})
	cmd.AddCommand(
		newMediaToggleCmd(rt, "camera"),
		newMediaToggleCmd(rt, "captions"),
	)
	return cmd
}

func newMediaToggleCmd(rt *runtime, device string) *cobra.Command {
	return &cobra.Command{
		Use:       device + " on|off",
		Short:     "Switch the " + device + " on or off",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var on bool
			switch args[0] {
			case "on":
				on = true
			case "off":
			default:
				return fmt.Errorf("expected on or off, got %q", args[0])
			}

			b, err := rt.loggedIn(cmd, nil)
			if err != nil {
				return err
			}
			set := b.Media.SetCamera
			if device == "captions" {
				set = b.Media.SetCaptions
			}
			if !set(cmd.Context(), on) {
				return fmt.Errorf("media service did not switch the %s %s", device, args[0])
			}
			printMedia(cmd.OutOrStdout(), b.Media.Status(), b.Media.StreamURL())
			return nil
		},
	}
}

func printMedia(out io.Writer, status core.MediaStatus, stream string) {
	onOff := func(v bool) string {
		if v {
			return "on"
		}
		return "off"
	}
	fmt.Fprintf(out, "camera %s  captions %s\n", onOff(status.CameraActive), onOff(status.CaptionsActive))
	if stream != "" {
		fmt.Fprintf(out, "stream %s\n", stream)
	}
}
