package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/lborres/bantay/core"
	"github.com/lborres/bantay/services"
)

// promptConfirmer asks on the terminal; anything but y/yes declines
type promptConfirmer struct {
	in  *bufio.Reader
	out io.Writer
}

func (p *promptConfirmer) Confirm(ctx context.Context, prompt string) bool {
	fmt.Fprintf(p.out, "%s [y/N] ", prompt)
	answer, err := p.in.ReadString('\n')
	if err != nil && answer == "" {
		fmt.Fprintln(p.out)
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}

// bellNotifier rings the terminal bell and prints one line per new violation
type bellNotifier struct {
	mu  sync.Mutex
	out io.Writer
}

func (n *bellNotifier) Notify(ctx context.Context, alert core.Alert) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintf(n.out, "\a[%s] new violation: %s (%s, %.0f%%)\n",
		formatTime(alert.Timestamp), alert.EventType, alert.Source, alert.Confidence*100)
}

// readValue returns flagValue or, when empty, prompts for one line of input
func readValue(in *bufio.Reader, out io.Writer, flagValue, label string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	fmt.Fprintf(out, "%s: ", label)
	line, err := in.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("reading %s: %w", strings.ToLower(label), err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "--:--:--"
	}
	return t.Local().Format("15:04:05")
}

// printer renders either aligned tables or JSON
type printer struct {
	w    io.Writer
	json bool
}

func (p *printer) JSON(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p *printer) table(header string, rows [][]string) error {
	tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, header)
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

func (p *printer) Result(r services.FormResult) error {
	if p.json {
		if err := p.JSON(r); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(p.w, r.Message)
	}
	if !r.OK() {
		return formError{r}
	}
	return nil
}

func (p *printer) Alerts(alerts []core.Alert) error {
	if p.json {
		return p.JSON(alerts)
	}
	rows := make([][]string, 0, len(alerts))
	for _, a := range alerts {
		rows = append(rows, []string{
			fmt.Sprint(a.EventID),
			formatTime(a.Timestamp),
			string(a.Source),
			a.EventType,
			fmt.Sprintf("%.0f%%", a.Confidence*100),
		})
	}
	return p.table("ID\tTIME\tSOURCE\tEVENT\tCONFIDENCE", rows)
}

func (p *printer) Exams(exams []core.Examination) error {
	if p.json {
		return p.JSON(exams)
	}
	rows := make([][]string, 0, len(exams))
	for _, e := range exams {
		active := "no"
		if e.IsActive {
			active = "yes"
		}
		rows = append(rows, []string{
			fmt.Sprint(e.ID),
			e.CourseCode,
			e.Title,
			fmt.Sprintf("%d min", e.DurationMinutes),
			active,
		})
	}
	return p.table("ID\tCOURSE\tTITLE\tDURATION\tACTIVE", rows)
}

func (p *printer) Users(users []core.User) error {
	if p.json {
		return p.JSON(users)
	}
	rows := make([][]string, 0, len(users))
	for _, u := range users {
		rows = append(rows, []string{fmt.Sprint(u.ID), u.Username, u.Email, string(u.Role)})
	}
	return p.table("ID\tUSERNAME\tEMAIL\tROLE", rows)
}

// formError turns an unsuccessful form outcome into a non-zero exit
type formError struct {
	r services.FormResult
}

func (e formError) Error() string {
	return string(e.r.Outcome) + ": " + e.r.Message
}

func (e formError) Unwrap() error {
	return e.r.Err
}
