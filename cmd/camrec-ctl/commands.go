package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tiroq/camrec/internal/config"
	"github.com/tiroq/camrec/internal/diaglog"
	"github.com/tiroq/camrec/internal/fileutil"
	"github.com/tiroq/camrec/internal/ipc"
	"github.com/tiroq/camrec/internal/media"
	"github.com/tiroq/camrec/internal/obsws"
	"github.com/tiroq/camrec/internal/pidfile"
	"github.com/tiroq/camrec/internal/windowlist"
)

// coreApp is the pidfile name of the daemon commands are sent to.
const coreApp = "camrec-core"

var (
	errCoreNotRunning = errors.New("camrec-core is not running")
	errStartDisabled  = errors.New("start is disabled: a recording is in progress")
	errStopDisabled   = errors.New("stop is disabled: nothing is recording")
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "camrec-ctl",
		Short:         "Control the camrec recording daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	start := &cobra.Command{
		Use:   "start",
		Short: "Start recording from a camera or window into a file",
		Args:  cobra.NoArgs,
		RunE:  runStart,
	}
	start.Flags().String("source", string(media.SourceCamera), "capture source: camera or window")
	start.Flags().StringP("output", "o", "", "destination file or directory")
	start.Flags().String("window", "", "window id (see 'camrec-ctl windows')")

	stop := &cobra.Command{
		Use:   "stop",
		Short: "Stop the current recording",
		Args:  cobra.NoArgs,
		RunE:  runStop,
	}

	quit := &cobra.Command{
		Use:   "quit",
		Short: "Stop any recording and shut the daemon down",
		Args:  cobra.NoArgs,
		RunE:  runQuit,
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Print the daemon status and which controls are enabled",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}
	status.Flags().Bool("json", false, "print status.json as is")

	windows := &cobra.Command{
		Use:   "windows",
		Short: "List windows that can be selected as a source",
		Args:  cobra.NoArgs,
		RunE:  runWindows,
	}

	root.AddCommand(start, stop, quit, status, windows)
	return root
}

func runStart(cmd *cobra.Command, args []string) error {
	sourceFlag, _ := cmd.Flags().GetString("source")
	output, _ := cmd.Flags().GetString("output")
	window, _ := cmd.Flags().GetString("window")

	kind, err := media.ParseSourceKind(sourceFlag)
	if err != nil {
		return err
	}
	status, err := currentStatus()
	if err != nil {
		return err
	}
	if !status.Controls.StartEnabled {
		return errStartDisabled
	}

	// the daemon resolves relative paths against its own working directory
	if output != "" {
		if output, err = fileutil.ResolveDestination(output, string(kind), time.Now()); err != nil {
			return err
		}
	}
	if err := ipc.WriteCommand(ipc.Start(kind, output, window)); err != nil {
		return fmt.Errorf("send start: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "start sent: %s -> %s\n", kind, output)
	return nil
}

func runStop(cmd *cobra.Command, args []string) error {
	status, err := currentStatus()
	if err != nil {
		return err
	}
	if !status.Controls.StopEnabled {
		return errStopDisabled
	}
	if err := ipc.WriteCommand(ipc.Command{Verb: ipc.CmdStop}); err != nil {
		return fmt.Errorf("send stop: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "stop sent")
	return nil
}

func runQuit(cmd *cobra.Command, args []string) error {
	if !coreRunning() {
		return errCoreNotRunning
	}
	if err := ipc.WriteCommand(ipc.Command{Verb: ipc.CmdQuit}); err != nil {
		return fmt.Errorf("send quit: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "quit sent")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	status, err := ipc.ReadStatus()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return errCoreNotRunning
		}
		return err
	}
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	}
	printStatus(cmd.OutOrStdout(), status, coreRunning())
	return nil
}

func runWindows(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	windows, err := windowlist.New(cfg, diaglog.NewNoOp()).Windows(cmd.Context())
	if err != nil {
		for _, fix := range obsws.Fixes(err) {
			fmt.Fprintln(cmd.ErrOrStderr(), "  "+fix)
		}
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE")
	for _, win := range windows {
		fmt.Fprintf(w, "%s\t%s\n", win.ID, win.Title)
	}
	return w.Flush()
}

// currentStatus returns the daemon's last status, failing when the daemon
// is not alive.
func currentStatus() (*ipc.StatusSnapshot, error) {
	if !coreRunning() {
		return nil, errCoreNotRunning
	}
	status, err := ipc.ReadStatus()
	if err != nil {
		return nil, fmt.Errorf("read status: %w", err)
	}
	return status, nil
}

func coreRunning() bool {
	_, ok := pidfile.Running(pidfile.GetPIDFilePath(coreApp))
	return ok
}

func printStatus(out io.Writer, s *ipc.StatusSnapshot, running bool) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	defer w.Flush()

	if !running {
		fmt.Fprintln(w, "daemon:\tnot running (status may be stale)")
	}
	fmt.Fprintf(w, "state:\t%s\n", s.State)
	if s.Recording() {
		fmt.Fprintf(w, "source:\t%s\n", s.Source)
		fmt.Fprintf(w, "output:\t%s\n", s.OutputPath)
		fmt.Fprintf(w, "session:\t%s\n", s.SessionID)
		fmt.Fprintf(w, "elapsed:\t%s\n", (time.Duration(s.ElapsedMs) * time.Millisecond).Round(time.Second))
		fmt.Fprintf(w, "frames:\t%d\n", s.Frames)
	} else if s.OutputPath != "" {
		fmt.Fprintf(w, "last output:\t%s (%d frames, %s)\n", s.OutputPath, s.Frames, s.LastReason)
	}
	if s.LastErrorKind != "" {
		fmt.Fprintf(w, "last error:\t%s: %s\n", s.LastErrorKind, s.LastError)
	}
	fmt.Fprintf(w, "sessions:\t%d\n", s.Sessions)
	fmt.Fprintf(w, "last action:\t%s\n", s.LastAction)
	fmt.Fprintf(w, "controls:\t%s\n", controls(s.Controls))
}

func controls(c ipc.Controls) string {
	var enabled []string
	if c.StartEnabled {
		enabled = append(enabled, "start")
	}
	if c.StopEnabled {
		enabled = append(enabled, "stop")
	}
	if len(enabled) == 0 {
		return "none"
	}
	return strings.Join(enabled, ", ")
}
