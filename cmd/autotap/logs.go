package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/odvcencio/autotap/pkg/logging"
)

func runLogsCommand(args []string) error {
	return runLogs(args, os.Stdout)
}

func runLogs(args []string, w io.Writer) error {
	fs := flag.NewFlagSet("logs", flag.ContinueOnError)
	count := fs.Int("n", 20, "number of events to show")
	sessionID := fs.String("session", "", "session to show (default: most recent)")
	errorsOnly := fs.Bool("errors", false, "show the shared error log instead of a session")
	dispatches := fs.Bool("dispatches", false, "show the shared dispatch log instead of a session")
	dir := fs.String("dir", "", "log directory (default: logging.dir from config)")
	if err := fs.Parse(args); err != nil {
		return withExitCode(err, exitCodeUsage)
	}

	baseDir := strings.TrimSpace(*dir)
	if baseDir == "" {
		cfg, err := loadConfigFn("")
		if err != nil {
			return err
		}
		baseDir = cfg.Logging.LogDir()
	}

	var path string
	switch {
	case *errorsOnly:
		path = filepath.Join(baseDir, logging.ErrorLogName)
	case *dispatches:
		path = filepath.Join(baseDir, logging.DispatchLogName)
	case *sessionID != "":
		path = logging.SessionLogPath(baseDir, *sessionID)
	default:
		latest, err := latestSessionLog(baseDir)
		if err != nil {
			return err
		}
		path = latest
	}

	events, err := logging.ReadRecentEvents(path, *count)
	if err != nil {
		return err
	}
	for _, event := range events {
		fmt.Fprintln(w, logging.FormatEvent(event))
	}
	return nil
}

func latestSessionLog(baseDir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(baseDir, "sessions", "*.jsonl"))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", errors.New("no session logs found in " + baseDir)
	}
	type entry struct {
		path string
		mod  int64
	}
	entries := make([]entry, 0, len(matches))
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			continue
		}
		entries = append(entries, entry{path: m, mod: info.ModTime().UnixNano()})
	}
	if len(entries) == 0 {
		return "", errors.New("no readable session logs in " + baseDir)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].mod > entries[j].mod })
	return entries[0].path, nil
}
