/*
Copyright 2023 eatmoreapple

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package scanner loads statement files from a directory into a
// sqlquery.Configuration and keeps the registry in step with the directory
// while the process runs.
//
//	s := scanner.New(cfg, scanner.DirRepository{Root: "."})
//	if err := s.Initialize(ctx); err != nil {
//		return err // the engine is unusable without the initial load
//	}
//	defer s.Destroy()
//
// Every poll cycle diffs the files of the directory against the previous
// cycle. A created or modified file is parsed and applied as one batch, a
// deleted file unloads everything it registered. A file that fails to parse
// is logged and keeps its last good registration.
package scanner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-version"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/go-juicedev/sqlquery"
)

const (
	// DefaultPollInterval is the interval between two poll cycles.
	DefaultPollInterval = 10 * time.Second

	// DefaultDirectoryName is the directory statement files are read from.
	DefaultDirectoryName = "sql"

	// notifyDebounce groups bursts of file system events into one scan.
	notifyDebounce = 200 * time.Millisecond

	// racyWindow is the coarsest modification time granularity accounted
	// for. A file modified this close to the scan that recorded it may
	// change again without its modification time or size moving.
	racyWindow = 2 * time.Second
)

// ErrAlreadyStarted is returned by Initialize on a running scanner.
var ErrAlreadyStarted = errors.New("scanner: already started")

// State is the lifecycle state of a Scanner.
type State int32

const (
	// Stopped is the state before Initialize and after Destroy.
	Stopped State = iota
	// Scanning is the state during the initial scan.
	Scanning
	// Watching is the state while the poll loop runs.
	Watching
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "STOPPED"
	case Scanning:
		return "SCANNING"
	case Watching:
		return "WATCHING"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithFs sets the file system statement files are read from.
func WithFs(fs afero.Fs) Option {
	return func(s *Scanner) { s.fs = fs }
}

// WithPollInterval sets the interval between two poll cycles.
func WithPollInterval(d time.Duration) Option {
	return func(s *Scanner) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithNotify enables file system notifications, which trigger a scan
// shortly after a change instead of waiting for the next poll cycle.
// Polling keeps running. Notifications need the OS file system.
func WithNotify(enabled bool) Option {
	return func(s *Scanner) { s.notify = enabled }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scanner) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithDirectoryName sets the directory the Repository is asked for.
func WithDirectoryName(name string) Option {
	return func(s *Scanner) { s.dirName = name }
}

// WithParallelism limits how many files the initial scan parses at once.
func WithParallelism(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.parallelism = n
		}
	}
}

// fileState is what a scan remembers about a file.
type fileState struct {
	modTime time.Time
	size    int64
	// sum is the FNV-1a hash of the content.
	sum       uint64
	scannedAt time.Time
	version   *version.Version
	failed    bool
}

// clean reports whether info proves the file unchanged without reading
// it: same modification time and size, and a modification time older than
// the recording scan by more than racyWindow.
func (f fileState) clean(info os.FileInfo) bool {
	return f.modTime.Equal(info.ModTime()) && f.size == info.Size() &&
		f.modTime.Before(f.scannedAt.Add(-racyWindow))
}

func checksum(data []byte) uint64 {
	h := fnv.New64a()
	_, _ = h.Write(data)
	return h.Sum64()
}

// Report describes one scan.
type Report struct {
	// Applied holds one result per created or modified file.
	Applied []sqlquery.ApplyResult
	// Unloaded holds one result per deleted file.
	Unloaded []sqlquery.ApplyResult
	// Failed maps files that failed to parse to their error.
	Failed map[string]error
	// Unchanged counts the files skipped because they did not change.
	Unchanged int
	// Err is set when the directory could not be listed.
	Err error
}

// Changed reports whether the scan changed the registry.
func (r Report) Changed() bool {
	return len(r.Applied) > 0 || len(r.Unloaded) > 0
}

// Scanner keeps a Configuration in step with a directory of statement files.
type Scanner struct {
	cfg         *sqlquery.Configuration
	repo        Repository
	fs          afero.Fs
	dirName     string
	interval    time.Duration
	notify      bool
	parallelism int
	logger      *slog.Logger

	state atomic.Int32

	// lifecycle guards dir, cancel and done.
	lifecycle sync.Mutex
	dir       string
	cancel    context.CancelFunc
	done      chan struct{}

	// scanMu serialises scans and guards files.
	scanMu sync.Mutex
	files  map[string]fileState
}

// New returns a stopped Scanner loading statement files into cfg from the
// directory repo resolves.
func New(cfg *sqlquery.Configuration, repo Repository, opts ...Option) *Scanner {
	s := &Scanner{
		cfg:         cfg,
		repo:        repo,
		dirName:     DefaultDirectoryName,
		interval:    DefaultPollInterval,
		parallelism: 4,
		files:       make(map[string]fileState),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.fs == nil {
		s.fs = afero.NewOsFs()
	}
	if s.logger == nil {
		s.logger = sqlquery.Logger().With("component", "scanner")
	}
	return s
}

// State returns the lifecycle state.
func (s *Scanner) State() State {
	return State(s.state.Load())
}

// Dir returns the watched directory, empty before Initialize.
func (s *Scanner) Dir() string {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	return s.dir
}

// Initialize resolves the directory, loads every statement file not loaded
// yet and starts the poll loop. Any failure is a *sqlquery.ConfigurationError
// and leaves the scanner stopped.
func (s *Scanner) Initialize(ctx context.Context) error {
	if s.cfg == nil {
		return sqlquery.ErrConfigurationNotInitialized
	}
	if !s.state.CompareAndSwap(int32(Stopped), int32(Scanning)) {
		return ErrAlreadyStarted
	}
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	dir, err := s.repo.Dir(s.dirName)
	if err != nil {
		s.state.Store(int32(Stopped))
		return &sqlquery.ConfigurationError{Op: "resolve statement directory", Err: err}
	}
	s.dir = dir

	// watches are in place before the initial scan so that no change made
	// after it goes unnoticed
	var n *notifier
	if s.notify {
		if n, err = s.startNotifier(); err != nil {
			s.logger.Warn("file system notifications unavailable, polling only", "error", err)
		}
	}
	if err = s.initialScan(ctx); err != nil {
		if n != nil {
			_ = n.Close()
		}
		s.state.Store(int32(Stopped))
		return &sqlquery.ConfigurationError{Op: "initial scan", Err: err}
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(loopCtx, s.done, n)
	s.state.Store(int32(Watching))
	s.logger.Info("scanner started", "dir", dir, "interval", s.interval, "notify", s.notify,
		"statements", len(s.cfg.MappedStatements()))
	return nil
}

// Destroy stops the poll loop and waits for it to exit. A scan in progress
// completes first.
func (s *Scanner) Destroy() error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	if s.cancel == nil {
		return nil
	}
	s.cancel()
	<-s.done
	s.cancel, s.done = nil, nil
	s.state.Store(int32(Stopped))
	s.logger.Info("scanner stopped", "dir", s.dir)
	return nil
}

// loop scans on every tick and on every notification of n, which may be
// nil. It owns n.
func (s *Scanner) loop(ctx context.Context, done chan<- struct{}, n *notifier) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var events <-chan struct{}
	if n != nil {
		defer func() { _ = n.Close() }()
		events = n.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-events:
		}
		s.Scan(ctx)
	}
}

func (s *Scanner) startNotifier() (*notifier, error) {
	if _, ok := s.fs.(*afero.OsFs); !ok {
		return nil, fmt.Errorf("file system %s has no notifications", s.fs.Name())
	}
	return newNotifier(s.dir, s.cfg.Matches, notifyDebounce, s.logger)
}

// statementFile is a matching file found by list.
type statementFile struct {
	path string
	info os.FileInfo
}

// list returns the matching files under the directory in lexical order.
func (s *Scanner) list() ([]statementFile, error) {
	var files []statementFile
	err := afero.Walk(s.fs, s.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() && s.cfg.Matches(path) {
			files = append(files, statementFile{path: path, info: info})
		}
		return nil
	})
	sort.Slice(files, func(i, j int) bool { return files[i].path < files[j].path })
	return files, err
}

func (s *Scanner) read(path string) ([]byte, error) {
	return afero.ReadFile(s.fs, path)
}

func (s *Scanner) parse(path string, data []byte) (*sqlquery.SQLSet, error) {
	return sqlquery.NewXMLSQLSetBuilder(s.cfg).Parse(bytes.NewReader(data), path)
}

// initialScan parses every file not loaded yet in parallel and applies them
// only when all of them parsed.
func (s *Scanner) initialScan(ctx context.Context) error {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()

	scannedAt := time.Now()
	files, err := s.list()
	if err != nil {
		return err
	}
	sets := make([]*sqlquery.SQLSet, len(files))
	sums := make([]uint64, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for i, file := range files {
		loaded := s.cfg.IsResourceLoaded(file.path)
		if loaded {
			s.logger.Debug("statement file already loaded", "file", file.path)
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := s.read(file.path)
			if err != nil {
				return err
			}
			if loaded {
				sums[i] = checksum(data)
				return nil
			}
			set, err := s.parse(file.path, data)
			if err != nil {
				return err
			}
			sets[i], sums[i] = set, checksum(data)
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return err
	}

	for i, file := range files {
		state := fileState{modTime: file.info.ModTime(), size: file.info.Size(), sum: sums[i], scannedAt: scannedAt}
		if set := sets[i]; set != nil {
			result, err := s.cfg.ApplyResource(set)
			if err != nil {
				return err
			}
			state.version = set.Version
			s.logger.Debug("statement file loaded", "file", file.path, "result", result.String())
		}
		s.files[file.path] = state
	}
	return nil
}

// Scan runs one poll cycle: created and modified files are parsed and
// applied, deleted files are unloaded. It never fails as a whole; problems
// are logged and reported.
func (s *Scanner) Scan(ctx context.Context) Report {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()

	report := Report{Failed: make(map[string]error)}
	scannedAt := time.Now()
	files, err := s.list()
	if err != nil {
		// a partial listing would unload files that still exist
		s.logger.Error("failed to list statement directory", "dir", s.dir, "error", err)
		report.Err = err
		return report
	}

	seen := make(map[string]struct{}, len(files))
	for _, file := range files {
		seen[file.path] = struct{}{}
		if ctx.Err() != nil {
			continue
		}
		previous, known := s.files[file.path]
		if known && previous.clean(file.info) {
			report.Unchanged++
			continue
		}

		state := fileState{modTime: file.info.ModTime(), size: file.info.Size(), scannedAt: scannedAt, version: previous.version}
		data, err := s.read(file.path)
		if err != nil {
			// not recorded, so the next scan tries again
			s.logger.Error("failed to read statement file", "file", file.path, "error", err)
			report.Failed[file.path] = err
			continue
		}
		state.sum = checksum(data)
		if known && previous.sum == state.sum {
			// touched or racily clean: same content
			state.failed = previous.failed
			s.files[file.path] = state
			report.Unchanged++
			continue
		}
		if known {
			s.logger.Debug("statement file modified", "file", file.path)
		} else {
			s.logger.Debug("statement file created", "file", file.path)
		}

		set, err := s.parse(file.path, data)
		if err != nil {
			s.logger.Error("failed to parse statement file", "file", file.path, "error", err)
			report.Failed[file.path] = err
			state.failed = true
			s.files[file.path] = state
			continue
		}
		result, err := s.cfg.ApplyResource(set)
		if err != nil {
			s.logger.Error("failed to apply statement file", "file", file.path, "error", err)
			report.Failed[file.path] = err
			state.failed = true
			s.files[file.path] = state
			continue
		}
		s.logVersion(file.path, previous.version, set.Version)
		state.version = set.Version
		s.files[file.path] = state
		report.Applied = append(report.Applied, result)
		s.logger.Info("statement file reloaded", "file", file.path,
			"added", len(result.Statements.Added),
			"replaced", len(result.Statements.Replaced),
			"removed", len(result.Statements.Removed))
	}

	if ctx.Err() != nil {
		return report
	}
	for path := range s.files {
		if _, ok := seen[path]; ok {
			continue
		}
		s.logger.Debug("statement file deleted", "file", path)
		result := s.cfg.UnloadResource(path)
		delete(s.files, path)
		report.Unloaded = append(report.Unloaded, result)
		s.logger.Info("statement file unloaded", "file", path, "removed", len(result.Statements.Removed))
	}
	return report
}

func (s *Scanner) logVersion(path string, previous, current *version.Version) {
	if previous == nil || current == nil || previous.Equal(current) {
		return
	}
	if current.LessThan(previous) {
		s.logger.Warn("statement file version went backwards", "file", path,
			"from", previous.String(), "to", current.String())
		return
	}
	s.logger.Info("statement file version changed", "file", path,
		"from", previous.String(), "to", current.String())
}
