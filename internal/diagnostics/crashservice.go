package diagnostics

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ImageSuffix is the extension of memory images written by CrashService.
const ImageSuffix = ".dmp"

// maxStackBytes bounds the all-goroutine dump in a memory image.
const maxStackBytes = 8 << 20

// CompletionFunc is called once after a memory image has been written (or
// writing it failed). It returns whether its own work succeeded.
type CompletionFunc func(imagePath string, succeeded bool) bool

// CrashService captures unrecovered panics into memory images under a dump
// directory and hands each image to a single completion callback. Fatal
// runtime errors that cannot be recovered are routed to a crash output
// file in the same directory.
type CrashService struct {
	dir        string
	logger     *slog.Logger
	onComplete CompletionFunc

	fired atomic.Bool

	mu       sync.Mutex
	fatalOut *os.File
}

// NewCrashService creates the dump directory and returns a service that
// reports through onComplete.
func NewCrashService(dir string, onComplete CompletionFunc, logger *slog.Logger) (*CrashService, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating dump dir: %w", err)
	}
	return &CrashService{
		dir:        dir,
		logger:     logger,
		onComplete: onComplete,
	}, nil
}

// Dir returns the dump directory.
func (s *CrashService) Dir() string {
	return s.dir
}

// EnableFatalOutput routes the runtime's fatal error output (unrecoverable
// throws, concurrent map writes, out of memory) to fatal-<uuid>.log in the
// dump directory. The file is removed on Close if nothing was written.
func (s *CrashService) EnableFatalOutput() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fatalOut != nil {
		return s.fatalOut.Name(), nil
	}

	path := filepath.Join(s.dir, "fatal-"+uuid.NewString()+".log")
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("creating fatal output file: %w", err)
	}
	if err := debug.SetCrashOutput(f, debug.CrashOptions{}); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("setting crash output: %w", err)
	}
	s.fatalOut = f
	return path, nil
}

// WriteImage writes a memory image for panicValue: the value followed by
// the stacks of all goroutines.
func (s *CrashService) WriteImage(panicValue any) (string, error) {
	path := filepath.Join(s.dir, uuid.NewString()+ImageSuffix)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return path, fmt.Errorf("creating memory image: %w", err)
	}

	_, werr := fmt.Fprintf(f, "panic: %v\ntime: %s\npid: %d\ngo: %s %s/%s\n\n%s",
		panicValue,
		time.Now().UTC().Format(time.RFC3339),
		os.Getpid(),
		runtime.Version(), runtime.GOOS, runtime.GOARCH,
		allStacks(),
	)
	if werr == nil {
		werr = f.Sync()
	}
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return path, fmt.Errorf("writing memory image: %w", werr)
	}
	return path, nil
}

// Guard is a defer-compatible crash handler. It writes a memory image for
// a panic, runs the completion callback, then re-panics.
// Usage: defer svc.Guard()
func (s *CrashService) Guard() {
	if r := recover(); r != nil {
		s.Capture(r)
		panic(r)
	}
}

// Go runs fn in a new goroutine under Guard.
func (s *CrashService) Go(fn func()) {
	go func() {
		defer s.Guard()
		fn()
	}()
}

// Fired reports whether a crash has been handled.
func (s *CrashService) Fired() bool {
	return s.fired.Load()
}

// Capture writes the memory image for a recovered panic value and runs the
// completion callback. Only the first call per service does anything; a
// second panic racing the first is left to propagate.
func (s *CrashService) Capture(r any) {
	if !s.fired.CompareAndSwap(false, true) {
		return
	}

	path, err := s.WriteImage(r)
	succeeded := err == nil
	if err != nil {
		s.logger.Error("failed to write memory image", "error", err, "panic", r)
	} else {
		s.logger.Error("memory image written", "path", path, "panic", r)
	}

	if s.onComplete != nil {
		s.onComplete(path, succeeded)
	}
}

// Close stops routing fatal output to the dump directory.
func (s *CrashService) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fatalOut == nil {
		return nil
	}
	_ = debug.SetCrashOutput(nil, debug.CrashOptions{})

	f := s.fatalOut
	s.fatalOut = nil
	info, statErr := f.Stat()
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing fatal output file: %w", err)
	}
	if statErr == nil && info.Size() == 0 {
		_ = os.Remove(f.Name())
	}
	return nil
}

func allStacks() []byte {
	buf := make([]byte, 64<<10)
	for {
		n := runtime.Stack(buf, true)
		if n < len(buf) || len(buf) >= maxStackBytes {
			return buf[:n]
		}
		buf = make([]byte, 2*len(buf))
	}
}
