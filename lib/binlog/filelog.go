package binlog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/ValentinKolb/sKV/lib/resp"
	"github.com/puzpuzpuz/xsync/v3"
)

const (
	filePrefix = "slot-"
	fileSuffix = ".binlog"
)

// SlotFile returns the path of the log file of a slot inside dir
func SlotFile(dir string, slotID uint64) string {
	return filepath.Join(dir, fmt.Sprintf("%s%04d%s", filePrefix, slotID, fileSuffix))
}

// --------------------------------------------------------------------------
// File Log
// --------------------------------------------------------------------------

// FileLog appends the entries of every slot to its own file in a directory
type FileLog struct {
	dir      string
	fsync    bool
	mu       sync.Mutex // guards opening segments
	segments *xsync.MapOf[uint64, *segment]
}

type segment struct {
	mu sync.Mutex
	f  *os.File
	w  *bufio.Writer
}

// OpenFileLog opens (or creates) the log directory. With fsync set every
// Append is synced to disk before it returns.
func OpenFileLog(dir string, fsync bool) (*FileLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create binlog dir: %w", err)
	}
	return &FileLog{
		dir:      dir,
		fsync:    fsync,
		segments: xsync.NewMapOf[uint64, *segment](),
	}, nil
}

func (l *FileLog) segment(slotID uint64) (*segment, error) {
	if seg, ok := l.segments.Load(slotID); ok {
		return seg, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if seg, ok := l.segments.Load(slotID); ok {
		return seg, nil
	}
	f, err := os.OpenFile(SlotFile(l.dir, slotID), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open binlog of slot %d: %w", slotID, err)
	}
	seg := &segment{f: f, w: bufio.NewWriter(f)}
	l.segments.Store(slotID, seg)
	return seg, nil
}

func (l *FileLog) Append(slotID uint64, entries [][]byte) error {
	if len(entries) == 0 {
		return nil
	}
	seg, err := l.segment(slotID)
	if err != nil {
		return err
	}

	seg.mu.Lock()
	defer seg.mu.Unlock()
	for _, e := range entries {
		if _, err := seg.w.Write(e); err != nil {
			return fmt.Errorf("write binlog of slot %d: %w", slotID, err)
		}
	}
	if err := seg.w.Flush(); err != nil {
		return fmt.Errorf("flush binlog of slot %d: %w", slotID, err)
	}
	if l.fsync {
		if err := seg.f.Sync(); err != nil {
			return fmt.Errorf("sync binlog of slot %d: %w", slotID, err)
		}
	}
	return nil
}

// Close flushes and closes all open files
func (l *FileLog) Close() error {
	var errs []error
	l.segments.Range(func(slotID uint64, seg *segment) bool {
		seg.mu.Lock()
		defer seg.mu.Unlock()
		if err := seg.w.Flush(); err != nil {
			errs = append(errs, err)
		}
		if err := seg.f.Close(); err != nil {
			errs = append(errs, err)
		}
		l.segments.Delete(slotID)
		return true
	})
	return errors.Join(errs...)
}

// --------------------------------------------------------------------------
// Replay
// --------------------------------------------------------------------------

// Replay reads the log files in dir (in slot order) and calls apply for every
// entry. It returns the number of entries applied. A missing directory is an
// empty log. Errors returned by apply are logged and skipped, a corrupt file
// aborts the replay.
func Replay(dir string, apply func(slotID uint64, argv []string) error) (int, error) {
	files, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read binlog dir: %w", err)
	}

	var slots []uint64
	for _, f := range files {
		name := f.Name()
		if f.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		id, err := strconv.ParseUint(strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix), 10, 64)
		if err != nil {
			log.Warningf("ignoring unexpected file %s in binlog dir", name)
			continue
		}
		slots = append(slots, id)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })

	total := 0
	for _, slotID := range slots {
		n, err := replayFile(SlotFile(dir, slotID), slotID, apply)
		total += n
		if err != nil {
			return total, err
		}
		log.Infof("replayed %d entries of slot %d", n, slotID)
	}
	return total, nil
}

func replayFile(path string, slotID uint64, apply func(slotID uint64, argv []string) error) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open binlog of slot %d: %w", slotID, err)
	}
	defer f.Close()

	rd := resp.NewReader(bufio.NewReader(f))
	n := 0
	for {
		argv, err := rd.ReadCommand()
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return n, fmt.Errorf("corrupt binlog of slot %d after %d entries: %w", slotID, n, err)
		}
		if err := apply(slotID, argv); err != nil {
			log.Warningf("replay slot %d: %v", slotID, err)
			continue
		}
		n++
	}
}
