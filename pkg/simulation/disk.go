package simulation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rmax-ai/loadsim/pkg/blob"
)

const (
	// blockSize is the size of the block written and read back on every busy step.
	blockSize = 1 << 20

	// SharedScratchKey is the single well-known file name used in shared mode.
	SharedScratchKey = "temp_test_file"
)

// ScratchStore is the file storage the disk workload writes through.
type ScratchStore interface {
	Put(ctx context.Context, key string, reader io.Reader) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// Disk writes a 1 MiB block and reads it back on busy steps.
//
// By default every run gets its own scratch file derived from its task id.
// In shared mode all runs use SharedScratchKey, so concurrent runs overwrite,
// read and delete each other's file. Missing-file errors are tolerated in that
// mode; the race itself is not.
type Disk struct {
	store  ScratchStore
	shared bool
	block  []byte
	rand   func() float64
	idle   time.Duration
	logger *slog.Logger
}

// NewDisk creates a disk workload on top of store.
func NewDisk(store ScratchStore, shared bool, logger *slog.Logger) *Disk {
	if logger == nil {
		logger = slog.Default()
	}
	return &Disk{
		store:  store,
		shared: shared,
		block:  bytes.Repeat([]byte{'0'}, blockSize),
		rand:   rand.Float64,
		idle:   idleInterval,
		logger: logger,
	}
}

func (d *Disk) Kind() Kind { return KindDisk }

// IsScratchKey reports whether key names a file the disk workload writes:
// the shared file or a per-task "<task uuid>.bin".
func IsScratchKey(key string) bool {
	if key == SharedScratchKey {
		return true
	}
	id, ok := strings.CutSuffix(key, ".bin")
	if !ok {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// ScratchKey returns the scratch file name used by the run for taskID.
func (d *Disk) ScratchKey(taskID string) string {
	if d.shared || taskID == "" {
		return SharedScratchKey
	}
	return taskID + ".bin"
}

func (d *Disk) Run(ctx context.Context, p Params) error {
	key := d.ScratchKey(p.TaskID)
	pct := effectivePercentage(p.Percentage)
	deadline := time.Now().Add(p.Duration)

	defer func() {
		// the run context may already be canceled here
		if delErr := d.store.Delete(context.Background(), key); delErr != nil && !errors.Is(delErr, blob.ErrNotFound) {
			d.logger.Warn("scratch_cleanup_failed", "task_id", p.TaskID, "key", key, "error", delErr)
		}
	}()

	var written, read int64
	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.rand()*100 >= pct {
			if err := sleepCtx(ctx, d.idle); err != nil {
				return err
			}
			continue
		}

		if err := d.store.Put(ctx, key, bytes.NewReader(d.block)); err != nil {
			return fmt.Errorf("disk write: %w", err)
		}
		written += blockSize

		n, err := d.readBack(ctx, key)
		if err != nil {
			if d.shared && errors.Is(err, blob.ErrNotFound) {
				continue
			}
			return fmt.Errorf("disk read: %w", err)
		}
		read += n
	}

	d.logger.Debug("disk_simulation_finished", "task_id", p.TaskID, "key", key, "bytes_written", written, "bytes_read", read)
	return nil
}

func (d *Disk) readBack(ctx context.Context, key string) (int64, error) {
	rc, err := d.store.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	defer rc.Close()
	return io.Copy(io.Discard, rc)
}
