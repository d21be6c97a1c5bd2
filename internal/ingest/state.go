package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/sschnei8/predictionMarketExploro/internal/checkpoint"
)

// RunState is how a run starts, decided once before the first request.
type RunState int

const (
	// FreshStart fetches everything into a new output file.
	FreshStart RunState = iota
	// ResumePending continues an unfinished run from its checkpoint.
	ResumePending
	// IncrementalPending fetches only what appeared since the last clean run.
	IncrementalPending
)

func (s RunState) String() string {
	switch s {
	case FreshStart:
		return "fresh"
	case ResumePending:
		return "resume"
	case IncrementalPending:
		return "incremental"
	default:
		return fmt.Sprintf("RunState(%d)", int(s))
	}
}

// Mode is the run mode requested by the caller.
type Mode string

const (
	ModeAuto        Mode = "auto"
	ModeFresh       Mode = "fresh"
	ModeResume      Mode = "resume"
	ModeIncremental Mode = "incremental"
)

// ParseMode validates a mode name. Empty means auto.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeAuto:
		return ModeAuto, nil
	case ModeFresh, ModeResume, ModeIncremental:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown mode %q (want auto, fresh, resume or incremental)", s)
	}
}

// Detection is the persisted state found before a run.
type Detection struct {
	State         RunState
	Checkpoint    checkpoint.Checkpoint
	HasCheckpoint bool
	Metadata      checkpoint.RunMetadata
	HasMetadata   bool
	OutputExists  bool
}

// DetectState inspects the checkpoint, the run metadata and the output file.
// A checkpoint means the last run did not finish; otherwise metadata plus an
// existing output means the next run can be incremental.
func DetectState(ctx context.Context, cps checkpoint.Store, mds checkpoint.MetadataStore, output string) (Detection, error) {
	var d Detection
	var err error

	d.Checkpoint, d.HasCheckpoint, err = cps.Load(ctx)
	if err != nil {
		return Detection{}, fmt.Errorf("load checkpoint: %w", err)
	}
	d.Metadata, d.HasMetadata, err = mds.Load(ctx)
	if err != nil {
		return Detection{}, fmt.Errorf("load run metadata: %w", err)
	}
	d.OutputExists, err = fileExists(output)
	if err != nil {
		return Detection{}, err
	}

	switch {
	case d.HasCheckpoint:
		d.State = ResumePending
	case d.HasMetadata && d.OutputExists:
		d.State = IncrementalPending
	default:
		d.State = FreshStart
	}
	return d, nil
}

// Resolve turns a requested mode into the state the run will use. Asking for
// resume without a checkpoint, or incremental without metadata, falls back
// to a fresh start.
func (d Detection) Resolve(mode Mode) RunState {
	switch mode {
	case ModeFresh:
		return FreshStart
	case ModeResume:
		if d.HasCheckpoint {
			return ResumePending
		}
		return FreshStart
	case ModeIncremental:
		if d.HasMetadata {
			return IncrementalPending
		}
		return FreshStart
	default:
		return d.State
	}
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", path, err)
}

func removeIfExists(path string) (bool, error) {
	err := os.Remove(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}
