package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sschnei8/predictionMarketExploro/internal/checkpoint"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeAuto, false},
		{"auto", ModeAuto, false},
		{"fresh", ModeFresh, false},
		{"resume", ModeResume, false},
		{"incremental", ModeIncremental, false},
		{"append", "", true},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRunStateString(t *testing.T) {
	if FreshStart.String() != "fresh" || ResumePending.String() != "resume" || IncrementalPending.String() != "incremental" {
		t.Errorf("unexpected names: %v %v %v", FreshStart, ResumePending, IncrementalPending)
	}
	if got := RunState(9).String(); got != "RunState(9)" {
		t.Errorf("RunState(9).String() = %q", got)
	}
}

func TestDetectState(t *testing.T) {
	tests := []struct {
		name       string
		checkpoint bool
		metadata   bool
		output     bool
		want       RunState
	}{
		{"nothing", false, false, false, FreshStart},
		{"output only", false, false, true, FreshStart},
		{"metadata without output", false, true, false, FreshStart},
		{"metadata and output", false, true, true, IncrementalPending},
		{"checkpoint only", true, false, false, ResumePending},
		{"checkpoint wins over metadata", true, true, true, ResumePending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			dir := t.TempDir()
			output := filepath.Join(dir, "out.parquet")
			cps := checkpoint.NewFileStore(filepath.Join(dir, "cp.json"))
			mds := checkpoint.NewFileMetadataStore(filepath.Join(dir, "md.json"))

			if tt.checkpoint {
				if err := cps.Save(ctx, "c-9"); err != nil {
					t.Fatal(err)
				}
			}
			if tt.metadata {
				if err := mds.Save(ctx, time.Unix(1700000000, 0)); err != nil {
					t.Fatal(err)
				}
			}
			if tt.output {
				if err := os.WriteFile(output, []byte("x"), 0o644); err != nil {
					t.Fatal(err)
				}
			}

			d, err := DetectState(ctx, cps, mds, output)
			if err != nil {
				t.Fatalf("DetectState() error = %v", err)
			}
			if d.State != tt.want {
				t.Errorf("State = %v, want %v", d.State, tt.want)
			}
			if d.HasCheckpoint && d.Checkpoint.Cursor != "c-9" {
				t.Errorf("Checkpoint.Cursor = %q, want c-9", d.Checkpoint.Cursor)
			}
			if d.HasMetadata && d.Metadata.LastRunUnix != 1700000000 {
				t.Errorf("LastRunUnix = %d, want 1700000000", d.Metadata.LastRunUnix)
			}
		})
	}
}

func TestDetection_Resolve(t *testing.T) {
	none := Detection{State: FreshStart}
	both := Detection{State: ResumePending, HasCheckpoint: true, HasMetadata: true, OutputExists: true}

	tests := []struct {
		name string
		d    Detection
		mode Mode
		want RunState
	}{
		{"auto follows detection", both, ModeAuto, ResumePending},
		{"fresh always fresh", both, ModeFresh, FreshStart},
		{"resume with checkpoint", both, ModeResume, ResumePending},
		{"resume without checkpoint", none, ModeResume, FreshStart},
		{"incremental with metadata", both, ModeIncremental, IncrementalPending},
		{"incremental without metadata", none, ModeIncremental, FreshStart},
	}
	for _, tt := range tests {
		if got := tt.d.Resolve(tt.mode); got != tt.want {
			t.Errorf("%s: Resolve(%s) = %v, want %v", tt.name, tt.mode, got, tt.want)
		}
	}
}
