// Package faces runs the map-only face detection job: every record with at
// least one face is re-emitted with the faces outlined and the count appended
// to its key.
package faces

import (
	"bytes"
	"context"
	"fmt"
	"image/color"
	"log/slog"
	"strconv"

	"github.com/google/uuid"

	"github.com/papercomputeco/hvision/pkg/dataset"
	"github.com/papercomputeco/hvision/pkg/detection"
	"github.com/papercomputeco/hvision/pkg/errs"
	"github.com/papercomputeco/hvision/pkg/imaging"
	"github.com/papercomputeco/hvision/pkg/mapreduce"
)

// TypeEncoded marks a record that was raw on input and re-encoded as PNG.
const TypeEncoded = "encoded"

// BoxColor outlines detected faces.
var BoxColor = color.NRGBA{R: 255, A: 255}

// Config configures a face detection run.
type Config struct {
	// NewDetector builds one detector per map worker.
	NewDetector func() (detection.Detector, error)

	Scheduler mapreduce.Config
	Logger    *slog.Logger
}

// Outcome is the result of a detection run.
type Outcome struct {
	RunID    string
	Records  []dataset.Record
	Faces    int
	Counters map[string]int64
}

// Run detects faces in every record. Records without faces are dropped;
// undecodable ones are skipped and counted.
func Run(ctx context.Context, cfg Config, records []dataset.Record) (*Outcome, error) {
	if cfg.NewDetector == nil {
		return nil, fmt.Errorf("%w: face detection needs a detector", errs.ErrConfiguration)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	runID := uuid.NewString()
	sched := cfg.Scheduler
	sched.Logger = cfg.Logger.With("run_id", runID)

	job := mapreduce.MapOnlyJob[dataset.Record, string, []byte]{
		Name: "detect",
		NewMapper: func(context.Context, int) (mapreduce.Mapper[dataset.Record, string, []byte], error) {
			det, err := cfg.NewDetector()
			if err != nil {
				return nil, err
			}
			return &mapper{det: det}, nil
		},
	}

	res, err := mapreduce.RunMapOnly(ctx, sched, job, records)
	if err != nil {
		return nil, err
	}

	out := &Outcome{RunID: runID, Counters: res.Counters}
	for _, p := range res.Output {
		rec := dataset.Record{Key: p.Key, Value: p.Value}
		if md, err := rec.Metadata(); err == nil {
			n, _ := md.Int(dataset.KeyFaceCount)
			out.Faces += n
		}
		out.Records = append(out.Records, rec)
	}
	return out, nil
}

type mapper struct {
	det detection.Detector
}

func (m *mapper) Map(_ context.Context, rec dataset.Record, emit func(string, []byte)) error {
	img, md, err := rec.Image()
	if err != nil {
		return err
	}

	found, err := m.det.Detect(img)
	if err != nil {
		return fmt.Errorf("%w: detecting faces: %w", errs.ErrRecordDecode, err)
	}
	if len(found) == 0 {
		return nil
	}

	canvas := imaging.NRGBA(img)
	for _, f := range found {
		imaging.DrawRect(canvas, f.Bounds, BoxColor)
	}

	ext := md.Ext()
	if md.IsRaw() {
		md = md.With(dataset.KeyType, TypeEncoded).With(dataset.KeyExt, "png")
		ext = "png"
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, canvas, ext); err != nil {
		return fmt.Errorf("%w: encoding %s: %w", errs.ErrRecordDecode, ext, err)
	}

	emit(md.With(dataset.KeyFaceCount, strconv.Itoa(len(found))).String(), buf.Bytes())
	return nil
}

func (m *mapper) Close() error { return nil }
