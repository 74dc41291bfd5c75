package media

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const defaultReadConcurrency = 8

// Aggregator turns a flat file list into shots grouped by basename.
type Aggregator struct {
	refs        *ContentRefs
	logger      zerolog.Logger
	concurrency int
}

func NewAggregator(refs *ContentRefs, concurrency int, logger zerolog.Logger) *Aggregator {
	if concurrency <= 0 {
		concurrency = defaultReadConcurrency
	}
	return &Aggregator{
		refs:        refs,
		logger:      logger.With().Str("component", "aggregator").Logger(),
		concurrency: concurrency,
	}
}

type group struct {
	images []RawFile
	videos []RawFile
	notes  []RawFile
}

func (g *group) empty() bool {
	return len(g.images)+len(g.videos)+len(g.notes) == 0
}

type ScanStats struct {
	Files     int    `json:"files"`
	Ignored   int    `json:"ignored"`
	Skipped   int    `json:"skipped"`
	Dropped   int    `json:"dropped"`
	Shots     int    `json:"shots"`
	NoteBytes uint64 `json:"note_bytes"`
}

// Aggregate groups files by basename and reads every note. A group whose
// notes cannot be read is dropped and logged; the rest of the scan goes on.
// Covers are left unresolved.
func (a *Aggregator) Aggregate(ctx context.Context, files []RawFile) (*Collection, error) {
	coll, _, err := a.AggregateWithStats(ctx, files)
	return coll, err
}

func (a *Aggregator) AggregateWithStats(ctx context.Context, files []RawFile) (*Collection, ScanStats, error) {
	stats := ScanStats{Files: len(files)}
	if len(files) == 0 {
		return nil, stats, ErrEmptyInput
	}

	groups := make(map[string]*group)
	for _, f := range files {
		name := f.Name()
		id, ok := BaseName(name)
		if !ok {
			stats.Skipped++
			continue
		}

		kind := Classify(name)
		if kind == KindIgnored {
			stats.Ignored++
			continue
		}

		g := groups[id]
		if g == nil {
			g = &group{}
			groups[id] = g
		}
		switch kind {
		case KindImage:
			g.images = append(g.images, f)
		case KindVideo:
			g.videos = append(g.videos, f)
		case KindNote:
			g.notes = append(g.notes, f)
		}
	}

	ids := make([]string, 0, len(groups))
	for id, g := range groups {
		if g.empty() {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)

	notes := make([][]NoteFile, len(ids))
	failures := make([]error, len(ids))

	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(a.concurrency)
	for i, id := range ids {
		g := groups[id]
		eg.Go(func() error {
			if err := egctx.Err(); err != nil {
				return err
			}
			n, err := readNotes(g.notes)
			if err != nil {
				failures[i] = err
				return nil
			}
			notes[i] = n
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, stats, err
	}
	if err := ctx.Err(); err != nil {
		return nil, stats, err
	}

	shots := make([]*Shot, 0, len(ids))
	var owned []string
	for i, id := range ids {
		if failures[i] != nil {
			stats.Dropped++
			a.logger.Warn().
				Err(failures[i]).
				Str("shot", id).
				Msg("dropping shot, failed to read notes")
			continue
		}

		g := groups[id]
		shot := &Shot{
			ID:        id,
			Images:    a.register(g.images, KindImage, &owned),
			Videos:    a.register(g.videos, KindVideo, &owned),
			Notes:     notes[i],
			CoverKind: CoverNone,
		}
		for _, note := range shot.Notes {
			stats.NoteBytes += uint64(len(note.Content))
		}
		shots = append(shots, shot)
	}
	stats.Shots = len(shots)

	a.logger.Info().
		Int("files", stats.Files).
		Int("shots", stats.Shots).
		Int("ignored", stats.Ignored).
		Int("skipped", stats.Skipped).
		Int("dropped", stats.Dropped).
		Str("notes", humanize.Bytes(stats.NoteBytes)).
		Msg("aggregation completed")

	return newCollection(shots, a.refs, owned), stats, nil
}

func (a *Aggregator) register(files []RawFile, kind Kind, owned *[]string) []MediaFile {
	sortRawFiles(files)

	out := make([]MediaFile, 0, len(files))
	for _, f := range files {
		ref := a.refs.Register(f)
		*owned = append(*owned, ref)
		out = append(out, MediaFile{
			Name: f.Name(),
			Ref:  ref,
			Kind: kind,
		})
	}
	return out
}

func readNotes(files []RawFile) ([]NoteFile, error) {
	notes := make([]NoteFile, 0, len(files))
	for _, f := range files {
		content, err := readAll(f)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name(), err)
		}

		format := NotePlain
		if isStructuredNote(f.Name()) {
			format = NoteStructured
		}
		notes = append(notes, NoteFile{
			Name:    f.Name(),
			Content: content,
			Format:  format,
		})
	}

	sort.SliceStable(notes, func(i, j int) bool {
		if notes[i].Name != notes[j].Name {
			return notes[i].Name < notes[j].Name
		}
		return notes[i].Content < notes[j].Content
	})
	return notes, nil
}

func readAll(f RawFile) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

type pather interface {
	Path() string
}

// sortRawFiles orders by name; same-named files from different folders are
// ordered by path so the result does not depend on input order.
func sortRawFiles(files []RawFile) {
	sort.SliceStable(files, func(i, j int) bool {
		ni, nj := files[i].Name(), files[j].Name()
		if ni != nj {
			return ni < nj
		}
		pi, iok := files[i].(pather)
		pj, jok := files[j].(pather)
		if iok && jok {
			return pi.Path() < pj.Path()
		}
		return false
	})
}
