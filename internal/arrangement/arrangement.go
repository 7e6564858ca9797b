// Package arrangement implements the Arrangement Model: tracks of
// non-overlapping beat-ranged blocks that compile down to a read-only
// ArrangementIndex consumed by the Audio Engine.
package arrangement

import (
	"math"
	"sort"

	"github.com/ChangeCaps/musix/internal/audiofmt"
	"github.com/ChangeCaps/musix/internal/errors"
)

// Bounds is a half-open beat range [Start, End).
type Bounds struct {
	Start float64
	End   float64
}

func (b Bounds) overlaps(other Bounds) bool {
	return b.Start < other.End && other.Start < b.End
}

func (b Bounds) valid() bool {
	return b.End > b.Start
}

// AudioBlock is the editor-owned description of one recorded clip as it
// should be scheduled into an arrangement; the core consumes only these
// fields.
type AudioBlock struct {
	AudioID       audiofmt.SourceID
	Format        audiofmt.Format
	OffsetFrames  float32
	LenBeats      uint32
	TrueLenBeats  uint32
}

// Block is one arrangement entry on a track.
type Block struct {
	Bounds      Bounds
	AudioBlockID uint64
}

// Track is an ordered sequence of Blocks, sorted by Bounds.Start, plus a
// beat-to-block-index acceleration map for O(1) hit-testing.
type Track struct {
	blocks  []Block
	beatMap map[int64]int
}

// NewTrack returns an empty track.
func NewTrack() *Track {
	return &Track{beatMap: make(map[int64]int)}
}

// Blocks returns the track's blocks in sort order. The returned slice must
// not be mutated by the caller.
func (t *Track) Blocks() []Block {
	return t.blocks
}

// AddBlock inserts block in sort order if its bounds do not overlap any
// existing block on the track, recomputing the beat map on success.
func (t *Track) AddBlock(block Block) (int, error) {
	if !block.Bounds.valid() {
		return 0, errors.New(nil).
			Component("arrangement").
			Category(errors.CategoryValidation).
			Context("error", "block end must be greater than start").
			Build()
	}
	for _, existing := range t.blocks {
		if existing.Bounds.overlaps(block.Bounds) {
			return 0, errors.New(nil).
				Component("arrangement").
				Category(errors.CategoryValidation).
				Context("error", "block overlaps an existing block").
				Build()
		}
	}

	idx := sort.Search(len(t.blocks), func(i int) bool {
		return t.blocks[i].Bounds.Start >= block.Bounds.Start
	})
	t.blocks = append(t.blocks, Block{})
	copy(t.blocks[idx+1:], t.blocks[idx:])
	t.blocks[idx] = block

	t.rebuildBeatMap()
	return idx, nil
}

// Which end of a block MoveBlockBound targets.
type BlockEnd int

const (
	BlockStart BlockEnd = iota
	BlockEndBound
)

// MoveBlockBound moves the start or end of blocks[index] to target,
// rejecting the change if it would collide with a neighbour, invert the
// block, or the index is out of range.
func (t *Track) MoveBlockBound(index int, which BlockEnd, target float64) error {
	if index < 0 || index >= len(t.blocks) {
		return errors.New(nil).
			Component("arrangement").
			Category(errors.CategoryValidation).
			Context("error", "block index out of range").
			Build()
	}

	candidate := t.blocks[index]
	switch which {
	case BlockStart:
		candidate.Bounds.Start = target
	case BlockEndBound:
		candidate.Bounds.End = target
	}
	if !candidate.Bounds.valid() {
		return errors.New(nil).
			Component("arrangement").
			Category(errors.CategoryValidation).
			Context("error", "move would invert the block").
			Build()
	}

	if index > 0 && t.blocks[index-1].Bounds.overlaps(candidate.Bounds) {
		return errors.New(nil).
			Component("arrangement").
			Category(errors.CategoryValidation).
			Context("error", "move collides with the previous neighbour").
			Build()
	}
	if index < len(t.blocks)-1 && t.blocks[index+1].Bounds.overlaps(candidate.Bounds) {
		return errors.New(nil).
			Component("arrangement").
			Category(errors.CategoryValidation).
			Context("error", "move collides with the next neighbour").
			Build()
	}

	t.blocks[index] = candidate
	t.rebuildBeatMap()
	return nil
}

// RemoveBlock removes the block covering beat, if any, and reports whether
// one was removed.
func (t *Track) RemoveBlock(beat float64) bool {
	for i, b := range t.blocks {
		if b.Bounds.Start <= beat && beat < b.Bounds.End {
			t.blocks = append(t.blocks[:i], t.blocks[i+1:]...)
			t.rebuildBeatMap()
			return true
		}
	}
	return false
}

// RemoveAllReferencing removes every block whose AudioBlockID matches
// audioBlockID, invoked when the user deletes a clip from the editor, and
// returns how many were removed.
func (t *Track) RemoveAllReferencing(audioBlockID uint64) int {
	kept := t.blocks[:0]
	removed := 0
	for _, b := range t.blocks {
		if b.AudioBlockID == audioBlockID {
			removed++
			continue
		}
		kept = append(kept, b)
	}
	t.blocks = kept
	t.rebuildBeatMap()
	return removed
}

func (t *Track) rebuildBeatMap() {
	t.beatMap = make(map[int64]int, len(t.blocks))
	for i, b := range t.blocks {
		for beat := int64(math.Floor(b.Bounds.Start)); beat < int64(math.Ceil(b.Bounds.End)); beat++ {
			if float64(beat) >= b.Bounds.Start && float64(beat) < b.Bounds.End {
				t.beatMap[beat] = i
			}
		}
	}
}

// BlockAt returns the index of the block covering beat, if any.
func (t *Track) BlockAt(beat int64) (int, bool) {
	idx, ok := t.beatMap[beat]
	return idx, ok
}

// Arrangement is a sequence of independently-mixed Tracks plus a tactus
// length used only for visualization.
type Arrangement struct {
	Tracks       []*Track
	BeatsPerBar  uint32
}

// New returns an empty arrangement with the default beats-per-bar (4).
func New() *Arrangement {
	return &Arrangement{BeatsPerBar: 4}
}

// AddTrack appends a new empty track and returns its index.
func (a *Arrangement) AddTrack() int {
	a.Tracks = append(a.Tracks, NewTrack())
	return len(a.Tracks) - 1
}

// RemoveTrack removes the track at idx.
func (a *Arrangement) RemoveTrack(idx int) error {
	if idx < 0 || idx >= len(a.Tracks) {
		return errors.New(nil).
			Component("arrangement").
			Category(errors.CategoryValidation).
			Context("error", "track index out of range").
			Build()
	}
	a.Tracks = append(a.Tracks[:idx], a.Tracks[idx+1:]...)
	return nil
}

// Entry is one scheduled clip reference at a beat.
type Entry struct {
	AudioID     audiofmt.SourceID
	BeatsOffset float32
}

// Index is the compiled read-only mapping from beat to the clips scheduled
// there, handed to the engine as a single message.
type Index struct {
	beats map[int64][]Entry
}

// EntriesAt returns the entries scheduled at beat, if any.
func (ix *Index) EntriesAt(beat int64) ([]Entry, bool) {
	if ix == nil {
		return nil, false
	}
	entries, ok := ix.beats[beat]
	return entries, ok
}

// Compile builds an ArrangementIndex from the arrangement plus the audio
// blocks referenced by its blocks, keyed by AudioBlockID.
//
// For each block, cycles = ceil((end-start)/len_beats) full repetitions of
// its AudioBlock fit in the beat range. For each cycle c and each in-clip
// beat b in [0, true_len_beats), an entry {audio_id, beats_offset = b -
// offset_beats} is written at beats[start + c*len_beats + b], except that
// beats at or past the block's end are skipped, truncating the last cycle.
func Compile(a *Arrangement, audioBlocks map[uint64]AudioBlock) *Index {
	ix := &Index{beats: make(map[int64][]Entry)}
	for _, track := range a.Tracks {
		for _, block := range track.blocks {
			ab, ok := audioBlocks[block.AudioBlockID]
			if !ok || ab.LenBeats == 0 {
				continue
			}
			span := block.Bounds.End - block.Bounds.Start
			cycles := int(math.Ceil(span / float64(ab.LenBeats)))

			offsetBeats := offsetInBeats(ab)

			for c := 0; c < cycles; c++ {
				cycleStart := block.Bounds.Start + float64(c)*float64(ab.LenBeats)
				for b := uint32(0); b < ab.TrueLenBeats; b++ {
					beat := int64(math.Floor(cycleStart)) + int64(b)
					if float64(beat) >= block.Bounds.End {
						continue
					}
					entry := Entry{
						AudioID:     ab.AudioID,
						BeatsOffset: float32(b) - offsetBeats,
					}
					ix.beats[beat] = append(ix.beats[beat], entry)
				}
			}
		}
	}
	return ix
}

func offsetInBeats(ab AudioBlock) float32 {
	if ab.Format.SampleRate == 0 {
		return 0
	}
	framesPerBeat := float32(ab.Format.SampleRate) / float32(ab.Format.BeatsPerSecond)
	if framesPerBeat == 0 {
		return 0
	}
	return ab.OffsetFrames / framesPerBeat
}
