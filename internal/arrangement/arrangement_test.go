package arrangement

import (
	"testing"

	"github.com/ChangeCaps/musix/internal/audiofmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func blockFmt(bps float64) audiofmt.Format {
	return audiofmt.Format{SampleRate: 100, Channels: 1, BeatsPerSecond: bps}
}

func TestAddBlockRejectsOverlap(t *testing.T) {
	track := NewTrack()
	_, err := track.AddBlock(Block{Bounds: Bounds{Start: 0, End: 4}, AudioBlockID: 1})
	require.NoError(t, err)

	_, err = track.AddBlock(Block{Bounds: Bounds{Start: 2, End: 6}, AudioBlockID: 2})
	require.Error(t, err)
}

func TestAddBlockSortsByStart(t *testing.T) {
	track := NewTrack()
	_, err := track.AddBlock(Block{Bounds: Bounds{Start: 6, End: 10}, AudioBlockID: 1})
	require.NoError(t, err)
	_, err = track.AddBlock(Block{Bounds: Bounds{Start: 0, End: 4}, AudioBlockID: 2})
	require.NoError(t, err)

	blocks := track.Blocks()
	require.Len(t, blocks, 2)
	assert.Equal(t, uint64(2), blocks[0].AudioBlockID)
	assert.Equal(t, uint64(1), blocks[1].AudioBlockID)
}

func TestMoveBlockBoundRejectsCollision(t *testing.T) {
	track := NewTrack()
	_, err := track.AddBlock(Block{Bounds: Bounds{Start: 0, End: 4}, AudioBlockID: 1})
	require.NoError(t, err)
	_, err = track.AddBlock(Block{Bounds: Bounds{Start: 4, End: 8}, AudioBlockID: 2})
	require.NoError(t, err)

	err = track.MoveBlockBound(0, BlockEndBound, 5)
	require.Error(t, err)
}

func TestMoveBlockBoundRejectsInversion(t *testing.T) {
	track := NewTrack()
	_, err := track.AddBlock(Block{Bounds: Bounds{Start: 0, End: 4}, AudioBlockID: 1})
	require.NoError(t, err)

	err = track.MoveBlockBound(0, BlockEndBound, 0)
	require.Error(t, err)
}

func TestAddThenRemoveRestoresTrack(t *testing.T) {
	track := NewTrack()
	_, err := track.AddBlock(Block{Bounds: Bounds{Start: 0, End: 4}, AudioBlockID: 1})
	require.NoError(t, err)

	removed := track.RemoveBlock(2)
	assert.True(t, removed)
	assert.Empty(t, track.Blocks())
}

func TestRemoveAllReferencing(t *testing.T) {
	track := NewTrack()
	_, _ = track.AddBlock(Block{Bounds: Bounds{Start: 0, End: 4}, AudioBlockID: 1})
	_, _ = track.AddBlock(Block{Bounds: Bounds{Start: 4, End: 8}, AudioBlockID: 2})
	_, _ = track.AddBlock(Block{Bounds: Bounds{Start: 8, End: 12}, AudioBlockID: 1})

	removed := track.RemoveAllReferencing(1)
	assert.Equal(t, 2, removed)
	assert.Len(t, track.Blocks(), 1)
}

// TestCompileScenarioS2 pins the "two blocks, no gap bleed" example.
func TestCompileScenarioS2(t *testing.T) {
	a := New()
	a.AddTrack()
	track := a.Tracks[0]
	_, err := track.AddBlock(Block{Bounds: Bounds{Start: 0, End: 4}, AudioBlockID: 1})
	require.NoError(t, err)
	_, err = track.AddBlock(Block{Bounds: Bounds{Start: 6, End: 10}, AudioBlockID: 1})
	require.NoError(t, err)

	audioBlocks := map[uint64]AudioBlock{
		1: {AudioID: 100, Format: blockFmt(2), LenBeats: 2, TrueLenBeats: 2},
	}
	ix := Compile(a, audioBlocks)

	for _, beat := range []int64{0, 1, 2, 3, 6, 7, 8, 9} {
		_, ok := ix.EntriesAt(beat)
		assert.True(t, ok, "expected entry at beat %d", beat)
	}
	for _, beat := range []int64{4, 5} {
		_, ok := ix.EntriesAt(beat)
		assert.False(t, ok, "expected no entry at beat %d", beat)
	}
}

// TestCompileScenarioS3 pins the "loop longer than clip, last cycle truncated" example.
func TestCompileScenarioS3(t *testing.T) {
	a := New()
	a.AddTrack()
	track := a.Tracks[0]
	_, err := track.AddBlock(Block{Bounds: Bounds{Start: 0, End: 5}, AudioBlockID: 1})
	require.NoError(t, err)

	audioBlocks := map[uint64]AudioBlock{
		1: {AudioID: 100, Format: blockFmt(2), LenBeats: 2, TrueLenBeats: 2},
	}
	ix := Compile(a, audioBlocks)

	for _, beat := range []int64{0, 1, 2, 3, 4} {
		_, ok := ix.EntriesAt(beat)
		assert.True(t, ok, "expected entry at beat %d", beat)
	}
	_, ok := ix.EntriesAt(5)
	assert.False(t, ok)
}

// TestCompileScenarioS4 pins the negative beats_offset example for an
// offset block.
func TestCompileScenarioS4(t *testing.T) {
	a := New()
	a.AddTrack()
	track := a.Tracks[0]
	_, err := track.AddBlock(Block{Bounds: Bounds{Start: 4, End: 6}, AudioBlockID: 1})
	require.NoError(t, err)

	format := blockFmt(2) // 100 samples/sec, 2 beats/sec => 50 frames/beat
	audioBlocks := map[uint64]AudioBlock{
		1: {AudioID: 100, Format: format, OffsetFrames: 25, LenBeats: 2, TrueLenBeats: 2},
	}
	ix := Compile(a, audioBlocks)

	entries, ok := ix.EntriesAt(4)
	require.True(t, ok)
	require.Len(t, entries, 1)
	assert.InDelta(t, -0.5, entries[0].BeatsOffset, 1e-6)
}

// TestTrackInvariantsUnderRandomOps uses rapid to generate sequences of
// AddBlock calls (overlapping ones are rejected) and checks the well-formed,
// sorted, non-overlapping invariants after each one.
func TestTrackInvariantsUnderRandomOps(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		track := NewTrack()
		nextID := uint64(1)

		steps := rapid.IntRange(1, 30).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			start := rapid.Float64Range(0, 100).Draw(rt, "start")
			length := rapid.Float64Range(0.1, 10).Draw(rt, "length")
			_, _ = track.AddBlock(Block{
				Bounds:       Bounds{Start: start, End: start + length},
				AudioBlockID: nextID,
			})
			nextID++

			blocks := track.Blocks()
			for j := 0; j < len(blocks); j++ {
				if !(blocks[j].Bounds.End > blocks[j].Bounds.Start) {
					rt.Fatalf("block %d is not well-formed: %+v", j, blocks[j])
				}
				if j > 0 && blocks[j-1].Bounds.Start > blocks[j].Bounds.Start {
					rt.Fatalf("blocks not sorted by start at index %d", j)
				}
				if j > 0 && blocks[j-1].Bounds.End > blocks[j].Bounds.Start {
					rt.Fatalf("blocks %d and %d overlap", j-1, j)
				}
			}
		}
	})
}

func TestCompileIsPureFunctionOfInputs(t *testing.T) {
	a := New()
	a.AddTrack()
	_, _ = a.Tracks[0].AddBlock(Block{Bounds: Bounds{Start: 0, End: 4}, AudioBlockID: 1})
	audioBlocks := map[uint64]AudioBlock{
		1: {AudioID: 1, Format: blockFmt(2), LenBeats: 2, TrueLenBeats: 2},
	}

	ix1 := Compile(a, audioBlocks)
	ix2 := Compile(a, audioBlocks)

	for beat := int64(0); beat < 4; beat++ {
		e1, ok1 := ix1.EntriesAt(beat)
		e2, ok2 := ix2.EntriesAt(beat)
		assert.Equal(t, ok1, ok2)
		assert.Equal(t, e1, e2)
	}
}
