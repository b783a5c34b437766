package repo

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/blendvc/blendvc/modules/blend/container"
	"github.com/blendvc/blendvc/modules/plumbing"
)

func ctxBg() context.Context { return context.Background() }

func bytesReader(b []byte) *bytes.Reader { return bytes.NewReader(b) }

// mustTip resolves branch's current tip to a Hash, for tests that need to
// chain a ReadCommit off it.
func mustTip(t *testing.T, r *Repository, branch string) plumbing.Hash {
	t.Helper()
	tip, err := r.db.ReadBranchTip(ctxBg(), branch)
	require.NoError(t, err)
	hash, err := plumbing.NewHashEx(tip)
	require.NoError(t, err)
	return hash
}

func testOptions(t *testing.T, tick *int) Options {
	t.Helper()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return Options{
		Dir: t.TempDir(),
		Now: func() time.Time {
			*tick++
			return base.Add(time.Duration(*tick) * time.Minute)
		},
	}
}

// writeContainerFile builds a minimal well-formed container with one
// block per payload and writes it (uncompressed; container.ReadFile
// accepts plain framing) to dir/name.
func writeContainerFile(t *testing.T, dir, name string, payloads ...string) string {
	t.Helper()
	header := container.Header{PointerWidth: container.PointerWidth64, Endianness: container.LittleEndian, Version: [3]byte{'4', '0', '0'}}
	blocks := make([]container.Block, len(payloads))
	for i, p := range payloads {
		blocks[i] = container.Block{
			Code:    [4]byte{'D', 'A', 'T', 'A'},
			Address: uint64(0x1000 + i),
			DNA:     1,
			Count:   1,
			Payload: []byte(p),
		}
	}
	data, err := container.EncodeBytes(header, blocks)
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestInitialCommitScenario(t *testing.T) {
	var tick int
	opts := testOptions(t, &tick)
	workDir := t.TempDir()
	f1 := writeContainerFile(t, workDir, "f1.blend", "a", "b")

	r, err := Init(opts, "proj-1", f1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	checkpoints, err := r.LogCheckpoints(plumbing.MainBranch)
	require.NoError(t, err)
	require.Len(t, checkpoints, 1)
	hashF1 := checkpoints[0].Hash

	f2 := writeContainerFile(t, workDir, "f2.blend", "a", "b", "c")
	commit2, err := r.Commit(f2, "m2")
	require.NoError(t, err)

	checkpoints, err = r.LogCheckpoints(plumbing.MainBranch)
	require.NoError(t, err)
	require.Len(t, checkpoints, 2)

	tip, err := r.db.ReadBranchTip(ctxBg(), plumbing.MainBranch)
	require.NoError(t, err)
	require.Equal(t, commit2.Hash.String(), tip)
	require.Equal(t, hashF1.String(), commit2.PrevCommitHash)
}

func TestLinearHistoryAncestorsNewestFirst(t *testing.T) {
	var tick int
	opts := testOptions(t, &tick)
	workDir := t.TempDir()
	f1 := writeContainerFile(t, workDir, "f1.blend", "a")
	r, err := Init(opts, "proj", f1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	hashF1, err := r.ReadCommit(mustTip(t, r, plumbing.MainBranch))
	require.NoError(t, err)

	f2 := writeContainerFile(t, workDir, "f2.blend", "a", "b")
	commit2, err := r.Commit(f2, "m2")
	require.NoError(t, err)

	f3 := writeContainerFile(t, workDir, "f3.blend", "a", "b", "c")
	commit3, err := r.Commit(f3, "m3")
	require.NoError(t, err)

	tip, err := r.db.ReadBranchTip(ctxBg(), plumbing.MainBranch)
	require.NoError(t, err)
	require.Equal(t, commit3.Hash.String(), tip)

	ancestors, err := r.LogCheckpoints(plumbing.MainBranch)
	require.NoError(t, err)
	require.Len(t, ancestors, 3)
	require.Equal(t, []string{commit3.Hash.String(), commit2.Hash.String(), hashF1.Hash.String()},
		[]string{ancestors[0].Hash.String(), ancestors[1].Hash.String(), ancestors[2].Hash.String()})
}

func TestBranchingScenario(t *testing.T) {
	var tick int
	opts := testOptions(t, &tick)
	workDir := t.TempDir()
	f1 := writeContainerFile(t, workDir, "f1.blend", "a")
	r, err := Init(opts, "proj", f1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	f2 := writeContainerFile(t, workDir, "f2.blend", "a", "b")
	_, err = r.Commit(f2, "m2")
	require.NoError(t, err)
	f3 := writeContainerFile(t, workDir, "f3.blend", "a", "b", "c")
	commit3, err := r.Commit(f3, "m3")
	require.NoError(t, err)

	require.NoError(t, r.NewBranch("dev"))
	current, err := r.CurrentBranch()
	require.NoError(t, err)
	require.Equal(t, "dev", current)

	f4 := writeContainerFile(t, workDir, "f4.blend", "a", "b", "c", "d")
	commit4, err := r.Commit(f4, "m4")
	require.NoError(t, err)

	devTip, err := r.db.ReadBranchTip(ctxBg(), "dev")
	require.NoError(t, err)
	require.Equal(t, commit4.Hash.String(), devTip)

	mainTip, err := r.db.ReadBranchTip(ctxBg(), plumbing.MainBranch)
	require.NoError(t, err)
	require.Equal(t, commit3.Hash.String(), mainTip)

	devAncestors, err := r.LogCheckpoints("dev")
	require.NoError(t, err)
	require.Len(t, devAncestors, 4)
}

func TestRestoreScenario(t *testing.T) {
	var tick int
	opts := testOptions(t, &tick)
	workDir := t.TempDir()
	f1 := writeContainerFile(t, workDir, "f1.blend", "a")
	r, err := Init(opts, "proj", f1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	f2 := writeContainerFile(t, workDir, "f2.blend", "a", "b")
	commit2, err := r.Commit(f2, "m2")
	require.NoError(t, err)
	f3 := writeContainerFile(t, workDir, "f3.blend", "a", "b", "c")
	commit3, err := r.Commit(f3, "m3")
	require.NoError(t, err)

	restorePath := filepath.Join(workDir, "restored.blend")
	restored, err := r.Restore(restorePath, commit2.Hash)
	require.NoError(t, err)
	require.Equal(t, commit2.Hash, restored.Hash)

	raw, err := container.ReadFile(restorePath)
	require.NoError(t, err)
	_, blocks, err := container.Decode(bytesReader(raw))
	require.NoError(t, err)
	require.Len(t, blocks, 2)

	branchName, err := r.CurrentBranch()
	require.NoError(t, err)
	require.Equal(t, plumbing.MainBranch, branchName)

	mainTip, err := r.db.ReadBranchTip(ctxBg(), plumbing.MainBranch)
	require.NoError(t, err)
	require.Equal(t, commit3.Hash.String(), mainTip)

	current, err := r.CurrentCommit()
	require.NoError(t, err)
	require.Equal(t, commit2.Hash, current.Hash)
}

func TestDeleteBranchRefusesMainAndCurrent(t *testing.T) {
	var tick int
	opts := testOptions(t, &tick)
	workDir := t.TempDir()
	f1 := writeContainerFile(t, workDir, "f1.blend", "a")
	r, err := Init(opts, "proj", f1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	err = r.DeleteBranch(plumbing.MainBranch)
	require.Error(t, err)
	require.True(t, IsRecoverable(err))

	require.NoError(t, r.NewBranch("dev"))
	err = r.DeleteBranch("dev")
	require.Error(t, err)
	require.True(t, IsRecoverable(err))

	err = r.DeleteBranch("nope")
	require.Error(t, err)
	require.True(t, IsRecoverable(err))
}
