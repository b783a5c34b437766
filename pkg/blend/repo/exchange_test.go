package repo

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDescendantExportScenario(t *testing.T) {
	var tick int
	opts := testOptions(t, &tick)
	workDir := t.TempDir()
	f1 := writeContainerFile(t, workDir, "f1.blend", "a")
	r, err := Init(opts, "proj", f1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	// Branches fork at main's current tip, so ab is created while main is
	// still at commit 1, and xs while main is at commit 3: 1→2→3→4,
	// 1→a→b, 3→x.
	require.NoError(t, r.NewBranch("ab"))
	fa := writeContainerFile(t, workDir, "fa.blend", "a", "x")
	_, err = r.Commit(fa, "a")
	require.NoError(t, err)
	fb := writeContainerFile(t, workDir, "fb.blend", "a", "x", "y")
	_, err = r.Commit(fb, "b")
	require.NoError(t, err)

	_, err = r.Switch(filepath.Join(workDir, "switch-main.blend"), "main")
	require.NoError(t, err)
	f2 := writeContainerFile(t, workDir, "f2.blend", "a", "b")
	_, err = r.Commit(f2, "2")
	require.NoError(t, err)
	f3 := writeContainerFile(t, workDir, "f3.blend", "a", "b", "c")
	commit3, err := r.Commit(f3, "3")
	require.NoError(t, err)

	require.NoError(t, r.NewBranch("xs"))
	fx := writeContainerFile(t, workDir, "fx.blend", "a", "b", "c", "z")
	_, err = r.Commit(fx, "x")
	require.NoError(t, err)

	_, err = r.Switch(filepath.Join(workDir, "switch-main-2.blend"), "main")
	require.NoError(t, err)
	f4 := writeContainerFile(t, workDir, "f4.blend", "a", "b", "c", "d")
	_, err = r.Commit(f4, "4")
	require.NoError(t, err)

	packet, err := r.Export(commit3.Hash)
	require.NoError(t, err)

	hashes := make(map[string]bool)
	for _, c := range packet.Commits {
		hashes[c.Message] = true
	}
	require.True(t, hashes["3"])
	require.True(t, hashes["4"])
	require.True(t, hashes["x"])
	require.False(t, hashes["2"])
	require.False(t, hashes["a"])
	require.False(t, hashes["b"])
}

func TestImportMergingBranchesScenario(t *testing.T) {
	var tickA, tickB int
	optsA := testOptions(t, &tickA)
	optsB := testOptions(t, &tickB)
	workDir := t.TempDir()

	f1 := writeContainerFile(t, workDir, "f1.blend", "a")
	a, err := Init(optsA, "proj", f1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	f2 := writeContainerFile(t, workDir, "f2.blend", "a", "b")
	_, err = a.Commit(f2, "2")
	require.NoError(t, err)
	f3 := writeContainerFile(t, workDir, "f3.blend", "a", "b", "c")
	commit3, err := a.Commit(f3, "3")
	require.NoError(t, err)

	// B starts as a copy of A's history up to commit 1 only.
	b, err := Init(optsB, "proj", f1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	f4 := writeContainerFile(t, workDir, "f4.blend", "a", "b", "c", "d")
	commit4, err := a.Commit(f4, "4")
	require.NoError(t, err)

	require.NoError(t, a.NewBranch("ab"))
	fa := writeContainerFile(t, workDir, "fa.blend", "a", "x")
	_, err = a.Commit(fa, "a")
	require.NoError(t, err)
	fb := writeContainerFile(t, workDir, "fb.blend", "a", "x", "y")
	commitB, err := a.Commit(fb, "b")
	require.NoError(t, err)

	_, err = a.Switch(filepath.Join(workDir, "switch-main.blend"), "main")
	require.NoError(t, err)
	require.NoError(t, a.NewBranch("xs"))
	fx := writeContainerFile(t, workDir, "fx.blend", "a", "b", "c", "z")
	commitX, err := a.Commit(fx, "x")
	require.NoError(t, err)

	packet, err := a.Export(commit3.Hash)
	require.NoError(t, err)
	require.NoError(t, b.Import(packet))

	mainTip, err := b.db.ReadBranchTip(ctxBg(), "main")
	require.NoError(t, err)
	require.Equal(t, commit4.Hash.String(), mainTip)

	abTip, err := b.db.ReadBranchTip(ctxBg(), "ab")
	require.NoError(t, err)
	require.Equal(t, commitB.Hash.String(), abTip)

	xsTip, err := b.db.ReadBranchTip(ctxBg(), "xs")
	require.NoError(t, err)
	require.Equal(t, commitX.Hash.String(), xsTip)
}

func TestSyncRoundTripsBetweenTwoRepositories(t *testing.T) {
	var tickA, tickB int
	optsA := testOptions(t, &tickA)
	optsB := testOptions(t, &tickB)
	workDir := t.TempDir()

	f1 := writeContainerFile(t, workDir, "f1.blend", "a")
	a, err := Init(optsA, "proj", f1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	b, err := Init(optsB, "proj", f1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	f2 := writeContainerFile(t, workDir, "f2.blend", "a", "b")
	commit2, err := a.Commit(f2, "2")
	require.NoError(t, err)

	// b pulls a's new commit by addressing its request directly at a's
	// server-side handler, in place of an HTTP round trip.
	require.NoError(t, b.Sync(a.HandleSync))

	bTip, err := b.db.ReadBranchTip(ctxBg(), "main")
	require.NoError(t, err)
	require.Equal(t, commit2.Hash.String(), bTip)

	remoteTip, err := b.db.ReadRemoteBranchTip(ctxBg(), "main")
	require.NoError(t, err)
	require.Equal(t, commit2.Hash.String(), remoteTip)
}
