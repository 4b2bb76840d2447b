package spool

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.Out = os.Stderr
	return l
}

func TestEncodeDecodeRoundtrip(t *testing.T) {
	e := Entry{Timestamp: 1622782862, Sender: "fred", Body: []byte("hello there")}
	got, err := Decode(Encode(e))
	require.NoError(t, err)
	assert.Equal(t, e.Timestamp, got.Timestamp)
	assert.Equal(t, e.Sender, got.Sender)
	assert.Equal(t, e.Body, got.Body)
}

func TestWriterAtomicPublish(t *testing.T) {
	dir := t.TempDir()
	w, err := Recover(dir)
	require.NoError(t, err)

	seq, err := w.Write(Entry{Timestamp: 10, Sender: "a", Body: []byte("hi")})
	require.NoError(t, err)
	assert.Equal(t, uint32(0), seq)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "0", entries[0].Name())
}

func TestRecoverRemovesPartialsAndFindsNext(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "0"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "1"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2.partial"), []byte("x"), 0o644))

	w, err := Recover(dir)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), w.NextSeq())

	_, err = os.Stat(filepath.Join(dir, "2.partial"))
	assert.True(t, os.IsNotExist(err))
}

func TestRecoverInvalidName(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "not-a-number"), []byte("x"), 0o644))

	_, err := Recover(dir)
	require.Error(t, err)
	var invalid *InvalidFilenameError
	assert.ErrorAs(t, err, &invalid)
}

func TestResetToZeroWhenSpoolObservedEmpty(t *testing.T) {
	dir := t.TempDir()
	w, err := Recover(dir)
	require.NoError(t, err)

	seq, err := w.Write(Entry{Timestamp: 1, Sender: "a", Body: []byte("x")})
	require.NoError(t, err)
	require.Equal(t, uint32(0), seq)

	require.NoError(t, os.Remove(filepath.Join(dir, "0")))

	seq, err = w.Write(Entry{Timestamp: 2, Sender: "a", Body: []byte("y")})
	require.NoError(t, err)
	assert.Equal(t, uint32(0), seq, "counter resets to 0 once the spool is observed empty")
}

func TestDrainSingleEntry(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "0"), Encode(Entry{
		Timestamp: 1622782862, Sender: "fred", Body: []byte("hello there"),
	}), 0o644))

	var got []byte
	outcome, err := Drain(testLogger(), dir, func(seq uint32, data []byte) error {
		got = data
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, Published, outcome)
	assert.Equal(t, "1622782862\nfred\nhello there", string(got))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDrainNothingToDo(t *testing.T) {
	dir := t.TempDir()
	outcome, err := Drain(testLogger(), dir, func(seq uint32, data []byte) error {
		t.Fatal("process should not be called")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, Nothing, outcome)
}

func TestDrainToleratesInteriorGap(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"0", "2"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("1\na\nb"), 0o644))
	}
	var seen []uint32
	outcome, err := Drain(testLogger(), dir, func(seq uint32, data []byte) error {
		seen = append(seen, seq)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, Published, outcome)
	assert.Equal(t, []uint32{0, 2}, seen)
}

func TestDrainFatalOnMissingEndpoint(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "0"), []byte("1\na\nb"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2"), []byte("1\na\nb"), 0o644))

	_, err := Drain(testLogger(), dir, func(seq uint32, data []byte) error {
		if seq == 0 {
			// Remove the max endpoint out from under the drain to exercise
			// the fatal-at-endpoint path on the next iteration.
			require.NoError(t, os.Remove(filepath.Join(dir, "2")))
		}
		return nil
	})
	require.Error(t, err)
}
