package audit

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLog(t *testing.T) *Log {
	t.Helper()
	return NewLog(filepath.Join(t.TempDir(), "analytics.json"))
}

func TestLogAppendAndTotals(t *testing.T) {
	log := newTestLog(t)

	require.NoError(t, log.Append(Entry{Timestamp: 100, UserID: 1, Username: "alice", Status: StatusVerified, Reason: ReasonNFTVerified, NFTCount: 3, WalletAddress: "W1"}))
	require.NoError(t, log.Append(Entry{Timestamp: 101, UserID: 2, Username: "bob", Status: StatusRemoved, Reason: ReasonNoNFT}))
	require.NoError(t, log.Append(Entry{Timestamp: 102, UserID: 3, Username: "carol", Status: StatusRemoved, Reason: ReasonTimeout}))

	verified, removed, err := log.Totals()
	require.NoError(t, err)
	assert.Equal(t, 1, verified)
	assert.Equal(t, 2, removed)
}

func TestLogRecent(t *testing.T) {
	log := newTestLog(t)

	for i := int64(1); i <= 5; i++ {
		require.NoError(t, log.Append(Entry{Timestamp: i, UserID: i, Status: StatusVerified, Reason: ReasonNFTVerified}))
	}

	recent, err := log.Recent(2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, int64(4), recent[0].UserID)
	assert.Equal(t, int64(5), recent[1].UserID)

	all, err := log.Recent(100)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestLogEmptyFile(t *testing.T) {
	log := newTestLog(t)

	verified, removed, err := log.Totals()
	require.NoError(t, err)
	assert.Zero(t, verified)
	assert.Zero(t, removed)

	recent, err := log.Recent(10)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestLogEntryShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "analytics.json")
	log := NewLog(path)

	require.NoError(t, log.Append(Entry{Timestamp: 42, UserID: 7, Username: "dave", Status: StatusRemoved, Reason: ReasonTimeout}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"timestamp":42,"user_id":7,"username":"dave","status":"removed","reason":"timeout"}`, string(data))
}

func TestLogSkipsTornLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "analytics.json")
	log := NewLog(path)

	require.NoError(t, log.Append(Entry{Timestamp: 1, UserID: 1, Status: StatusVerified, Reason: ReasonNFTVerified}))
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"timestamp":2,"user_`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	verified, removed, err := log.Totals()
	require.NoError(t, err)
	assert.Equal(t, 1, verified)
	assert.Zero(t, removed)
}
