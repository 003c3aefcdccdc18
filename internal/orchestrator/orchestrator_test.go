package orchestrator

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nftgate/internal/audit"
	"nftgate/internal/domain"
	"nftgate/internal/storage/memory"
)

const testGroupID int64 = -1001234

type fakeAdmin struct {
	mu       sync.Mutex
	messages []string
	banned   []int64
	unbanned []int64
}

func (a *fakeAdmin) SendMessage(_ context.Context, _ int64, text string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.messages = append(a.messages, text)
	return nil
}

func (a *fakeAdmin) BanMember(_ context.Context, _ int64, userID int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.banned = append(a.banned, userID)
	return nil
}

func (a *fakeAdmin) UnbanMember(_ context.Context, _ int64, userID int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.unbanned = append(a.unbanned, userID)
	return nil
}

func (a *fakeAdmin) GetMemberStatus(context.Context, int64, int64) (string, error) {
	return "member", nil
}

func (a *fakeAdmin) kicks() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.banned)
}

type testRig struct {
	orch  *Orchestrator
	admin *fakeAdmin
	audit *audit.Log
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	admin := &fakeAdmin{}
	log := audit.NewLog(filepath.Join(t.TempDir(), "analytics.json"))
	orch := New(Options{
		Store:         memory.NewSessionStore(),
		Audit:         log,
		Admin:         admin,
		GroupID:       testGroupID,
		VerifyBaseURL: "https://verify.example.com",
		Timeout:       time.Hour,
	})
	return &testRig{orch: orch, admin: admin, audit: log}
}

func (r *testRig) auditEntries(t *testing.T) []audit.Entry {
	t.Helper()
	entries, err := r.audit.Recent(100)
	require.NoError(t, err)
	return entries
}

func TestHandleJoinStartsSession(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	require.NoError(t, rig.orch.HandleJoin(ctx, 1, "alice"))

	pending, err := rig.orch.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pending)

	require.Len(t, rig.admin.messages, 1)
	assert.Contains(t, rig.admin.messages[0], "@alice")
	assert.Contains(t, rig.admin.messages[0], "https://verify.example.com?tg_id=1&token=")
	assert.Empty(t, rig.auditEntries(t))
}

func TestHandleResultVerified(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	require.NoError(t, rig.orch.HandleJoin(ctx, 1, "alice"))

	err := rig.orch.HandleResult(ctx, domain.VerificationResult{
		UserID:        1,
		Username:      "alice",
		WalletAddress: "W1",
		HasNFT:        true,
		NFTCount:      3,
	})
	require.NoError(t, err)

	pending, err := rig.orch.Pending(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)
	assert.Zero(t, rig.admin.kicks())

	entries := rig.auditEntries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.StatusVerified, entries[0].Status)
	assert.Equal(t, audit.ReasonNFTVerified, entries[0].Reason)
	assert.Equal(t, 3, entries[0].NFTCount)
	assert.Equal(t, "W1", entries[0].WalletAddress)
}

func TestHandleResultNoNFTKicks(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	require.NoError(t, rig.orch.HandleJoin(ctx, 2, "bob"))

	err := rig.orch.HandleResult(ctx, domain.VerificationResult{UserID: 2, Username: "bob", WalletAddress: "W2", NFTCount: 2})
	require.NoError(t, err)

	assert.Equal(t, []int64{2}, rig.admin.banned)
	assert.Equal(t, []int64{2}, rig.admin.unbanned, "kick must unban so the user can rejoin")

	entries := rig.auditEntries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.StatusRemoved, entries[0].Status)
	assert.Equal(t, audit.ReasonNoNFT, entries[0].Reason)
	assert.Equal(t, 2, entries[0].NFTCount, "a below-threshold count is still recorded")
}

func TestHandleResultStaleIsNoOp(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	err := rig.orch.HandleResult(ctx, domain.VerificationResult{UserID: 99, HasNFT: true})
	require.NoError(t, err)

	assert.Zero(t, rig.admin.kicks())
	assert.Empty(t, rig.admin.messages)
	assert.Empty(t, rig.auditEntries(t))
}

func TestTimeoutKicksExactlyOnce(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	require.NoError(t, rig.orch.HandleJoin(ctx, 3, "carol"))

	key := domain.SessionKey{UserID: 3, ChatID: testGroupID}
	rig.orch.HandleTimeout(ctx, key)
	rig.orch.HandleTimeout(ctx, key)

	assert.Equal(t, 1, rig.admin.kicks())
	entries := rig.auditEntries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ReasonTimeout, entries[0].Reason)
}

func TestResultThenTimeoutOneTerminal(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	require.NoError(t, rig.orch.HandleJoin(ctx, 4, "dave"))

	require.NoError(t, rig.orch.HandleResult(ctx, domain.VerificationResult{UserID: 4, HasNFT: true, NFTCount: 1}))
	rig.orch.HandleTimeout(ctx, domain.SessionKey{UserID: 4, ChatID: testGroupID})

	assert.Zero(t, rig.admin.kicks())
	entries := rig.auditEntries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ReasonNFTVerified, entries[0].Reason)
}

func TestTimeoutThenResultOneTerminal(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	require.NoError(t, rig.orch.HandleJoin(ctx, 5, "erin"))

	rig.orch.HandleTimeout(ctx, domain.SessionKey{UserID: 5, ChatID: testGroupID})
	require.NoError(t, rig.orch.HandleResult(ctx, domain.VerificationResult{UserID: 5, HasNFT: true, NFTCount: 1}))

	assert.Equal(t, 1, rig.admin.kicks())
	entries := rig.auditEntries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ReasonTimeout, entries[0].Reason)
}

func TestHandleLeaveDiscardsSilently(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	require.NoError(t, rig.orch.HandleJoin(ctx, 6, "frank"))

	rig.orch.HandleLeave(ctx, 6)

	pending, err := rig.orch.Pending(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)
	assert.Zero(t, rig.admin.kicks())
	assert.Empty(t, rig.auditEntries(t))

	// Leaving again is harmless.
	rig.orch.HandleLeave(ctx, 6)
}

func TestRejoinReplacesSession(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	require.NoError(t, rig.orch.HandleJoin(ctx, 7, "grace"))
	require.NoError(t, rig.orch.HandleJoin(ctx, 7, "grace"))

	pending, err := rig.orch.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pending)

	require.Len(t, rig.admin.messages, 2)
	tokenOf := func(msg string) string {
		i := strings.LastIndex(msg, "token=")
		require.GreaterOrEqual(t, i, 0)
		return strings.Fields(msg[i:])[0]
	}
	assert.NotEqual(t, tokenOf(rig.admin.messages[0]), tokenOf(rig.admin.messages[1]),
		"rejoin must issue a fresh token")
}

func tokenFromMessage(t *testing.T, msg string) string {
	t.Helper()
	i := strings.LastIndex(msg, "token=")
	require.GreaterOrEqual(t, i, 0)
	return strings.TrimPrefix(strings.Fields(msg[i:])[0], "token=")
}

func TestStaleTimerSparesRejoinedSession(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()
	key := domain.SessionKey{UserID: 9, ChatID: testGroupID}

	require.NoError(t, rig.orch.HandleJoin(ctx, 9, "henry"))
	require.NoError(t, rig.orch.HandleJoin(ctx, 9, "henry"))
	require.Len(t, rig.admin.messages, 2)
	oldToken := tokenFromMessage(t, rig.admin.messages[0])
	newToken := tokenFromMessage(t, rig.admin.messages[1])

	// The discarded session's timer fires. The replacement owns the key
	// now; nothing may happen.
	rig.orch.expireSession(ctx, key, oldToken)

	pending, err := rig.orch.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pending, "the rejoined session must survive the old timer")
	assert.Zero(t, rig.admin.kicks())
	assert.Empty(t, rig.auditEntries(t))

	// The replacement's own timer still works.
	rig.orch.expireSession(ctx, key, newToken)
	assert.Equal(t, 1, rig.admin.kicks())
	entries := rig.auditEntries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ReasonTimeout, entries[0].Reason)
}

func TestRejoinRestartsTimeoutClock(t *testing.T) {
	admin := &fakeAdmin{}
	log := audit.NewLog(filepath.Join(t.TempDir(), "analytics.json"))
	orch := New(Options{
		Store:         memory.NewSessionStore(),
		Audit:         log,
		Admin:         admin,
		GroupID:       testGroupID,
		VerifyBaseURL: "https://verify.example.com",
		Timeout:       400 * time.Millisecond,
	})
	ctx := context.Background()

	require.NoError(t, orch.HandleJoin(ctx, 10, "iris"))
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, orch.HandleJoin(ctx, 10, "iris"))

	// Past the first join's deadline, before the rejoin's.
	time.Sleep(300 * time.Millisecond)
	pending, err := orch.Pending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pending, "rejoin must get its full verification window")
	assert.Zero(t, admin.kicks())

	// Past the rejoin's deadline.
	require.Eventually(t, func() bool { return admin.kicks() == 1 }, 2*time.Second, 20*time.Millisecond)
	entries, err := log.Recent(10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ReasonTimeout, entries[0].Reason)
}

func TestUsernameFallsBackToID(t *testing.T) {
	rig := newTestRig(t)
	ctx := context.Background()

	require.NoError(t, rig.orch.HandleJoin(ctx, 8, ""))
	require.Len(t, rig.admin.messages, 1)
	assert.Contains(t, rig.admin.messages[0], "user 8")
}
