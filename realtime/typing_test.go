package realtime

import (
	"testing"
	"time"

	"campushub/domain"

	"github.com/stretchr/testify/require"
)

const typingTimeout = 3 * time.Second

func newTrackerAt(start time.Time) (*TypingTracker, *time.Time) {
	now := start
	tracker := NewTypingTracker(typingTimeout)
	tracker.now = func() time.Time { return now }
	return tracker, &now
}

func TestTyping_Debounce_Within_Window(t *testing.T) {
	req := require.New(t)
	tracker, now := newTrackerAt(time.Now())
	room := domain.GroupRoom("g1")

	// First signal notifies
	req.True(tracker.Start(room, "alice"))
	// A key-repeat signal inside the window does not
	*now = now.Add(time.Second)
	req.False(tracker.Start(room, "alice"))
	// After the window elapses with no stop, it notifies again
	*now = now.Add(typingTimeout)
	req.True(tracker.Start(room, "alice"))
}

func TestTyping_Stop_Only_Reports_Existing_State(t *testing.T) {
	req := require.New(t)
	tracker, _ := newTrackerAt(time.Now())
	room := domain.GroupRoom("g1")

	req.False(tracker.Stop(room, "alice"))
	tracker.Start(room, "alice")
	req.True(tracker.Stop(room, "alice"))
	req.False(tracker.Stop(room, "alice"))
}

func TestTyping_ActiveTypists_Ordered_And_Expiry_Checked_On_Read(t *testing.T) {
	req := require.New(t)
	tracker, now := newTrackerAt(time.Now())
	room := domain.GroupRoom("g1")

	tracker.Start(room, "alice")
	*now = now.Add(time.Second)
	tracker.Start(room, "bob")

	// Insertion order for display
	req.Equal([]string{"alice", "bob"}, tracker.ActiveTypists(room))

	// Alice's entry passes the timeout; bob refreshed his
	*now = now.Add(typingTimeout - 500*time.Millisecond)
	tracker.Start(room, "bob")
	req.Equal([]string{"bob"}, tracker.ActiveTypists(room))
}

func TestTyping_Sweep_Returns_Expired_Keys(t *testing.T) {
	req := require.New(t)
	tracker, now := newTrackerAt(time.Now())
	g1, g2 := domain.GroupRoom("g1"), domain.GroupRoom("g2")

	tracker.Start(g1, "alice")
	tracker.Start(g2, "alice")
	*now = now.Add(2 * time.Second)
	tracker.Start(g2, "bob")

	*now = now.Add(2 * time.Second)
	expired := tracker.Sweep()
	req.ElementsMatch([]TypingKey{
		{Room: g1, UserID: "alice"},
		{Room: g2, UserID: "alice"},
	}, expired)

	// Swept entries are gone; bob survives
	req.Empty(tracker.ActiveTypists(g1))
	req.Equal([]string{"bob"}, tracker.ActiveTypists(g2))
	req.Empty(tracker.Sweep())
}

func TestTyping_ClearIdentity(t *testing.T) {
	req := require.New(t)
	tracker, _ := newTrackerAt(time.Now())
	g1 := domain.GroupRoom("g1")
	conv := domain.ConversationRoom("alice", "bob")

	tracker.Start(g1, "alice")
	tracker.Start(conv, "alice")
	tracker.Start(g1, "bob")

	cleared := tracker.ClearIdentity("alice")
	req.ElementsMatch([]domain.Room{g1, conv}, cleared)
	req.Equal([]string{"bob"}, tracker.ActiveTypists(g1))
	req.Empty(tracker.ActiveTypists(conv))
}
