package profile

import (
	"context"
	"testing"
	"time"

	"github.com/EPFLiGHT/brightdaybot-sub001/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePlatform struct {
	fetches int
	profiles map[string]UserProfile
	admins   map[string]bool
	members  []string
}

func (f *fakePlatform) UsersInfo(ctx context.Context, userID string) (UserProfile, error) {
	f.fetches++
	p, ok := f.profiles[userID]
	if !ok {
		p = UserProfile{UserID: userID, DisplayName: "user-" + userID}
	}
	return p, nil
}

func (f *fakePlatform) ConversationsMembers(ctx context.Context, channelID, cursor string) ([]string, string, error) {
	if cursor == "" {
		return f.members[:len(f.members)/2+1], "page2", nil
	}
	return f.members[len(f.members)/2+1:], "", nil
}

func (f *fakePlatform) IsPlatformAdmin(ctx context.Context, userID string) (bool, error) {
	return f.admins[userID], nil
}

func newTestResolver(t *testing.T, platform *fakePlatform) *Resolver {
	t.Helper()
	s, err := store.New(t.TempDir())
	require.NoError(t, err)
	return New(platform, s, time.Hour)
}

func TestGetProfileCachesAndReusesEntry(t *testing.T) {
	platform := &fakePlatform{profiles: map[string]UserProfile{"U1": {UserID: "U1", DisplayName: "Ada"}}}
	r := newTestResolver(t, platform)

	p1, err := r.GetProfile(context.Background(), "U1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", p1.DisplayName)

	_, err = r.GetProfile(context.Background(), "U1")
	require.NoError(t, err)
	assert.Equal(t, 1, platform.fetches, "second call should hit the cache")
}

func TestGetProfileRefetchesAfterTTLExpiry(t *testing.T) {
	platform := &fakePlatform{profiles: map[string]UserProfile{"U1": {UserID: "U1", DisplayName: "Ada"}}}
	s, err := store.New(t.TempDir())
	require.NoError(t, err)
	r := New(platform, s, time.Millisecond)

	_, err = r.GetProfile(context.Background(), "U1")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = r.GetProfile(context.Background(), "U1")
	require.NoError(t, err)
	assert.Equal(t, 2, platform.fetches)
}

func TestGetUsernamePrefersPreferredName(t *testing.T) {
	platform := &fakePlatform{profiles: map[string]UserProfile{
		"U1": {UserID: "U1", DisplayName: "display", RealName: "real", PreferredName: "preferred"},
	}}
	r := newTestResolver(t, platform)
	name, err := r.GetUsername(context.Background(), "U1")
	require.NoError(t, err)
	assert.Equal(t, "preferred", name)
}

func TestIsAdminChecksPersistedListFirst(t *testing.T) {
	platform := &fakePlatform{admins: map[string]bool{"U2": true}}
	s, err := store.New(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.SaveAdmins([]string{"U1"}))
	r := New(platform, s, time.Hour)

	isAdmin, err := r.IsAdmin(context.Background(), "U1")
	require.NoError(t, err)
	assert.True(t, isAdmin, "persisted list wins without consulting platform")

	isAdmin, err = r.IsAdmin(context.Background(), "U2")
	require.NoError(t, err)
	assert.True(t, isAdmin, "falls back to platform admin flag")

	isAdmin, err = r.IsAdmin(context.Background(), "U3")
	require.NoError(t, err)
	assert.False(t, isAdmin)
}

func TestListChannelMembersPaginatesUntilExhausted(t *testing.T) {
	platform := &fakePlatform{members: []string{"U1", "U2", "U3", "U4", "U5"}}
	r := newTestResolver(t, platform)
	members, err := r.ListChannelMembers(context.Background(), "C1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"U1", "U2", "U3", "U4", "U5"}, members)
}

func TestCacheEvictsOldestWhenFull(t *testing.T) {
	platform := &fakePlatform{}
	s, err := store.New(t.TempDir())
	require.NoError(t, err)
	r := New(platform, s, time.Hour)
	// Directly exercise the eviction path without fetching 1000+ live
	// profiles: push entries past the bound and confirm size is capped.
	for i := 0; i < maxCacheEntries+10; i++ {
		r.put(string(rune(i)), UserProfile{FetchedAt: time.Now()})
	}
	assert.Equal(t, maxCacheEntries, r.CacheSize())
}
