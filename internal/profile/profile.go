// Package profile implements the profile & membership resolver (spec
// §4.2): get_profile, get_username, is_admin, list_channel_members,
// backed by a bounded LRU+TTL cache (spec §3 UserProfile lifecycle).
//
// The LRU+TTL cache uses container/list (stdlib): no example repo in the
// corpus vendors an LRU library (no hashicorp/golang-lru or similar was
// found), so this is the minimal idiomatic stdlib primitive rather than a
// hand-rolled substitute for an available library — see DESIGN.md.
package profile

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/EPFLiGHT/brightdaybot-sub001/internal/errs"
	"github.com/EPFLiGHT/brightdaybot-sub001/internal/store"
)

// UserProfile mirrors spec §3's cached (not authoritative) entity.
type UserProfile struct {
	UserID                 string
	DisplayName            string
	RealName               string
	PreferredName          string
	Title                  string
	Timezone               string
	TimezoneOffsetSeconds  int
	PhotoURLs              map[string]string // resolution label -> URL
	IsDeleted              bool
	IsBot                  bool
	CustomFields           map[string]string
	FetchedAt              time.Time
}

// PlatformClient is the subset of the external chat-platform API this
// component consumes (spec §6: users_info, users_profile_get,
// conversations_members).
type PlatformClient interface {
	UsersInfo(ctx context.Context, userID string) (UserProfile, error)
	ConversationsMembers(ctx context.Context, channelID string, cursor string) (members []string, nextCursor string, err error)
	IsPlatformAdmin(ctx context.Context, userID string) (bool, error)
}

const (
	maxCacheEntries = 1000
	defaultTTL      = 24 * time.Hour
)

type cacheEntry struct {
	userID  string
	profile UserProfile
}

// Resolver resolves and caches profiles, and lists channel membership.
type Resolver struct {
	platform PlatformClient
	store    *store.Store
	ttl      time.Duration

	mu      sync.Mutex
	ll      *list.List // front = most recently used
	entries map[string]*list.Element
}

// New builds a Resolver. ttl defaults to 24h if zero (spec §3).
func New(platform PlatformClient, st *store.Store, ttl time.Duration) *Resolver {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Resolver{
		platform: platform,
		store:    st,
		ttl:      ttl,
		ll:       list.New(),
		entries:  make(map[string]*list.Element),
	}
}

// GetProfile returns the cached profile if fresh, otherwise fetches and
// caches it, evicting the oldest entry if the cache is at capacity
// (spec §3: "oldest-first eviction when full").
func (r *Resolver) GetProfile(ctx context.Context, userID string) (UserProfile, error) {
	if p, ok := r.lookupFresh(userID); ok {
		return p, nil
	}
	p, err := r.platform.UsersInfo(ctx, userID)
	if err != nil {
		return UserProfile{}, errs.Wrap(errs.UpstreamTransient, "fetch user profile", err).WithField("user_id", userID)
	}
	p.FetchedAt = time.Now()
	r.put(userID, p)
	return p, nil
}

func (r *Resolver) lookupFresh(userID string) (UserProfile, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	el, ok := r.entries[userID]
	if !ok {
		return UserProfile{}, false
	}
	entry := el.Value.(*cacheEntry)
	if time.Since(entry.profile.FetchedAt) > r.ttl {
		r.ll.Remove(el)
		delete(r.entries, userID)
		return UserProfile{}, false
	}
	r.ll.MoveToFront(el)
	return entry.profile, true
}

func (r *Resolver) put(userID string, p UserProfile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if el, ok := r.entries[userID]; ok {
		el.Value.(*cacheEntry).profile = p
		r.ll.MoveToFront(el)
		return
	}
	el := r.ll.PushFront(&cacheEntry{userID: userID, profile: p})
	r.entries[userID] = el
	for len(r.entries) > maxCacheEntries {
		oldest := r.ll.Back()
		if oldest == nil {
			break
		}
		r.ll.Remove(oldest)
		delete(r.entries, oldest.Value.(*cacheEntry).userID)
	}
}

// GetUsername returns the best display name for a user (preferred >
// display > real), fetching the profile if needed.
func (r *Resolver) GetUsername(ctx context.Context, userID string) (string, error) {
	p, err := r.GetProfile(ctx, userID)
	if err != nil {
		return "", err
	}
	switch {
	case p.PreferredName != "":
		return p.PreferredName, nil
	case p.DisplayName != "":
		return p.DisplayName, nil
	default:
		return p.RealName, nil
	}
}

// IsAdmin checks the persisted admin list first (synchronous file read),
// falling back to the platform's admin flag (spec §4.2).
func (r *Resolver) IsAdmin(ctx context.Context, userID string) (bool, error) {
	admins, err := r.store.LoadAdmins()
	if err != nil {
		return false, err
	}
	for _, a := range admins {
		if a == userID {
			return true, nil
		}
	}
	isAdmin, err := r.platform.IsPlatformAdmin(ctx, userID)
	if err != nil {
		return false, errs.Wrap(errs.UpstreamTransient, "check platform admin flag", err)
	}
	return isAdmin, nil
}

// ListChannelMembers paginates conversations_members until exhausted
// (spec §4.2: "Membership listing paginates until exhausted").
func (r *Resolver) ListChannelMembers(ctx context.Context, channelID string) ([]string, error) {
	var all []string
	cursor := ""
	for {
		members, next, err := r.platform.ConversationsMembers(ctx, channelID, cursor)
		if err != nil {
			return nil, errs.Wrap(errs.UpstreamTransient, "list channel members", err).WithField("channel_id", channelID)
		}
		all = append(all, members...)
		if next == "" {
			break
		}
		cursor = next
	}
	return all, nil
}

// IsChannelMember reports whether userID appears in channel's member
// list (spec §4.8.2 step 2: "reconfirm eligibility immediately before
// posting"). It pages through the full membership list rather than
// caching it, since membership can change between a celebration being
// queued and posted.
func (r *Resolver) IsChannelMember(ctx context.Context, channel, userID string) (bool, error) {
	members, err := r.ListChannelMembers(ctx, channel)
	if err != nil {
		return false, err
	}
	for _, m := range members {
		if m == userID {
			return true, nil
		}
	}
	return false, nil
}

// InvalidateProfile drops a cached profile, e.g. when membership-related
// events indicate staleness.
func (r *Resolver) InvalidateProfile(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if el, ok := r.entries[userID]; ok {
		r.ll.Remove(el)
		delete(r.entries, userID)
	}
}

// CacheSize reports the current number of cached entries, for ops status.
func (r *Resolver) CacheSize() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
