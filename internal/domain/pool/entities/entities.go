package entities

import (
	"fmt"
	"strings"
	"time"
)

// Platform identifies the social network a worker account belongs to
type Platform string

const (
	PlatformTelegram  Platform = "telegram"
	PlatformVK        Platform = "vk"
	PlatformInstagram Platform = "instagram"
)

// Platforms lists every supported platform
var Platforms = []Platform{PlatformTelegram, PlatformVK, PlatformInstagram}

// ParsePlatform converts a user supplied name into a Platform
func ParsePlatform(s string) (Platform, bool) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Platforms {
		if p == known {
			return p, true
		}
	}
	return "", false
}

// AccountStatus is the durable lifecycle status of a worker account
type AccountStatus string

const (
	StatusActive      AccountStatus = "active"
	StatusInactive    AccountStatus = "inactive"
	StatusPending     AccountStatus = "pending"
	StatusPending2FA  AccountStatus = "pending_2fa"
	StatusError       AccountStatus = "error"
	StatusInvalid     AccountStatus = "invalid"
	StatusBanned      AccountStatus = "banned"
	StatusRateLimited AccountStatus = "rate_limited"
)

// Strategy is the policy used to pick among eligible accounts
type Strategy string

const (
	StrategyRoundRobin Strategy = "round_robin"
	StrategyLeastUsed  Strategy = "least_used"
	StrategyRandom     Strategy = "random"
)

// Valid reports whether s is a known strategy
func (s Strategy) Valid() bool {
	switch s {
	case StrategyRoundRobin, StrategyLeastUsed, StrategyRandom:
		return true
	}
	return false
}

// AuthState is the pool's cached view of an account's authorization
type AuthState string

const (
	AuthUnknown      AuthState = "unknown"
	AuthAuthorized   AuthState = "authorized"
	AuthNeeds2FA     AuthState = "needs_2fa"
	AuthUnauthorized AuthState = "unauthorized"
)

// DefaultRequestLimit is applied to accounts stored without a limit
const DefaultRequestLimit = 1000

// TelegramCredentials reference an MTProto application and a stored session
type TelegramCredentials struct {
	APIID      int
	APIHash    string
	Phone      string
	SessionRef string
}

// VKCredentials hold a VK API bearer token
type VKCredentials struct {
	Token string
}

// InstagramCredentials hold login data and a serialized cookie jar
type InstagramCredentials struct {
	Login    string
	Password string
	Cookies  map[string]string
}

// WorkerAccount is a credential set for one platform belonging to one user
type WorkerAccount struct {
	ID           string
	OwnerUserKey string
	Platform     Platform

	Telegram  *TelegramCredentials
	VK        *VKCredentials
	Instagram *InstagramCredentials

	Proxy         string
	Status        AccountStatus
	IsActive      bool
	RequestLimit  int
	RequestsCount int64
	LastUsed      *time.Time
}

// Selectable reports whether the account may be handed out by the pool
func (a *WorkerAccount) Selectable() bool {
	return a != nil && a.Status == StatusActive && a.IsActive
}

// Limit returns the request limit, falling back to DefaultRequestLimit
func (a *WorkerAccount) Limit() int {
	if a.RequestLimit <= 0 {
		return DefaultRequestLimit
	}
	return a.RequestLimit
}

// UsageRecord is the fast counter state of one account.
// A missing record reads as Found=false, Count=0 and zero LastUsed.
type UsageRecord struct {
	Count    int64
	LastUsed time.Time
	Found    bool
}

// Used reports whether the record carries a last use timestamp
func (r UsageRecord) Used() bool {
	return r.Found && !r.LastUsed.IsZero()
}

// CounterKey addresses the fast counters of one account
type CounterKey struct {
	Platform  Platform
	AccountID string
}

func (k CounterKey) prefix() string {
	return fmt.Sprintf("account:%s:%s", k.Platform, k.AccountID)
}

// CountKey is the redis key holding the request counter
func (k CounterKey) CountKey() string {
	return k.prefix() + ":requests_count"
}

// LastUsedKey is the redis key holding the last use timestamp
func (k CounterKey) LastUsedKey() string {
	return k.prefix() + ":last_used"
}

// AllCountersPattern matches every account counter key
const AllCountersPattern = "account:*:*:*"

// CounterPattern returns the scan pattern for one platform's counters, all platforms when empty
func CounterPattern(platform Platform) string {
	if platform == "" {
		return AllCountersPattern
	}
	return fmt.Sprintf("account:%s:*:*", platform)
}

// ParseCounterKey extracts platform and account id from
// account:{platform}:{id}:{field}. Account ids may contain colons.
func ParseCounterKey(key string) (CounterKey, bool) {
	rest, ok := strings.CutPrefix(key, "account:")
	if !ok {
		return CounterKey{}, false
	}

	platformName, rest, ok := strings.Cut(rest, ":")
	if !ok {
		return CounterKey{}, false
	}

	idx := strings.LastIndex(rest, ":")
	if idx <= 0 {
		return CounterKey{}, false
	}

	switch rest[idx+1:] {
	case "requests_count", "last_used":
	default:
		return CounterKey{}, false
	}

	platform, ok := ParsePlatform(platformName)
	if !ok {
		return CounterKey{}, false
	}

	return CounterKey{Platform: platform, AccountID: rest[:idx]}, true
}

// SkipReason explains why a candidate was passed over during selection
type SkipReason string

const (
	SkipCreationFailed SkipReason = "creation_failed"
	SkipTransient      SkipReason = "transient_connection"
	SkipAuthorization  SkipReason = "authorization"
	SkipConnectFailed  SkipReason = "connect_failed"
	SkipUnauthorized   SkipReason = "unauthorized"
	SkipNoLiveClient   SkipReason = "no_live_client"
)

// Skip records one passed over candidate
type Skip struct {
	AccountID string
	Reason    SkipReason
	Err       error
}

// EntryStatus is the admin view of one pool entry
type EntryStatus struct {
	AccountID     string     `json:"account_id"`
	Connected     bool       `json:"connected"`
	Degraded      bool       `json:"degraded"`
	AuthState     AuthState  `json:"auth_state"`
	RequestsCount int64      `json:"requests_count"`
	RequestLimit  int        `json:"request_limit"`
	LastUsed      *time.Time `json:"last_used,omitempty"`
	Failures      int        `json:"failures,omitempty"`
}

// PoolStatus is the admin view of one platform pool
type PoolStatus struct {
	Platform  Platform      `json:"platform"`
	Total     int           `json:"total"`
	Connected int           `json:"connected"`
	Degraded  int           `json:"degraded"`
	Accounts  []EntryStatus `json:"accounts"`
}

// SyncReport summarises a batch sync or reset
type SyncReport struct {
	Synced int `json:"synced"`
	Failed int `json:"failed"`
}

// EventType classifies pool events published to the message bus
type EventType string

const (
	EventUsage    EventType = "usage"
	EventDegraded EventType = "degraded"
	EventRestored EventType = "restored"
	EventReaped   EventType = "reaped"
	EventDeleted  EventType = "deleted"
)

// PoolEvent is a notification about an account's pool state
type PoolEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Platform   Platform  `json:"platform"`
	AccountID  string    `json:"account_id"`
	UserKey    string    `json:"user_key,omitempty"`
	Count      int64     `json:"count,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
