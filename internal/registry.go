package internal

import (
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrInvalidInput = errors.New("user id and user name must not be empty")
	ErrCodeNotFound = errors.New("channel code not found")
)

// channelIDNamespace keeps generated channel IDs inside the access-controlled
// naming convention so the delivery network treats them as private.
const channelIDNamespace = "private-channel-"

// IsPrivateChannel reports whether channelName requires an access check
// before subscription or publish. Names outside the prefix are open channels.
func IsPrivateChannel(channelName string) bool {
	return strings.HasPrefix(channelName, "private-")
}

type ChannelRecord struct {
	ChannelID   string
	CreatorID   string
	CreatorName string
	CreatedAt   time.Time

	mux     sync.Mutex
	members []string
}

type ChannelSnapshot struct {
	ChannelID   string
	CreatorName string
	Members     []string
}

type ChannelSummary struct {
	Code        string
	ChannelID   string
	CreatorID   string
	CreatorName string
	MemberCount int
	CreatedAt   time.Time
}

// Registry owns the invite-code and access-grant state. The outer mutex only
// guards map shape; membership of a single channel is serialized by the
// record's own mutex so joins on unrelated channels never contend.
type Registry struct {
	codes  map[string]*ChannelRecord
	grants map[string]map[string]struct{}
	mux    *sync.RWMutex
	log    *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		codes:  make(map[string]*ChannelRecord),
		grants: make(map[string]map[string]struct{}),
		mux:    &sync.RWMutex{},
		log:    log,
	}
}

func (r *Registry) CreateChannel(userID, userName string) (string, string, error) {
	if userID == "" || userName == "" {
		return "", "", ErrInvalidInput
	}

	channelID := newChannelID()

	r.mux.Lock()
	code := r.newCodeLocked()
	r.codes[code] = &ChannelRecord{
		ChannelID:   channelID,
		CreatorID:   userID,
		CreatorName: userName,
		CreatedAt:   time.Now().UTC(),
		members:     []string{userID},
	}
	r.grantLocked(channelID, userID)
	r.mux.Unlock()

	r.log.Info("channel created",
		zap.String("code", code),
		zap.String("channel", channelID),
		zap.String("user", userID),
	)

	return code, channelID, nil
}

func (r *Registry) JoinChannel(code, userID, userName string) (ChannelSnapshot, error) {
	if code == "" || userID == "" || userName == "" {
		return ChannelSnapshot{}, ErrInvalidInput
	}

	r.mux.Lock()
	record, ok := r.codes[code]
	if !ok {
		r.mux.Unlock()
		return ChannelSnapshot{}, ErrCodeNotFound
	}
	r.grantLocked(record.ChannelID, userID)
	r.mux.Unlock()

	record.mux.Lock()
	if !slices.Contains(record.members, userID) {
		record.members = append(record.members, userID)
	}
	members := slices.Clone(record.members)
	record.mux.Unlock()

	r.log.Info("user joined channel",
		zap.String("code", code),
		zap.String("channel", record.ChannelID),
		zap.String("user", userID),
	)

	return ChannelSnapshot{
		ChannelID:   record.ChannelID,
		CreatorName: record.CreatorName,
		Members:     members,
	}, nil
}

func (r *Registry) LookupByCode(code string) (ChannelSummary, error) {
	r.mux.RLock()
	record, ok := r.codes[code]
	r.mux.RUnlock()

	if !ok {
		return ChannelSummary{}, ErrCodeNotFound
	}
	return record.summary(code), nil
}

// Channels returns a summary of every channel created so far, in no
// particular order.
func (r *Registry) Channels() []ChannelSummary {
	r.mux.RLock()
	defer r.mux.RUnlock()

	out := make([]ChannelSummary, 0, len(r.codes))
	for code, record := range r.codes {
		out = append(out, record.summary(code))
	}
	return out
}

func (r *Registry) HasAccess(channelID, userID string) bool {
	r.mux.RLock()
	defer r.mux.RUnlock()

	users, ok := r.grants[channelID]
	if !ok {
		return false
	}
	_, ok = users[userID]
	return ok
}

// GrantAccess is idempotent and is the only way access is ever granted.
// Grants are never revoked for the life of the process.
func (r *Registry) GrantAccess(channelID, userID string) {
	r.mux.Lock()
	defer r.mux.Unlock()

	r.grantLocked(channelID, userID)
}

func (r *Registry) grantLocked(channelID, userID string) {
	users, ok := r.grants[channelID]
	if !ok {
		users = make(map[string]struct{})
		r.grants[channelID] = users
	}
	users[userID] = struct{}{}
}

// newCodeLocked draws 6-digit codes until one is free. The code space is
// 900000 values, so the loop terminates long before the map could fill.
func (r *Registry) newCodeLocked() string {
	for {
		code := strconv.Itoa(100000 + rand.Intn(900000))
		if _, taken := r.codes[code]; !taken {
			return code
		}
	}
}

func newChannelID() string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s%d-%s", channelIDNamespace, time.Now().UnixMilli(), suffix)
}

func (record *ChannelRecord) summary(code string) ChannelSummary {
	record.mux.Lock()
	memberCount := len(record.members)
	record.mux.Unlock()

	return ChannelSummary{
		Code:        code,
		ChannelID:   record.ChannelID,
		CreatorID:   record.CreatorID,
		CreatorName: record.CreatorName,
		MemberCount: memberCount,
		CreatedAt:   record.CreatedAt,
	}
}
