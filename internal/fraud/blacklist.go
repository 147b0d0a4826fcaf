package fraud

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kycshield/kycshield/internal/domain"
)

// Blacklist is an in-memory set of blacklisted user IDs and device
// fingerprint hashes. Membership is permanent until explicitly removed.
// When constructed with a repository, mutations write through so membership
// survives restarts; lookups never touch the repository.
type Blacklist struct {
	mu      sync.RWMutex
	entries map[string]string // value -> kind
	repo    domain.Repository
}

// NewBlacklist creates an empty blacklist. repo may be nil for purely
// in-memory operation.
func NewBlacklist(repo domain.Repository) *Blacklist {
	return &Blacklist{
		entries: make(map[string]string),
		repo:    repo,
	}
}

// Load restores persisted entries from the repository.
func (b *Blacklist) Load(ctx context.Context) error {
	if b.repo == nil {
		return nil
	}

	persisted, err := b.repo.ListBlacklistEntries(ctx)
	if err != nil {
		return fmt.Errorf("failed to load blacklist: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range persisted {
		b.entries[e.Value] = e.Kind
	}
	return nil
}

// FingerprintDevice derives the stable device fingerprint hash:
// SHA-256 of "{deviceId}-{ipAddress}". The raw fingerprint is never stored.
func FingerprintDevice(device *domain.DeviceInfo) string {
	deviceID, ip := "", ""
	if device != nil {
		deviceID = device.DeviceID
		ip = device.IPAddress
	}
	sum := sha256.Sum256([]byte(deviceID + "-" + ip))
	return hex.EncodeToString(sum[:])
}

// Add blacklists a user ID and/or a device. Either argument may be empty/nil.
func (b *Blacklist) Add(ctx context.Context, userID string, device *domain.DeviceInfo) {
	if userID != "" {
		b.add(ctx, userID, domain.BlacklistKindUser)
	}
	if device != nil {
		b.add(ctx, FingerprintDevice(device), domain.BlacklistKindDevice)
	}
}

func (b *Blacklist) add(ctx context.Context, value, kind string) {
	b.mu.Lock()
	b.entries[value] = kind
	b.mu.Unlock()

	if b.repo != nil {
		entry := &domain.BlacklistEntry{
			Value:     value,
			Kind:      kind,
			CreatedAt: time.Now().UTC(),
		}
		if err := b.repo.SaveBlacklistEntry(ctx, entry); err != nil {
			slog.Error("failed to persist blacklist entry", "kind", kind, "error", err)
		}
	}
}

// Remove deletes a user ID and/or a device from the blacklist. This is the
// only way membership ends; entries never expire.
func (b *Blacklist) Remove(ctx context.Context, userID string, device *domain.DeviceInfo) {
	if userID != "" {
		b.remove(ctx, userID)
	}
	if device != nil {
		b.remove(ctx, FingerprintDevice(device))
	}
}

func (b *Blacklist) remove(ctx context.Context, value string) {
	b.mu.Lock()
	delete(b.entries, value)
	b.mu.Unlock()

	if b.repo != nil {
		if err := b.repo.DeleteBlacklistEntry(ctx, value); err != nil {
			slog.Error("failed to delete blacklist entry", "error", err)
		}
	}
}

// IsUserListed reports whether the user ID is blacklisted.
func (b *Blacklist) IsUserListed(userID string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.entries[userID]
	return ok
}

// IsDeviceListed reports whether the device fingerprint hash is blacklisted.
func (b *Blacklist) IsDeviceListed(fingerprint string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.entries[fingerprint]
	return ok
}

// Size returns the number of blacklist entries.
func (b *Blacklist) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}
