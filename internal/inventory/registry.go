package inventory

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type cachedDevice struct {
	device   *Device
	loadedAt time.Time
}

// Registry resolves devices by external or internal id with a TTL cache in
// front of a DeviceRepository.
//
// Inactive devices resolve to ErrDeviceNotFound. Entries older than the TTL
// are reloaded, so a device deactivated elsewhere stops resolving within one
// TTL. A TTL of zero disables caching.
//
// All public methods are thread-safe. Returned devices are copies.
type Registry struct {
	repo DeviceRepository
	ttl  time.Duration
	now  func() time.Time

	mu         sync.RWMutex
	byID       map[string]cachedDevice
	byExternal map[string]string // external id -> id

	logger Logger
}

// NewRegistry creates a device registry over repo.
func NewRegistry(repo DeviceRepository, ttl time.Duration) *Registry {
	return &Registry{
		repo:       repo,
		ttl:        ttl,
		now:        time.Now,
		byID:       make(map[string]cachedDevice),
		byExternal: make(map[string]string),
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads all live devices into the cache. Call on startup.
func (r *Registry) RefreshCache(ctx context.Context) error {
	devices, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	now := r.now()
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byID = make(map[string]cachedDevice, len(devices))
	r.byExternal = make(map[string]string, len(devices))
	for i := range devices {
		d := devices[i].Clone()
		r.byID[d.ID] = cachedDevice{device: d, loadedAt: now}
		r.byExternal[d.ExternalID] = d.ID
	}

	r.logger.Info("device cache refreshed", "count", len(devices))
	return nil
}

// GetByExternalID resolves the GUID a device reports itself with.
func (r *Registry) GetByExternalID(ctx context.Context, externalID string) (*Device, error) {
	if externalID == "" {
		return nil, ErrDeviceNotFound
	}

	r.mu.RLock()
	id, ok := r.byExternal[externalID]
	r.mu.RUnlock()
	if ok {
		if d, hit := r.fresh(id); hit {
			return activeCopy(d)
		}
	}

	d, err := r.repo.GetByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	r.store(d)
	return activeCopy(d)
}

// GetByID resolves a device by internal id.
func (r *Registry) GetByID(ctx context.Context, id string) (*Device, error) {
	if d, hit := r.fresh(id); hit {
		return activeCopy(d)
	}

	d, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.store(d)
	return activeCopy(d)
}

// Invalidate drops a device from the cache.
func (r *Registry) Invalidate(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.byID[id]; ok {
		delete(r.byExternal, entry.device.ExternalID)
		delete(r.byID, id)
	}
}

// CacheSize returns the number of cached devices.
func (r *Registry) CacheSize() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

func (r *Registry) fresh(id string) (*Device, bool) {
	if r.ttl <= 0 {
		return nil, false
	}
	r.mu.RLock()
	entry, ok := r.byID[id]
	r.mu.RUnlock()
	if !ok || r.now().Sub(entry.loadedAt) >= r.ttl {
		return nil, false
	}
	return entry.device, true
}

func (r *Registry) store(d *Device) {
	if r.ttl <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[d.ID] = cachedDevice{device: d.Clone(), loadedAt: r.now()}
	r.byExternal[d.ExternalID] = d.ID
}

func activeCopy(d *Device) (*Device, error) {
	if !d.IsActive || d.IsDeleted {
		return nil, ErrDeviceNotFound
	}
	return d.Clone(), nil
}
