package accesspoint

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/smart-inventory-core/internal/auth"
	"github.com/nerrad567/smart-inventory-core/internal/inventory"
	"github.com/nerrad567/smart-inventory-core/internal/recognition"
)

// ErrInvalidInput is returned for requests rejected before any work, such
// as an empty image.
var ErrInvalidInput = errors.New("accesspoint: invalid input")

// ErrLightTargetUnresolved is returned when an identified item's shelf or
// shelf controller cannot be loaded. The calling access point is not at
// fault, so it does not match the inventory not-found errors.
var ErrLightTargetUnresolved = errors.New("accesspoint: shelf of identified item cannot be lit")

// tagSearchLimit is how many of the highest-confidence tags are searched.
const tagSearchLimit = 3

// Triggers reported to Telemetry.RecordLight.
const triggerScan = "scan"

// DeviceResolver resolves devices; satisfied by *inventory.Registry.
type DeviceResolver interface {
	GetByExternalID(ctx context.Context, externalID string) (*inventory.Device, error)
	GetByID(ctx context.Context, id string) (*inventory.Device, error)
}

// ItemFinder is the item lookup used by both recognition paths.
type ItemFinder interface {
	GetByIDInGroup(ctx context.Context, id, groupID string) (*inventory.Item, error)
	FindFirstInGroupByText(ctx context.Context, groupID, text string) (*inventory.Item, error)
}

// ShelfReader loads shelves.
type ShelfReader interface {
	GetByID(ctx context.Context, id string, opts ...inventory.ReadOption) (*inventory.Shelf, error)
}

// LightRecorder persists a confirmed light change and its item history.
// Satisfied by *inventory.Store.
type LightRecorder interface {
	RecordLightChange(ctx context.Context, shelfID string, isLitUp bool, entry *inventory.ItemHistory) error
}

// LightController switches shelf lights; satisfied by *lighting.Controller.
type LightController interface {
	SetLight(ctx context.Context, deviceExternalID string, shelfPosition int, turnOn bool) error
}

// Notifier publishes events to live subscribers; satisfied by the API
// WebSocket hub.
type Notifier interface {
	Broadcast(channel string, payload any)
}

// Telemetry records outcomes for dashboards. Implementations must not block.
type Telemetry interface {
	RecordScan(deviceID, groupID, scanType string, found bool)
	RecordLight(deviceExternalID string, shelfPosition int, turnOn bool, trigger string, succeeded bool)
}

// Logger defines the logging interface used by the Service.
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

// Deps are the collaborators of a Service. All fields are required.
type Deps struct {
	Devices     DeviceResolver
	Recognizer  recognition.Recognizer
	Items       ItemFinder
	Shelves     ShelfReader
	ScanHistory inventory.ScanHistoryRepository
	Lights      LightController
	Recorder    LightRecorder
}

// Config tunes a Service.
type Config struct {
	// MaxImageDimension bounds the long edge of the image sent for
	// recognition. Zero uses recognition.DefaultMaxDimension.
	MaxImageDimension int
}

// Service identifies items photographed at access points and lights the
// shelf they are stored on.
type Service struct {
	deps      Deps
	cfg       Config
	prepare   func(data []byte, maxDimension int) ([]byte, error)
	notifier  Notifier
	telemetry []Telemetry
	logger    Logger
}

// NewService creates an access point service.
func NewService(deps Deps, cfg Config) *Service {
	return &Service{
		deps:    deps,
		cfg:     cfg,
		prepare: recognition.PrepareImage,
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the service.
func (s *Service) SetLogger(logger Logger) {
	s.logger = logger
}

// SetNotifier sets where scan and light events are published.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

// AddTelemetry adds a sink for scan and light outcomes.
func (s *Service) AddTelemetry(t Telemetry) {
	s.telemetry = append(s.telemetry, t)
}

// ListScanHistory returns a page of a device's scans, newest first. The
// actor in ctx must have access to the device's group.
func (s *Service) ListScanHistory(ctx context.Context, deviceID string, page, size int) (inventory.Page[inventory.ScanHistory], error) {
	device, err := s.deps.Devices.GetByID(ctx, deviceID)
	if err != nil {
		return inventory.Page[inventory.ScanHistory]{}, err
	}
	if !auth.ActorFromContext(ctx).CanAccessGroup(device.GroupID) {
		return inventory.Page[inventory.ScanHistory]{}, auth.ErrForbidden
	}
	return s.deps.ScanHistory.ListByDevice(ctx, deviceID, page, size)
}

func (s *Service) notify(channel string, payload any) {
	if s.notifier != nil {
		s.notifier.Broadcast(channel, payload)
	}
}

func (s *Service) recordScan(device *inventory.Device, scanType inventory.ScanType, found bool) {
	for _, t := range s.telemetry {
		t.RecordScan(device.ID, device.GroupID, string(scanType), found)
	}
}

func (s *Service) recordLight(deviceExternalID string, position int, succeeded bool) {
	for _, t := range s.telemetry {
		t.RecordLight(deviceExternalID, position, true, triggerScan, succeeded)
	}
}

// runConcurrently runs fns in parallel and returns the first error once all
// have finished. A failure does not cancel the others.
func runConcurrently(fns ...func() error) error {
	var g errgroup.Group
	for _, fn := range fns {
		g.Go(fn)
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("identify item: %w", err)
	}
	return nil
}
