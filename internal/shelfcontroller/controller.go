package shelfcontroller

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/smart-inventory-core/internal/auth"
	"github.com/nerrad567/smart-inventory-core/internal/inventory"
)

// DefaultMotionRecencyWindow is how recent item activity must be for motion
// to switch a lit shelf off.
const DefaultMotionRecencyWindow = 5 * time.Minute

// Motion outcomes reported to Telemetry.RecordMotion.
const (
	MotionIgnoredUnlit = "ignored_unlit"
	MotionNoRecentUse  = "no_recent_use"
	MotionLightOff     = "light_off"
	MotionFailed       = "failed"
)

const (
	triggerMotion = "motion"
	triggerUser   = "user"

	motionComment = "Light turned off by shelf controller because movement was detected."
)

// DeviceResolver resolves devices; satisfied by *inventory.Registry.
type DeviceResolver interface {
	GetByExternalID(ctx context.Context, externalID string) (*inventory.Device, error)
	GetByID(ctx context.Context, id string) (*inventory.Device, error)
}

// ShelfStore reads shelves and persists reported light state.
type ShelfStore interface {
	GetByID(ctx context.Context, id string, opts ...inventory.ReadOption) (*inventory.Shelf, error)
	GetByDeviceAndPosition(ctx context.Context, deviceID string, position int, opts ...inventory.ReadOption) (*inventory.Shelf, error)
	UpdateLightState(ctx context.Context, id string, isLitUp bool) error
}

// ItemReader loads items.
type ItemReader interface {
	GetByID(ctx context.Context, id string, opts ...inventory.ReadOption) (*inventory.Item, error)
}

// HistoryReader reads item history.
type HistoryReader interface {
	LatestInShelfSince(ctx context.Context, shelfID string, since time.Time) (*inventory.ItemHistory, error)
	ListByItem(ctx context.Context, itemID string, page, size int) (inventory.Page[inventory.ItemHistory], error)
}

// Recorder performs the transactional writes; satisfied by *inventory.Store.
type Recorder interface {
	RecordLightChange(ctx context.Context, shelfID string, isLitUp bool, entry *inventory.ItemHistory) error
	ChangeItemStatus(ctx context.Context, itemID string, isTaken bool, entry *inventory.ItemHistory) error
}

// LightController switches shelf lights; satisfied by *lighting.Controller.
type LightController interface {
	SetLight(ctx context.Context, deviceExternalID string, shelfPosition int, turnOn bool) error
}

// Notifier publishes events to live subscribers.
type Notifier interface {
	Broadcast(channel string, payload any)
}

// Telemetry records light and motion outcomes. Implementations must not block.
type Telemetry interface {
	RecordLight(deviceExternalID string, shelfPosition int, turnOn bool, trigger string, succeeded bool)
	RecordMotion(deviceExternalID string, shelfPosition int, outcome string)
}

// Logger defines the logging interface used by the Controller.
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

// Deps are the collaborators of a Controller. All fields are required.
type Deps struct {
	Devices     DeviceResolver
	Shelves     ShelfStore
	Items       ItemReader
	ItemHistory HistoryReader
	Recorder    Recorder
	Lights      LightController
}

// Config tunes a Controller.
type Config struct {
	// MotionRecencyWindow is how far back item activity counts as recent.
	// Zero uses DefaultMotionRecencyWindow.
	MotionRecencyWindow time.Duration
}

// Controller handles reports from rack shelf controllers and explicit item
// status changes.
type Controller struct {
	deps      Deps
	window    time.Duration
	now       func() time.Time
	notifier  Notifier
	telemetry []Telemetry
	logger    Logger
}

// NewController creates a shelf controller service.
func NewController(deps Deps, cfg Config) *Controller {
	window := cfg.MotionRecencyWindow
	if window <= 0 {
		window = DefaultMotionRecencyWindow
	}
	return &Controller{
		deps:   deps,
		window: window,
		now:    time.Now,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the controller.
func (c *Controller) SetLogger(logger Logger) {
	c.logger = logger
}

// SetNotifier sets where light events are published.
func (c *Controller) SetNotifier(n Notifier) {
	c.notifier = n
}

// AddTelemetry adds a sink for light and motion outcomes.
func (c *Controller) AddTelemetry(t Telemetry) {
	c.telemetry = append(c.telemetry, t)
}

// SetShelfLightStatus persists the light state a device reports for one of
// its shelves. It never sends a light command or writes item history.
func (c *Controller) SetShelfLightStatus(ctx context.Context, deviceExternalID string, position int, isLitUp bool) error {
	_, shelf, err := c.resolveShelf(ctx, deviceExternalID, position)
	if err != nil {
		return err
	}
	if shelf.IsLitUp == isLitUp {
		return nil
	}
	if err := c.deps.Shelves.UpdateLightState(ctx, shelf.ID, isLitUp); err != nil {
		return fmt.Errorf("updating shelf %s: %w", shelf.ID, err)
	}

	c.logger.Info("shelf light state reported",
		"device", deviceExternalID,
		"shelf_position", position,
		"is_lit_up", isLitUp,
	)
	c.notify(inventory.LightEvent{
		ShelfID:  shelf.ID,
		GroupID:  shelf.GroupID,
		IsLitUp:  isLitUp,
		Trigger:  "report",
		DeviceID: shelf.DeviceID,
	})
	return nil
}

// HandleMotion reacts to movement in front of a shelf. A lit shelf whose
// items saw activity within the recency window is switched off, since the
// person it was lit for has arrived. Otherwise motion is ignored.
func (c *Controller) HandleMotion(ctx context.Context, deviceExternalID string, position int) error {
	device, shelf, err := c.resolveShelf(ctx, deviceExternalID, position)
	if err != nil {
		return err
	}
	if !shelf.IsLitUp {
		c.recordMotion(deviceExternalID, position, MotionIgnoredUnlit)
		return nil
	}

	latest, err := c.deps.ItemHistory.LatestInShelfSince(ctx, shelf.ID, c.now().Add(-c.window))
	if err != nil {
		c.recordMotion(deviceExternalID, position, MotionFailed)
		return fmt.Errorf("loading recent shelf activity: %w", err)
	}
	// A motion entry means the light was already switched off for the latest activity.
	if latest == nil || latest.Type == inventory.ItemHistoryMotion {
		c.logger.Debug("motion without recent item activity",
			"device", deviceExternalID,
			"shelf_position", position,
		)
		c.recordMotion(deviceExternalID, position, MotionNoRecentUse)
		return nil
	}

	item, err := c.deps.Items.GetByID(ctx, latest.ItemID)
	if err != nil {
		c.recordMotion(deviceExternalID, position, MotionFailed)
		return fmt.Errorf("loading item %s: %w", latest.ItemID, err)
	}

	err = c.deps.Lights.SetLight(ctx, device.ExternalID, position, false)
	c.recordLight(device.ExternalID, position, err == nil)
	if err != nil {
		c.recordMotion(deviceExternalID, position, MotionFailed)
		c.logger.Error("turning off shelf light failed",
			"device", deviceExternalID,
			"shelf_position", position,
			"error", err,
		)
		return err
	}

	entry := &inventory.ItemHistory{
		ItemID:  item.ID,
		Type:    inventory.ItemHistoryMotion,
		IsTaken: item.IsTaken,
		Comment: motionComment,
	}
	if err := c.deps.Recorder.RecordLightChange(ctx, shelf.ID, false, entry); err != nil {
		c.recordMotion(deviceExternalID, position, MotionFailed)
		return fmt.Errorf("recording light change: %w", err)
	}

	c.recordMotion(deviceExternalID, position, MotionLightOff)
	c.logger.Info("shelf light turned off after motion",
		"device", deviceExternalID,
		"shelf_position", position,
		"item_id", item.ID,
	)
	c.notify(inventory.LightEvent{
		ShelfID:  shelf.ID,
		GroupID:  shelf.GroupID,
		ItemID:   item.ID,
		IsLitUp:  false,
		Trigger:  triggerMotion,
		DeviceID: device.ID,
	})
	return nil
}

// SetShelfLight switches the light of the shelf holding itemID on a user's
// request. The item must be on that shelf and the actor in ctx must have
// access to its group. The new state and a manual item history entry are
// persisted only after the shelf controller acknowledged the command.
func (c *Controller) SetShelfLight(ctx context.Context, shelfID, itemID string, isLitUp bool) (*inventory.Shelf, error) {
	shelf, err := c.deps.Shelves.GetByID(ctx, shelfID)
	if err != nil {
		return nil, err
	}
	if !auth.ActorFromContext(ctx).CanAccessGroup(shelf.GroupID) {
		return nil, auth.ErrForbidden
	}
	item, err := c.deps.Items.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.ShelfID != shelf.ID {
		return nil, fmt.Errorf("%w: item %s is not on shelf %s", inventory.ErrItemNotFound, item.ID, shelf.ID)
	}
	device, err := c.deps.Devices.GetByID(ctx, shelf.DeviceID)
	if err != nil {
		return nil, err
	}

	err = c.deps.Lights.SetLight(ctx, device.ExternalID, shelf.PositionInRack, isLitUp)
	for _, t := range c.telemetry {
		t.RecordLight(device.ExternalID, shelf.PositionInRack, isLitUp, triggerUser, err == nil)
	}
	if err != nil {
		c.logger.Error("switching shelf light failed",
			"device", device.ExternalID,
			"shelf_position", shelf.PositionInRack,
			"is_lit_up", isLitUp,
			"error", err,
		)
		return nil, err
	}

	entry := &inventory.ItemHistory{
		ItemID:  item.ID,
		Type:    inventory.ItemHistoryManual,
		IsTaken: item.IsTaken,
		Comment: userLightComment(isLitUp),
	}
	if err := c.deps.Recorder.RecordLightChange(ctx, shelf.ID, isLitUp, entry); err != nil {
		return nil, fmt.Errorf("recording light change: %w", err)
	}

	c.logger.Info("shelf light switched by user",
		"shelf_id", shelf.ID,
		"item_id", item.ID,
		"is_lit_up", isLitUp,
		"actor", auth.ActorID(ctx),
	)
	c.notify(inventory.LightEvent{
		ShelfID:  shelf.ID,
		GroupID:  shelf.GroupID,
		ItemID:   item.ID,
		IsLitUp:  isLitUp,
		Trigger:  triggerUser,
		DeviceID: device.ID,
	})
	return c.deps.Shelves.GetByID(ctx, shelf.ID)
}

func userLightComment(isLitUp bool) string {
	if isLitUp {
		return "Light turned on by user."
	}
	return "Light turned off by user."
}

// UpdateItemStatus records that an item was taken or returned. The actor in
// ctx must have access to the item's group.
func (c *Controller) UpdateItemStatus(ctx context.Context, itemID string, isTaken bool, comment string) (*inventory.ItemHistory, error) {
	item, err := c.deps.Items.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if !auth.ActorFromContext(ctx).CanAccessGroup(item.GroupID) {
		return nil, auth.ErrForbidden
	}

	entry := &inventory.ItemHistory{Type: inventory.ItemHistoryManual, Comment: comment}
	if err := c.deps.Recorder.ChangeItemStatus(ctx, item.ID, isTaken, entry); err != nil {
		return nil, err
	}
	c.logger.Info("item status changed", "item_id", item.ID, "is_taken", isTaken)
	return entry, nil
}

// ListItemHistory returns a page of an item's history, newest first. The
// actor in ctx must have access to the item's group. Deleted items keep a
// readable history.
func (c *Controller) ListItemHistory(ctx context.Context, itemID string, page, size int) (inventory.Page[inventory.ItemHistory], error) {
	item, err := c.deps.Items.GetByID(ctx, itemID, inventory.IncludeDeleted())
	if err != nil {
		return inventory.Page[inventory.ItemHistory]{}, err
	}
	if !auth.ActorFromContext(ctx).CanAccessGroup(item.GroupID) {
		return inventory.Page[inventory.ItemHistory]{}, auth.ErrForbidden
	}
	return c.deps.ItemHistory.ListByItem(ctx, item.ID, page, size)
}

func (c *Controller) resolveShelf(ctx context.Context, deviceExternalID string, position int) (*inventory.Device, *inventory.Shelf, error) {
	device, err := c.deps.Devices.GetByExternalID(ctx, deviceExternalID)
	if err != nil {
		return nil, nil, err
	}
	shelf, err := c.deps.Shelves.GetByDeviceAndPosition(ctx, device.ID, position)
	if err != nil {
		return nil, nil, err
	}
	return device, shelf, nil
}

func (c *Controller) notify(event inventory.LightEvent) {
	if c.notifier != nil {
		c.notifier.Broadcast(inventory.EventShelfLightChanged, event)
	}
}

func (c *Controller) recordLight(deviceExternalID string, position int, succeeded bool) {
	for _, t := range c.telemetry {
		t.RecordLight(deviceExternalID, position, false, triggerMotion, succeeded)
	}
}

func (c *Controller) recordMotion(deviceExternalID string, position int, outcome string) {
	for _, t := range c.telemetry {
		t.RecordMotion(deviceExternalID, position, outcome)
	}
}
