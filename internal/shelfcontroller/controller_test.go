package shelfcontroller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/smart-inventory-core/internal/auth"
	"github.com/nerrad567/smart-inventory-core/internal/inventory"
	"github.com/nerrad567/smart-inventory-core/internal/inventory/inventorytest"
	"github.com/nerrad567/smart-inventory-core/internal/lighting"
)

type lightCall struct {
	device   string
	position int
	turnOn   bool
}

type fakeLights struct {
	mu    sync.Mutex
	calls []lightCall
	err   error
}

func (f *fakeLights) SetLight(_ context.Context, device string, position int, turnOn bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, lightCall{device, position, turnOn})
	return f.err
}

func (f *fakeLights) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeTelemetry struct {
	mu       sync.Mutex
	outcomes []string
}

func (f *fakeTelemetry) RecordLight(string, int, bool, string, bool) {}

func (f *fakeTelemetry) RecordMotion(_ string, _ int, outcome string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, outcome)
}

func (f *fakeTelemetry) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.outcomes) == 0 {
		return ""
	}
	return f.outcomes[len(f.outcomes)-1]
}

type recordingNotifier struct {
	events []inventory.LightEvent
}

func (n *recordingNotifier) Broadcast(_ string, payload any) {
	if e, ok := payload.(inventory.LightEvent); ok {
		n.events = append(n.events, e)
	}
}

type harness struct {
	ctrl      *Controller
	store     *inventory.Store
	fixture   *inventorytest.Fixture
	lights    *fakeLights
	telemetry *fakeTelemetry
	item      *inventory.Item
	member    context.Context
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := inventorytest.OpenStore(t)
	f := inventorytest.Seed(t, store, "alpha")
	h := &harness{
		store:     store,
		fixture:   f,
		lights:    &fakeLights{},
		telemetry: &fakeTelemetry{},
		item:      f.AddItem(t, f.Shelf, "Drill", ""),
		member: auth.WithActor(context.Background(), auth.Actor{
			ID:       "user-1",
			Role:     auth.RoleUser,
			GroupIDs: []string{f.Group.ID},
		}),
	}
	h.ctrl = NewController(Deps{
		Devices:     inventory.NewRegistry(store.Devices, 0),
		Shelves:     store.Shelves,
		Items:       store.Items,
		ItemHistory: store.ItemHistory,
		Recorder:    store,
		Lights:      h.lights,
	}, Config{MotionRecencyWindow: 5 * time.Minute})
	h.ctrl.AddTelemetry(h.telemetry)
	return h
}

func (h *harness) shelf(t *testing.T) *inventory.Shelf {
	t.Helper()
	shelf, err := h.store.Shelves.GetByID(context.Background(), h.fixture.Shelf.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	return shelf
}

func (h *harness) light(t *testing.T) {
	t.Helper()
	if err := h.store.Shelves.UpdateLightState(context.Background(), h.fixture.Shelf.ID, true); err != nil {
		t.Fatalf("UpdateLightState() error = %v", err)
	}
}

func (h *harness) history(t *testing.T) []inventory.ItemHistory {
	t.Helper()
	page, err := h.store.ItemHistory.ListByItem(context.Background(), h.item.ID, 1, 100)
	if err != nil {
		t.Fatalf("ListByItem() error = %v", err)
	}
	return page.Items
}

func TestSetShelfLightStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	device := h.fixture.Controller.ExternalID

	if err := h.ctrl.SetShelfLightStatus(ctx, device, 1, false); err != nil {
		t.Fatalf("SetShelfLightStatus(unchanged) error = %v", err)
	}
	if h.shelf(t).LastModifiedAt != nil {
		t.Error("unchanged status was written")
	}

	if err := h.ctrl.SetShelfLightStatus(ctx, device, 1, true); err != nil {
		t.Fatalf("SetShelfLightStatus() error = %v", err)
	}
	if !h.shelf(t).IsLitUp {
		t.Error("IsLitUp = false, want true")
	}
	if h.lights.count() != 0 {
		t.Error("status report sent a light command")
	}
	if len(h.history(t)) != 0 {
		t.Error("status report wrote item history")
	}
}

func TestSetShelfLightStatus_NotFound(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name     string
		device   string
		position int
		wantErr  error
	}{
		{name: "unknown device", device: "ghost", position: 1, wantErr: inventory.ErrDeviceNotFound},
		{name: "unknown shelf", device: h.fixture.Controller.ExternalID, position: 9, wantErr: inventory.ErrShelfNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.ctrl.SetShelfLightStatus(context.Background(), tt.device, tt.position, true)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("SetShelfLightStatus() error = %v, want %v", err, tt.wantErr)
			}
			if err := h.ctrl.HandleMotion(context.Background(), tt.device, tt.position); !errors.Is(err, tt.wantErr) {
				t.Errorf("HandleMotion() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestHandleMotion_UnlitShelfIgnored(t *testing.T) {
	h := newHarness(t)
	if _, err := h.ctrl.UpdateItemStatus(h.member, h.item.ID, true, "taken"); err != nil {
		t.Fatalf("UpdateItemStatus() error = %v", err)
	}

	if err := h.ctrl.HandleMotion(context.Background(), h.fixture.Controller.ExternalID, 1); err != nil {
		t.Fatalf("HandleMotion() error = %v", err)
	}
	if h.lights.count() != 0 {
		t.Error("motion at an unlit shelf sent a light command")
	}
	if got := h.telemetry.last(); got != MotionIgnoredUnlit {
		t.Errorf("outcome = %q, want %q", got, MotionIgnoredUnlit)
	}
}

func TestHandleMotion_RecentActivityTurnsLightOff(t *testing.T) {
	h := newHarness(t)
	if _, err := h.ctrl.UpdateItemStatus(h.member, h.item.ID, true, "taken"); err != nil {
		t.Fatalf("UpdateItemStatus() error = %v", err)
	}
	h.light(t)

	if err := h.ctrl.HandleMotion(context.Background(), h.fixture.Controller.ExternalID, 1); err != nil {
		t.Fatalf("HandleMotion() error = %v", err)
	}

	want := lightCall{device: h.fixture.Controller.ExternalID, position: 1, turnOn: false}
	if len(h.lights.calls) != 1 || h.lights.calls[0] != want {
		t.Errorf("light calls = %+v, want [%+v]", h.lights.calls, want)
	}
	if h.shelf(t).IsLitUp {
		t.Error("shelf still lit after motion")
	}

	history := h.history(t)
	if len(history) != 2 {
		t.Fatalf("item history has %d entries, want 2", len(history))
	}
	newest := history[0]
	if newest.Type != inventory.ItemHistoryMotion || newest.Comment != motionComment || !newest.IsTaken {
		t.Errorf("newest history = %+v, want motion entry with current status", newest)
	}
	if got := h.telemetry.last(); got != MotionLightOff {
		t.Errorf("outcome = %q, want %q", got, MotionLightOff)
	}
}

func TestHandleMotion_StaleActivityIgnored(t *testing.T) {
	h := newHarness(t)
	if _, err := h.ctrl.UpdateItemStatus(h.member, h.item.ID, true, "taken"); err != nil {
		t.Fatalf("UpdateItemStatus() error = %v", err)
	}
	h.light(t)
	h.ctrl.now = func() time.Time { return time.Now().Add(6 * time.Minute) }

	if err := h.ctrl.HandleMotion(context.Background(), h.fixture.Controller.ExternalID, 1); err != nil {
		t.Fatalf("HandleMotion() error = %v", err)
	}
	if h.lights.count() != 0 {
		t.Error("stale activity triggered a light command")
	}
	if !h.shelf(t).IsLitUp {
		t.Error("shelf was switched off without recent activity")
	}
	if got := h.telemetry.last(); got != MotionNoRecentUse {
		t.Errorf("outcome = %q, want %q", got, MotionNoRecentUse)
	}
}

func TestHandleMotion_LightAlreadyTurnedOffForActivity(t *testing.T) {
	h := newHarness(t)
	device := h.fixture.Controller.ExternalID
	if _, err := h.ctrl.UpdateItemStatus(h.member, h.item.ID, true, "taken"); err != nil {
		t.Fatalf("UpdateItemStatus() error = %v", err)
	}
	h.light(t)
	if err := h.ctrl.HandleMotion(context.Background(), device, 1); err != nil {
		t.Fatalf("HandleMotion() error = %v", err)
	}

	// Lit again without new item activity.
	h.light(t)
	if err := h.ctrl.HandleMotion(context.Background(), device, 1); err != nil {
		t.Fatalf("second HandleMotion() error = %v", err)
	}
	if h.lights.count() != 1 {
		t.Errorf("light calls = %d, want 1", h.lights.count())
	}
	if !h.shelf(t).IsLitUp {
		t.Error("shelf switched off by motion alone")
	}
	if got := h.telemetry.last(); got != MotionNoRecentUse {
		t.Errorf("outcome = %q, want %q", got, MotionNoRecentUse)
	}
	if n := len(h.history(t)); n != 2 {
		t.Errorf("item history has %d entries, want 2", n)
	}
}

func TestHandleMotion_LightFailure(t *testing.T) {
	h := newHarness(t)
	if _, err := h.ctrl.UpdateItemStatus(h.member, h.item.ID, true, "taken"); err != nil {
		t.Fatalf("UpdateItemStatus() error = %v", err)
	}
	h.light(t)
	h.lights.err = &lighting.DeviceError{DeviceID: "rack", Status: 500}

	err := h.ctrl.HandleMotion(context.Background(), h.fixture.Controller.ExternalID, 1)
	if !errors.Is(err, lighting.ErrDeviceFailure) {
		t.Fatalf("HandleMotion() error = %v, want ErrDeviceFailure", err)
	}
	if !h.shelf(t).IsLitUp {
		t.Error("shelf marked off without an ack")
	}
	if len(h.history(t)) != 1 {
		t.Error("motion history written without an ack")
	}
}

func TestUpdateItemStatus(t *testing.T) {
	h := newHarness(t)

	entry, err := h.ctrl.UpdateItemStatus(h.member, h.item.ID, true, "borrowed for site visit")
	if err != nil {
		t.Fatalf("UpdateItemStatus() error = %v", err)
	}
	if entry.Type != inventory.ItemHistoryManual || entry.CreatedBy != "user-1" || !entry.IsTaken {
		t.Errorf("entry = %+v", entry)
	}

	item, err := h.store.Items.GetByID(context.Background(), h.item.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if !item.IsTaken {
		t.Error("IsTaken = false, want true")
	}

	outsider := auth.WithActor(context.Background(), auth.Actor{ID: "u2", Role: auth.RoleUser})
	if _, err := h.ctrl.UpdateItemStatus(outsider, h.item.ID, false, ""); !errors.Is(err, auth.ErrForbidden) {
		t.Errorf("UpdateItemStatus(outsider) error = %v, want ErrForbidden", err)
	}
	if _, err := h.ctrl.UpdateItemStatus(h.member, "missing", false, ""); !errors.Is(err, inventory.ErrItemNotFound) {
		t.Errorf("UpdateItemStatus(missing) error = %v, want ErrItemNotFound", err)
	}
}

func TestListItemHistory(t *testing.T) {
	h := newHarness(t)
	for _, taken := range []bool{true, false, true} {
		if _, err := h.ctrl.UpdateItemStatus(h.member, h.item.ID, taken, ""); err != nil {
			t.Fatalf("UpdateItemStatus() error = %v", err)
		}
	}
	if err := h.store.Items.SoftDelete(context.Background(), h.item.ID); err != nil {
		t.Fatalf("SoftDelete() error = %v", err)
	}

	page, err := h.ctrl.ListItemHistory(h.member, h.item.ID, 1, 2)
	if err != nil {
		t.Fatalf("ListItemHistory() error = %v", err)
	}
	if page.TotalItems != 3 || len(page.Items) != 2 || page.TotalPages != 2 {
		t.Errorf("page = %+v", page)
	}

	admin := auth.WithActor(context.Background(), auth.Actor{ID: "root", Role: auth.RoleAdmin})
	if _, err := h.ctrl.ListItemHistory(admin, h.item.ID, 1, 10); err != nil {
		t.Errorf("ListItemHistory(admin) error = %v", err)
	}
	if _, err := h.ctrl.ListItemHistory(context.Background(), h.item.ID, 1, 10); !errors.Is(err, auth.ErrForbidden) {
		t.Errorf("ListItemHistory(anonymous) error = %v, want ErrForbidden", err)
	}
}

func TestSetShelfLight(t *testing.T) {
	h := newHarness(t)
	notifier := &recordingNotifier{}
	h.ctrl.SetNotifier(notifier)

	shelf, err := h.ctrl.SetShelfLight(h.member, h.fixture.Shelf.ID, h.item.ID, true)
	if err != nil {
		t.Fatalf("SetShelfLight() error = %v", err)
	}
	if !shelf.IsLitUp {
		t.Error("returned shelf is not lit")
	}

	want := lightCall{device: h.fixture.Controller.ExternalID, position: 1, turnOn: true}
	if len(h.lights.calls) != 1 || h.lights.calls[0] != want {
		t.Errorf("light calls = %+v, want [%+v]", h.lights.calls, want)
	}
	history := h.history(t)
	if len(history) != 1 {
		t.Fatalf("item history has %d entries, want 1", len(history))
	}
	if e := history[0]; e.Type != inventory.ItemHistoryManual || e.Comment != "Light turned on by user." || e.CreatedBy != "user-1" {
		t.Errorf("history entry = %+v", e)
	}

	if len(notifier.events) != 1 {
		t.Fatalf("published %d events, want 1", len(notifier.events))
	}
	if e := notifier.events[0]; e.Trigger != triggerUser || !e.IsLitUp || e.ItemID != h.item.ID {
		t.Errorf("event = %+v", e)
	}

	if _, err := h.ctrl.SetShelfLight(h.member, h.fixture.Shelf.ID, h.item.ID, false); err != nil {
		t.Fatalf("SetShelfLight(off) error = %v", err)
	}
	if h.shelf(t).IsLitUp {
		t.Error("shelf still lit after switching off")
	}
	if got := h.history(t)[0].Comment; got != "Light turned off by user." {
		t.Errorf("newest comment = %q", got)
	}
}

func TestSetShelfLight_DeviceFailure(t *testing.T) {
	h := newHarness(t)
	h.lights.err = &lighting.DeviceError{DeviceID: h.fixture.Controller.ExternalID, Method: lighting.MethodTurnOnLight, Status: 500}

	_, err := h.ctrl.SetShelfLight(h.member, h.fixture.Shelf.ID, h.item.ID, true)
	if !errors.Is(err, lighting.ErrDeviceFailure) {
		t.Fatalf("SetShelfLight() error = %v, want ErrDeviceFailure", err)
	}
	if h.shelf(t).IsLitUp {
		t.Error("shelf lit without acknowledgement")
	}
	if n := len(h.history(t)); n != 0 {
		t.Errorf("item history has %d entries, want 0", n)
	}
}

func TestSetShelfLight_Rejected(t *testing.T) {
	h := newHarness(t)
	other := h.fixture.AddShelf(t, 2)
	elsewhere := h.fixture.AddItem(t, other, "Saw", "")
	outsider := auth.WithActor(context.Background(), auth.Actor{ID: "user-2", Role: auth.RoleUser})

	tests := []struct {
		name    string
		ctx     context.Context
		shelfID string
		itemID  string
		want    error
	}{
		{"item on another shelf", h.member, h.fixture.Shelf.ID, elsewhere.ID, inventory.ErrItemNotFound},
		{"unknown item", h.member, h.fixture.Shelf.ID, "missing", inventory.ErrItemNotFound},
		{"unknown shelf", h.member, "missing", h.item.ID, inventory.ErrShelfNotFound},
		{"outsider", outsider, h.fixture.Shelf.ID, h.item.ID, auth.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := h.ctrl.SetShelfLight(tt.ctx, tt.shelfID, tt.itemID, true); !errors.Is(err, tt.want) {
				t.Errorf("SetShelfLight() error = %v, want %v", err, tt.want)
			}
		})
	}
	if h.lights.count() != 0 {
		t.Errorf("light calls = %d, want 0", h.lights.count())
	}
}
