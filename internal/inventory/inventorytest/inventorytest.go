// Package inventorytest provides a migrated temporary store and fixture
// builders for tests in packages that depend on inventory.
package inventorytest

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/nerrad567/smart-inventory-core/internal/infrastructure/database"
	"github.com/nerrad567/smart-inventory-core/internal/inventory"
	_ "github.com/nerrad567/smart-inventory-core/migrations" // registers the schema
)

// OpenStore opens a fresh migrated database in t.TempDir and closes it on
// cleanup.
func OpenStore(t testing.TB) *inventory.Store {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "inventory.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}
	return inventory.NewStore(db)
}

// Fixture is a group with one access point, one shelf controller and one
// shelf on it.
type Fixture struct {
	Store       *inventory.Store
	Group       *inventory.Group
	AccessPoint *inventory.Device
	Controller  *inventory.Device
	Shelf       *inventory.Shelf
}

// Seed creates a Fixture in store. name distinguishes fixtures seeded into
// the same store.
func Seed(t testing.TB, store *inventory.Store, name string) *Fixture {
	t.Helper()
	ctx := context.Background()

	f := &Fixture{Store: store}
	f.Group = &inventory.Group{Name: name}
	must(t, store.Groups.Create(ctx, f.Group))

	f.AccessPoint = &inventory.Device{
		ExternalID: fmt.Sprintf("%s-ap", name),
		Name:       name + " access point",
		Kind:       inventory.DeviceKindAccessPoint,
		GroupID:    f.Group.ID,
		IsActive:   true,
	}
	must(t, store.Devices.Create(ctx, f.AccessPoint))

	f.Controller = &inventory.Device{
		ExternalID: fmt.Sprintf("%s-rack", name),
		Name:       name + " rack",
		Kind:       inventory.DeviceKindRackShelfController,
		GroupID:    f.Group.ID,
		IsActive:   true,
	}
	must(t, store.Devices.Create(ctx, f.Controller))

	f.Shelf = f.AddShelf(t, 1)
	return f
}

// AddShelf creates another shelf on the fixture's controller.
func (f *Fixture) AddShelf(t testing.TB, position int) *inventory.Shelf {
	t.Helper()
	shelf := &inventory.Shelf{
		Name:           fmt.Sprintf("shelf %d", position),
		PositionInRack: position,
		GroupID:        f.Group.ID,
		DeviceID:       f.Controller.ID,
	}
	must(t, f.Store.Shelves.Create(context.Background(), shelf))
	return shelf
}

// AddItem creates an item on shelf. description may be empty.
func (f *Fixture) AddItem(t testing.TB, shelf *inventory.Shelf, name, description string) *inventory.Item {
	t.Helper()
	item := &inventory.Item{Name: name, ShelfID: shelf.ID, GroupID: f.Group.ID}
	if description != "" {
		item.Description = &description
	}
	must(t, f.Store.Items.Create(context.Background(), item))
	return item
}

func must(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("seeding fixture: %v", err)
	}
}
