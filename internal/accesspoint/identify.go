package accesspoint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/smart-inventory-core/internal/inventory"
	"github.com/nerrad567/smart-inventory-core/internal/recognition"
)

// IdentifyItem recognises the item in image, records the attempt in the
// device's scan history and, when an item is found, lights its shelf.
//
// The code and tag recognition paths run concurrently within the device's
// group. A code match always wins and cancels the tag search; otherwise the
// tag result is used. Recognition failures degrade to "not found". The scan
// is recorded even if lighting fails, and the first failure is returned.
func (s *Service) IdentifyItem(ctx context.Context, deviceExternalID string, image []byte) error {
	if len(image) == 0 {
		return fmt.Errorf("%w: image is empty", ErrInvalidInput)
	}
	prepared, err := s.prepare(image, s.cfg.MaxImageDimension)
	if err != nil {
		return err
	}

	device, err := s.deps.Devices.GetByExternalID(ctx, deviceExternalID)
	if err != nil {
		return err
	}

	item, scanType := s.identify(ctx, device, prepared)
	found := item != nil

	entry := &inventory.ScanHistory{
		DeviceID: device.ID,
		ScanType: scanType,
		Result:   inventory.ScanResultNotFound,
	}
	if found {
		entry.Result = inventory.ScanResultFound
		s.logger.Info("item identified",
			"device", deviceExternalID,
			"item_id", item.ID,
			"scan_type", scanType,
		)
	} else {
		s.logger.Info("no item identified", "device", deviceExternalID)
	}

	tasks := []func() error{func() error {
		if err := s.deps.ScanHistory.Append(ctx, entry); err != nil {
			return fmt.Errorf("recording scan: %w", err)
		}
		return nil
	}}
	if found {
		tasks = append(tasks, func() error {
			return s.lightShelf(ctx, item, scanType)
		})
	}
	err = runConcurrently(tasks...)

	s.recordScan(device, scanType, found)
	event := inventory.ScanEvent{
		DeviceID: device.ID,
		GroupID:  device.GroupID,
		ScanType: scanType,
		Result:   entry.Result,
		At:       time.Now().UTC(),
	}
	if found {
		event.ItemID = item.ID
	}
	s.notify(inventory.EventScanRecorded, event)

	return err
}

// identify races the code path against the tag path under the code-first
// policy.
func (s *Service) identify(ctx context.Context, device *inventory.Device, image []byte) (*inventory.Item, inventory.ScanType) {
	tagCtx, cancelTags := context.WithCancel(ctx)
	defer cancelTags()

	codeResult := make(chan *inventory.Item, 1)
	tagResult := make(chan *inventory.Item, 1)
	go func() { codeResult <- s.findByCode(ctx, device, image) }()
	go func() { tagResult <- s.findByTags(tagCtx, device, image) }()

	if item := <-codeResult; item != nil {
		cancelTags()
		return item, inventory.ScanTypeCode
	}
	return <-tagResult, inventory.ScanTypeObject
}

// findByCode resolves the first item reference among decoded codes. Any
// failure is logged and treated as no match.
func (s *Service) findByCode(ctx context.Context, device *inventory.Device, image []byte) *inventory.Item {
	codes, err := s.deps.Recognizer.DecodeScannableCodes(ctx, image)
	if err != nil {
		s.logger.Warn("code recognition failed", "path", "code", "device", device.ExternalID, "error", err)
		return nil
	}

	itemID, ok := recognition.FirstItemReference(codes)
	if !ok {
		s.logger.Debug("no item reference in codes", "path", "code", "codes", len(codes))
		return nil
	}

	item, err := s.deps.Items.GetByIDInGroup(ctx, itemID, device.GroupID)
	if err != nil {
		if errors.Is(err, inventory.ErrItemNotFound) {
			s.logger.Debug("referenced item not in group", "path", "code", "item_id", itemID, "group_id", device.GroupID)
		} else {
			s.logger.Warn("item lookup failed", "path", "code", "item_id", itemID, "error", err)
		}
		return nil
	}
	return item
}

// findByTags searches the group for the top tags in parallel and returns
// the match of the highest-ranked tag that matched anything. A failed
// lookup only loses its own tag.
func (s *Service) findByTags(ctx context.Context, device *inventory.Device, image []byte) *inventory.Item {
	tags, err := s.deps.Recognizer.ExtractTags(ctx, image)
	if err != nil {
		s.logTagFailure(ctx, "tag recognition failed", err)
		return nil
	}

	top := recognition.TopTags(tags, tagSearchLimit)
	matches := make([]*inventory.Item, len(top))

	var g errgroup.Group
	for i, tag := range top {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			item, err := s.deps.Items.FindFirstInGroupByText(ctx, device.GroupID, tag.Name)
			if err != nil {
				s.logTagFailure(ctx, "tag search failed", fmt.Errorf("searching for tag %q: %w", tag.Name, err))
				return nil
			}
			matches[i] = item
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logTagFailure(ctx, "tag search cancelled", err)
		return nil
	}

	for _, item := range matches {
		if item != nil {
			return item
		}
	}
	return nil
}

// logTagFailure logs quietly when the tag path was cancelled because the
// code path already won.
func (s *Service) logTagFailure(ctx context.Context, msg string, err error) {
	if ctx.Err() != nil {
		s.logger.Debug(msg, "path", "tags", "error", err)
		return
	}
	s.logger.Warn(msg, "path", "tags", "error", err)
}

// lightShelf turns on the light of the item's shelf and, once the device
// acknowledged, records it in the item history and the shelf state.
func (s *Service) lightShelf(ctx context.Context, item *inventory.Item, scanType inventory.ScanType) error {
	shelf, err := s.deps.Shelves.GetByID(ctx, item.ShelfID)
	if err != nil {
		s.logger.Error("shelf of identified item unavailable", "item_id", item.ID, "shelf_id", item.ShelfID, "error", err)
		return fmt.Errorf("%w: shelf %s of item %s: %v", ErrLightTargetUnresolved, item.ShelfID, item.ID, err)
	}
	controller, err := s.deps.Devices.GetByID(ctx, shelf.DeviceID)
	if err != nil {
		s.logger.Error("controller of shelf unavailable", "shelf_id", shelf.ID, "device_id", shelf.DeviceID, "error", err)
		return fmt.Errorf("%w: controller %s of shelf %s: %v", ErrLightTargetUnresolved, shelf.DeviceID, shelf.ID, err)
	}

	err = s.deps.Lights.SetLight(ctx, controller.ExternalID, shelf.PositionInRack, true)
	s.recordLight(controller.ExternalID, shelf.PositionInRack, err == nil)
	if err != nil {
		s.logger.Error("turning on shelf light failed",
			"device", controller.ExternalID,
			"shelf_position", shelf.PositionInRack,
			"error", err,
		)
		return err
	}

	entry := &inventory.ItemHistory{
		ItemID:  item.ID,
		Type:    inventory.ItemHistoryScan,
		IsTaken: item.IsTaken,
		Comment: fmt.Sprintf("Light turned on by access point. %s scan.", scanType),
	}
	if err := s.deps.Recorder.RecordLightChange(ctx, shelf.ID, true, entry); err != nil {
		return fmt.Errorf("recording light change: %w", err)
	}

	s.notify(inventory.EventShelfLightChanged, inventory.LightEvent{
		ShelfID:  shelf.ID,
		GroupID:  shelf.GroupID,
		ItemID:   item.ID,
		IsLitUp:  true,
		Trigger:  triggerScan,
		DeviceID: controller.ID,
	})
	return nil
}
