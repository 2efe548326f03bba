// Package lighting drives shelf lights on rack shelf controllers.
//
// A command is published to inventory/device/{externalID}/command and is
// confirmed by the device on inventory/device/{externalID}/ack with the same
// request id. SetLight blocks until the ack, a timeout, cancellation or
// Stop, and reports every unconfirmed command as a *DeviceError matching
// ErrDeviceFailure.
//
//	ctrl := lighting.NewController(mqttClient, lighting.Config{CommandTimeout: 30 * time.Second, QoS: 1})
//	if err := ctrl.Start(); err != nil {
//	    return err
//	}
//	defer ctrl.Stop()
//	err := ctrl.SetLight(ctx, device.ExternalID, shelf.PositionInRack, true)
package lighting
