// Package mqtt provides the broker connection used to command shelf
// controllers and receive their acknowledgements and sensor events.
//
// The client reconnects automatically with backoff, restores subscriptions
// after a reconnect, and publishes a retained online/offline status with a
// Last Will so devices can tell when the core is gone.
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllDeviceAcks(), 1,
//	    func(topic string, payload []byte) error {
//	        externalID, _, _ := mqtt.ParseDeviceTopic(topic)
//	        log.Printf("ack from %s: %s", externalID, payload)
//	        return nil
//	    })
//
// TLS should be enabled for any broker reachable outside the rack network.
package mqtt
