// Package mqtt provides MQTT connectivity for the Gray Logic automation service.
//
// MQTT is the bus between this service and the protocol bridges:
//
//	bridge ──graylogic/state/{integration}/{entity_id}──▶ automation service
//	automation service ──graylogic/command/{integration}/{entity_id}──▶ bridge
//
// The client reconnects automatically with backoff, restores subscriptions
// after a reconnect, and publishes a retained online/offline status with a
// Last Will for crash detection.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllEntityStates(), 1, handler)
//	err = client.PublishJSON(mqtt.Topics{}.EntityCommand("knx", "light.kitchen"), cmd, 1)
//
// Use TLS (mqtt.broker.tls) outside a trusted LAN.
package mqtt
