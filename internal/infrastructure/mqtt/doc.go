// Package mqtt publishes sunwatch snapshots to an MQTT broker.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Retained snapshot and status publishing
//   - Last Will and Testament (LWT) for offline detection
//   - The refresh command subscription
//
// MQTT output is optional. When enabled, every snapshot the refresh cache
// publishes is mirrored to <prefix>/snapshot as retained JSON, so late
// subscribers immediately see the latest values. Home automation systems
// can request an out-of-band refresh by publishing to
// <prefix>/command/refresh.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	bridge := mqtt.NewBridge(client, cache, mqtt.Topics{Prefix: cfg.MQTT.TopicPrefix}, log, m)
//	if err := bridge.Start(ctx); err != nil {
//	    return err
//	}
//
// # Security Considerations
//
//   - Enable TLS (cfg.Broker.TLS=true) when the broker is not on localhost
//   - Credentials come from config or SUNWATCH_MQTT_USERNAME/PASSWORD
package mqtt
