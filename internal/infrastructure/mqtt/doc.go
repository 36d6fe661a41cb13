// Package mqtt provides MQTT client connectivity for the fritzcore
// event mirror.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// fritzcore publishes router call events and identity onto the broker
// so home automation consumers can react to them without talking TR-064
// themselves. The mirror is publish-only; fritzcore never subscribes.
//
//	Router call monitor → fritzcore → MQTT Broker → consumers
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	topic := client.Topics().CallEvent("ring")
//	client.Publish(topic, payload, 1, false)
package mqtt
