// Package mqtt provides the MQTT transport between LUCID Core and the host GUI.
//
// Core publishes the overview document (retained) and activation results,
// and subscribes to activation requests. A retained status message with a
// Last Will marks the service online or offline.
//
// Topic layout is built by Topics; the prefix comes from mqtt.topic_prefix.
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.PublishJSON(client.Topics().Overview("tmo"), ov, true)
package mqtt
