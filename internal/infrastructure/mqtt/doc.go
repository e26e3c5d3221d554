// Package mqtt is the headless presentation surface of the bridge.
//
// It wraps paho.mqtt.golang and manages:
//   - Connection to the broker with auto-reconnect and subscription restore
//   - A retained online/offline status document with a Last Will
//   - Publishing status notifications and capture events
//   - Receiving manual test commands
//
// # Topics
//
//	motionbridge/system/status             retained online/offline (LWT)
//	motionbridge/system/notification       every status notification
//	motionbridge/device/<index>/capture    completed capture events (JSON)
//	motionbridge/command/<index>/<action>  test-rumble, test-speaker
//
// Device indexes in topics are 1-based, as on the UDP wire.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	queue.AddConsumer(mqtt.NewNotificationConsumer(client, client.QoS(), log))
//	err = client.Subscribe(mqtt.Topics{}.AllCommands(), client.QoS(), tester.HandleMQTTCommand)
//
// Handlers run on paho goroutines. Panics are recovered and returned errors
// are logged.
package mqtt
