//go:build integration

package mqtt

import (
	"testing"
	"time"
)

// Integration tests require a running MQTT broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -v ./internal/infrastructure/mqtt/...

func TestIntegration_ActivationRoundtrip(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.ClientID = "lucid-int-roundtrip"

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	received := make(chan string, 1)
	err = client.Subscribe(client.Topics().AllActivate(), 1, func(topic string, _ []byte) error {
		beamline, _ := client.Topics().BeamlineOf(topic)
		received <- beamline
		return nil
	})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if !client.HasSubscription(client.Topics().AllActivate()) {
		t.Error("subscription not tracked")
	}

	if err := client.PublishJSON(client.Topics().Activate("tmo"), map[string]string{"tab": "T", "label": "L"}, false); err != nil {
		t.Fatalf("PublishJSON() error = %v", err)
	}

	select {
	case got := <-received:
		if got != "tmo" {
			t.Errorf("beamline = %q, want tmo", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for activation request")
	}
}
