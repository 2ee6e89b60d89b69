package mqtt

import (
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// Options - параметры подключения к брокеру
type Options struct {
	Broker   string
	ClientID string
	Username string
	Password string
}

// NewClient создает клиент и подключается к брокеру
func NewClient(opts Options) (paho.Client, error) {
	o := paho.NewClientOptions()
	o.AddBroker(opts.Broker)
	o.SetClientID(opts.ClientID)
	if opts.Username != "" {
		o.SetUsername(opts.Username)
	}
	if opts.Password != "" {
		o.SetPassword(opts.Password)
	}
	// Брокер хранит подписки между переподключениями
	o.SetAutoReconnect(true)
	o.SetCleanSession(false)
	o.SetResumeSubs(true)
	o.SetConnectTimeout(10 * time.Second)

	client := paho.NewClient(o)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return client, nil
}
