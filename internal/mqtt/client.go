package mqtt

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// reconnect uses a fixed backoff: the broker is local and flaps are short
const reconnectInterval = 5 * time.Second

type subscription struct {
	qos     byte
	handler mqtt.MessageHandler
}

// Client wraps a paho connection and remembers every subscription so it can
// re-issue all of them after a reconnect. A broker reconnect without
// resubscription silently drops all future updates, which is exactly the
// failure this wrapper exists to prevent.
type Client struct {
	client mqtt.Client

	mu   sync.Mutex
	subs map[string]subscription
}

type Options struct {
	Host      string
	Port      int
	Username  string
	Password  string
	ClientID  string
	WillTopic string
	// CredentialsProvider, when set, is consulted on every connect attempt.
	// Brokers that authenticate with rotating tokens need fresh credentials
	// after a reconnect, not the ones captured at client construction.
	CredentialsProvider func() (username string, password string)
	// OnConnectionLost is invoked on every drop, after paho schedules the
	// reconnect.
	OnConnectionLost func(error)
}

func NewClient(opts Options) *Client {
	c := &Client{
		subs: map[string]subscription{},
	}

	pahoOpts := mqtt.NewClientOptions()
	pahoOpts.AddBroker(fmt.Sprintf("tcp://%s:%d", opts.Host, opts.Port))
	if opts.ClientID == "" {
		opts.ClientID = fmt.Sprintf("neasmart2mqtt_%d", rand.Intn(1000))
	}
	pahoOpts.SetClientID(opts.ClientID)
	if opts.Username != "" && opts.Password != "" {
		pahoOpts.SetUsername(opts.Username)
		pahoOpts.SetPassword(opts.Password)
	}
	if opts.CredentialsProvider != nil {
		pahoOpts.SetCredentialsProvider(func() (string, string) {
			return opts.CredentialsProvider()
		})
	}
	pahoOpts.SetAutoReconnect(true)
	pahoOpts.SetConnectRetryInterval(reconnectInterval)
	pahoOpts.SetMaxReconnectInterval(reconnectInterval)
	if opts.WillTopic != "" {
		pahoOpts.WillEnabled = true
		pahoOpts.WillPayload = []byte(MQTT_PAYLOAD_OFFLINE)
		pahoOpts.WillRetained = true
		pahoOpts.WillTopic = opts.WillTopic
		pahoOpts.WillQos = 0
	}
	pahoOpts.OnConnect = func(client mqtt.Client) {
		c.resubscribeAll()
	}
	if opts.OnConnectionLost != nil {
		pahoOpts.OnConnectionLost = func(_ mqtt.Client, err error) {
			opts.OnConnectionLost(err)
		}
	}

	c.client = mqtt.NewClient(pahoOpts)
	return c
}

func (c *Client) Connect(continuation func(error), timeout time.Duration) {
	token := c.client.Connect()
	go func() {
		if !token.WaitTimeout(timeout) {
			continuation(errors.New("MQTT connect timed out"))
		} else {
			continuation(token.Error())
		}
	}()
}

func (c *Client) Publish(topic string, payload any, qos byte, retain bool, continuation func(error), timeout time.Duration) {
	token := c.client.Publish(topic, qos, retain, payload)
	go func() {
		if !token.WaitTimeout(timeout) {
			continuation(errors.New("MQTT publish timed out"))
		} else {
			continuation(token.Error())
		}
	}()
}

// Subscribe records the subscription before issuing it, so a reconnect
// replays it even if the first attempt races with a connection drop.
func (c *Client) Subscribe(topic string, qos byte, handler mqtt.MessageHandler, continuation func(error), timeout time.Duration) {
	c.mu.Lock()
	c.subs[topic] = subscription{qos: qos, handler: handler}
	c.mu.Unlock()

	token := c.client.Subscribe(topic, qos, handler)
	go func() {
		if !token.WaitTimeout(timeout) {
			continuation(errors.New("MQTT subscribe timed out"))
		} else {
			continuation(token.Error())
		}
	}()
}

func (c *Client) Unsubscribe(topic string, continuation func(error), timeout time.Duration) {
	c.mu.Lock()
	delete(c.subs, topic)
	c.mu.Unlock()

	token := c.client.Unsubscribe(topic)
	go func() {
		if !token.WaitTimeout(timeout) {
			continuation(errors.New("MQTT unsubscribe timed out"))
		} else {
			continuation(token.Error())
		}
	}()
}

func (c *Client) resubscribeAll() {
	c.mu.Lock()
	subs := make(map[string]subscription, len(c.subs))
	for topic, sub := range c.subs {
		subs[topic] = sub
	}
	c.mu.Unlock()

	for topic, sub := range subs {
		c.client.Subscribe(topic, sub.qos, sub.handler)
	}
}

// ActiveSubscriptions lists the topics currently tracked for resubscribe.
func (c *Client) ActiveSubscriptions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	topics := make([]string, 0, len(c.subs))
	for topic := range c.subs {
		topics = append(topics, topic)
	}
	return topics
}

func (c *Client) IsConnected() bool {
	return c.client.IsConnectionOpen()
}

func (c *Client) Disconnect(timeout time.Duration) {
	c.client.Disconnect(uint(timeout.Milliseconds()))
}
