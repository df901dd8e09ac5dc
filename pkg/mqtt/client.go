package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"apk_release/pkg/config"
	"apk_release/pkg/logger"
	"apk_release/pkg/models"

	MQTT "github.com/eclipse/paho.mqtt.golang"
)

// publishTimeout 等待 broker 确认的最长时间，避免通知拖住发布流程
const publishTimeout = 5 * time.Second

// Notifier 发布事件通知接口
type Notifier interface {
	Notify(event models.ReleaseEvent) error
	Close()
}

// Publisher paho 客户端中通知器用到的部分
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) MQTT.Token
}

// Client MQTT通知客户端
type Client struct {
	client    MQTT.Client
	publisher Publisher
	baseTopic string
	brokerURL string
	logger    logger.Logger
}

// NewClient 根据配置创建MQTT客户端（尚未连接）
func NewClient(cfg *config.Config, log logger.Logger) *Client {
	if log == nil {
		log = logger.Discard
	}

	opts := MQTT.NewClientOptions().AddBroker(cfg.BrokerURL())
	opts.SetClientID(fmt.Sprintf("release_%d", time.Now().Unix()))
	opts.SetCleanSession(true)

	if cfg.MQTTUsername != "" {
		opts.SetUsername(cfg.MQTTUsername)
		opts.SetPassword(cfg.MQTTPassword)
	}

	client := MQTT.NewClient(opts)
	return &Client{
		client:    client,
		publisher: client,
		baseTopic: cfg.ReleaseTopic,
		brokerURL: cfg.BrokerURL(),
		logger:    log,
	}
}

// Connect 连接到MQTT服务器
func (c *Client) Connect() error {
	token := c.client.Connect()
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("MQTT connection timed out")
	}
	if token.Error() != nil {
		return fmt.Errorf("MQTT connection failed: %w", token.Error())
	}

	c.logger.Info("Connected to MQTT broker %s", c.brokerURL)
	return nil
}

// Topic 返回某个应用的事件主题，例如 release/events/FieldApp
func (c *Client) Topic(appName string) string {
	base := strings.TrimSuffix(c.baseTopic, "/")
	if appName == "" {
		return base
	}
	return base + "/" + appName
}

// Notify 发布一条事件，QoS 0，不保留
func (c *Client) Notify(event models.ReleaseEvent) error {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event failed: %w", err)
	}

	topic := c.Topic(event.Artifact.Name)
	token := c.publisher.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s to %s timed out", event.Type, topic)
	}
	if token.Error() != nil {
		return fmt.Errorf("publish failed: %w", token.Error())
	}
	return nil
}

// Close 断开连接
func (c *Client) Close() {
	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(250)
		c.logger.Debug("Disconnected from MQTT broker")
	}
}

// NopNotifier 未配置MQTT时使用，丢弃所有事件
type NopNotifier struct{}

func (NopNotifier) Notify(models.ReleaseEvent) error { return nil }

func (NopNotifier) Close() {}

// NewNotifier 配置了 MQTT_BROKER 时连接并返回通知器，否则返回 NopNotifier
func NewNotifier(cfg *config.Config, log logger.Logger) (Notifier, error) {
	if !cfg.MQTTEnabled() {
		return NopNotifier{}, nil
	}

	client := NewClient(cfg, log)
	if err := client.Connect(); err != nil {
		return NopNotifier{}, err
	}
	return client, nil
}
