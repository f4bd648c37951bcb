package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	MQTT    MQTTConfig    `mapstructure:"mqtt"`
	Storage StorageConfig `mapstructure:"storage"`
	Device  DeviceConfig  `mapstructure:"device"`
	BLE     BLEConfig     `mapstructure:"ble"`
	Runtime RuntimeConfig `mapstructure:"runtime"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	HTTPPort        int           `mapstructure:"http_port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type MQTTConfig struct {
	BrokerURI      string        `mapstructure:"broker_uri"`
	ClientID       string        `mapstructure:"client_id"`
	QoS            byte          `mapstructure:"qos"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay"`
}

type StorageConfig struct {
	Path string `mapstructure:"path"`
}

// Device Configuration
type DeviceConfig struct {
	MACOverride     string `mapstructure:"mac_override"`
	HardwareProfile string `mapstructure:"hardware_profile"`
}

type BLEConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	ListenPort int  `mapstructure:"listen_port"`
	MTU        int  `mapstructure:"mtu"`
}

type RuntimeConfig struct {
	SyncInterval     time.Duration `mapstructure:"sync_interval"`
	MonitorInterval  time.Duration `mapstructure:"monitor_interval"`
	OneWireScan      time.Duration `mapstructure:"one_wire_scan_interval"`
	ConfigWindow     time.Duration `mapstructure:"config_window"`
	MaxConfigSize    int           `mapstructure:"max_config_size"`
	WireSpawnSpacing time.Duration `mapstructure:"wire_spawn_spacing"`
}

type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

func Load(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	// Defaults setzen
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.http_port", 8080)
	viper.SetDefault("server.shutdown_timeout", "30s")

	// MQTT Defaults
	viper.SetDefault("mqtt.broker_uri", "tcp://localhost:1883")
	viper.SetDefault("mqtt.client_id", "")
	viper.SetDefault("mqtt.qos", 1)
	viper.SetDefault("mqtt.connect_timeout", "10s")
	viper.SetDefault("mqtt.reconnect_delay", "5s")

	viper.SetDefault("storage.path", "data/openladdercore.db")
	viper.SetDefault("device.mac_override", "")
	viper.SetDefault("device.hardware_profile", "")

	viper.SetDefault("ble.enabled", false)
	viper.SetDefault("ble.listen_port", 9100)
	viper.SetDefault("ble.mtu", 23)

	viper.SetDefault("runtime.sync_interval", "100ms")
	viper.SetDefault("runtime.monitor_interval", "100ms")
	viper.SetDefault("runtime.one_wire_scan_interval", "1s")
	viper.SetDefault("runtime.config_window", "10s")
	viper.SetDefault("runtime.max_config_size", 524288)
	viper.SetDefault("runtime.wire_spawn_spacing", "200ms")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.development", false)

	// Environment Variables automatisch binden (Viper Feature)
	viper.AutomaticEnv()
	viper.SetEnvPrefix("OLC") // Environment Variables mit Prefix OLC_

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}
