package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// NotificationConfig holds the templates used for tenant payment emails.
// Templates use text/template syntax and receive the stored payment record.
type NotificationConfig struct {
	SenderName      string `mapstructure:"senderName"`
	SubjectTemplate string `mapstructure:"subjectTemplate"`
	BodyTemplate    string `mapstructure:"bodyTemplate"`
}

func DefaultNotificationConfig() NotificationConfig {
	return NotificationConfig{
		SenderName:      "Rent Payments",
		SubjectTemplate: `Rent payment {{ .Status }}{{ if .RentMonth }} for {{ .RentMonth }}{{ end }}`,
		BodyTemplate: `Hello,

We received an update for your rent payment{{ if .RentMonth }} for {{ .RentMonth }}{{ end }}.

Rent amount: {{ money .RentAmount }}
Additional charges: {{ money .AdditionalCharges }}
Initial late fee: {{ money .InitialLateFee }}
Daily late fee: {{ money .DailyLateFee }}
Amount charged: {{ money .Amount }}
Status: {{ .Status }}

Reference: {{ .PaymentIntentID }}
`,
	}
}

type NotificationConfigHolder struct {
	current atomic.Value // holds NotificationConfig
}

// NewStaticNotificationConfigHolder returns a holder that never reloads.
func NewStaticNotificationConfigHolder(cfg NotificationConfig) *NotificationConfigHolder {
	holder := &NotificationConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewNotificationConfigHolder() (*NotificationConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("notification")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/rentpay")
	v.AddConfigPath(".")

	v.SetEnvPrefix("RENTPAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultNotificationConfig()
	v.SetDefault("notification.senderName", defaults.SenderName)
	v.SetDefault("notification.subjectTemplate", defaults.SubjectTemplate)
	v.SetDefault("notification.bodyTemplate", defaults.BodyTemplate)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		fileLoaded = false
	}

	var cfg NotificationConfig
	if err := v.UnmarshalKey("notification", &cfg); err != nil {
		return nil, err
	}
	if err := validateNotificationConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticNotificationConfigHolder(cfg)
	if !fileLoaded {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated NotificationConfig
		if err := v.UnmarshalKey("notification", &updated); err != nil {
			log.Printf("[notification-config] reload failed: %v", err)
			return
		}
		if err := validateNotificationConfig(updated); err != nil {
			log.Printf("[notification-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[notification-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *NotificationConfigHolder) Get() NotificationConfig {
	if h == nil {
		return DefaultNotificationConfig()
	}
	cfg, ok := h.current.Load().(NotificationConfig)
	if !ok {
		return DefaultNotificationConfig()
	}
	return cfg
}

func validateNotificationConfig(cfg NotificationConfig) error {
	if strings.TrimSpace(cfg.SubjectTemplate) == "" {
		return errors.New("notification.subjectTemplate cannot be empty")
	}
	if strings.TrimSpace(cfg.BodyTemplate) == "" {
		return errors.New("notification.bodyTemplate cannot be empty")
	}
	return nil
}
