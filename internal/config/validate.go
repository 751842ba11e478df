package config

import (
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strings"
)

// Validate checks the configuration for invalid or missing values.
func (c *Config) Validate() error {
	if errs := c.validate(); len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func (c *Config) validate() []string {
	var errs []string

	if strings.TrimSpace(c.Identity.DisplayName) == "" {
		errs = append(errs, "identity.displayName must not be blank")
	}

	// calling
	if c.Calling.KeepAliveSeconds < 0 {
		errs = append(errs, "calling.keepAliveSeconds must be non-negative")
	}
	if c.Calling.GatewayURL != "" && !hasScheme(c.Calling.GatewayURL, "ws", "wss") {
		errs = append(errs, "calling.gatewayUrl must be a ws:// or wss:// URL")
	}

	// chat
	switch c.Chat.Backend {
	case BackendGateway:
		if c.Chat.Endpoint != "" && !hasScheme(c.Chat.Endpoint, "http", "https") {
			errs = append(errs, "chat.endpoint must be an http:// or https:// URL")
		}
	case BackendDiscord:
		if c.Discord.Token == "" {
			errs = append(errs, "discord.token is required when chat.backend is discord")
		}
		if c.Discord.ChannelID == "" {
			errs = append(errs, "discord.channelId is required when chat.backend is discord")
		}
	default:
		errs = append(errs, fmt.Sprintf("chat.backend must be %q or %q", BackendGateway, BackendDiscord))
	}

	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, "log.level must be one of debug, info, warn, error")
	}

	return errs
}

func hasScheme(raw string, schemes ...string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return true
		}
	}
	return false
}

// CheckUnknownFields walks the raw config map and returns paths of any keys
// that do not correspond to known Config struct fields.
func CheckUnknownFields(raw map[string]any) []string {
	result := checkUnknownFields(raw, reflect.TypeOf(Config{}), "")
	sort.Strings(result)
	return result
}

func checkUnknownFields(data map[string]any, t reflect.Type, prefix string) []string {
	t = derefType(t)

	switch t.Kind() {
	case reflect.Map:
		// Map keys are user-defined; check values only.
		elemType := derefType(t.Elem())
		if elemType.Kind() != reflect.Struct {
			return nil
		}
		var unknown []string
		for key, val := range data {
			if nested, ok := val.(map[string]any); ok {
				unknown = append(unknown, checkUnknownFields(nested, elemType, joinPath(prefix, key))...)
			}
		}
		return unknown

	case reflect.Struct:
		known := jsonFieldMap(t)
		var unknown []string
		for key, val := range data {
			ft, ok := known[key]
			if !ok {
				unknown = append(unknown, joinPath(prefix, key))
				continue
			}
			if nested, ok := val.(map[string]any); ok {
				unknown = append(unknown, checkUnknownFields(nested, ft, joinPath(prefix, key))...)
			}
		}
		return unknown

	default:
		return nil
	}
}

func jsonFieldMap(t reflect.Type) map[string]reflect.Type {
	m := make(map[string]reflect.Type, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("json")
		if tag == "" || tag == "-" {
			continue
		}
		name := strings.Split(tag, ",")[0]
		if name != "" {
			m[name] = f.Type
		}
	}
	return m
}

func derefType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
