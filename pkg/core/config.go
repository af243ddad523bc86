// Package core provides the chat session state engine and its interfaces.
package core

import "time"

// Config represents the client configuration as key-value pairs, allowing
// the embedding application to pass settings through without a fixed schema.
type Config map[string]interface{}

// GetString returns a string value from the configuration.
func (c Config) GetString(key string) (string, bool) {
	val, ok := c[key]
	if !ok {
		return "", false
	}
	str, ok := val.(string)
	return str, ok
}

// GetInt returns an int value from the configuration.
func (c Config) GetInt(key string) (int, bool) {
	val, ok := c[key]
	if !ok {
		return 0, false
	}
	// Handle both int and float64 (from JSON unmarshaling)
	switch v := val.(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

// GetBool returns a bool value from the configuration.
func (c Config) GetBool(key string) (bool, bool) {
	val, ok := c[key]
	if !ok {
		return false, false
	}
	b, ok := val.(bool)
	return b, ok
}

// GetDuration returns a duration value from the configuration, accepting
// either a time.Duration or a string in time.ParseDuration syntax.
func (c Config) GetDuration(key string) (time.Duration, bool) {
	val, ok := c[key]
	if !ok {
		return 0, false
	}
	switch v := val.(type) {
	case time.Duration:
		return v, true
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, false
		}
		return d, true
	default:
		return 0, false
	}
}

// Set sets a value in the configuration.
func (c Config) Set(key string, value interface{}) {
	c[key] = value
}
