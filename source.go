package dynform

import (
	"bytes"
	"errors"
	"sync"

	"github.com/goccy/go-json"
)

// Config text formats understood by drivers.
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ConfigDriver decodes raw config text into FieldConfig values via a
// pluggable SPI. The default implementation is based on goccy/go-json and
// may be swapped with SetConfigDriver (see source/yaml).
type ConfigDriver interface {
	Decode(data []byte) ([]FieldConfig, error)
	Name() string
	// Format is FormatJSON or FormatYAML. JSON input is additionally scanned
	// for duplicate object keys.
	Format() string
}

var (
	configDriverMu      sync.RWMutex
	currentConfigDriver ConfigDriver = defaultConfigDriver{}
)

// SetConfigDriver replaces the global config driver; nil values are ignored.
func SetConfigDriver(d ConfigDriver) {
	if d == nil {
		return
	}
	configDriverMu.Lock()
	currentConfigDriver = d
	configDriverMu.Unlock()
}

// UseDefaultConfigDriver restores the default go-json driver.
func UseDefaultConfigDriver() {
	configDriverMu.Lock()
	currentConfigDriver = defaultConfigDriver{}
	configDriverMu.Unlock()
}

func getConfigDriver() ConfigDriver {
	configDriverMu.RLock()
	d := currentConfigDriver
	configDriverMu.RUnlock()
	return d
}

// CurrentConfigDriver returns the active driver.
func CurrentConfigDriver() ConfigDriver { return getConfigDriver() }

type defaultConfigDriver struct{}

func (defaultConfigDriver) Decode(data []byte) ([]FieldConfig, error) { return DecodeJSON(data) }
func (defaultConfigDriver) Name() string                              { return "go-json" }
func (defaultConfigDriver) Format() string                            { return FormatJSON }

// DecodeJSON decodes a JSON array of FieldConfig. Drivers for other formats
// convert to JSON and call it so both syntaxes of conditions stay available.
func DecodeJSON(data []byte) ([]FieldConfig, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("empty config")
	}
	if data[0] != '[' {
		return nil, errors.New("config must be a JSON array of fields")
	}
	var out []FieldConfig
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DecodeConfigs decodes raw config text with the active driver.
func DecodeConfigs(data []byte) ([]FieldConfig, error) {
	return getConfigDriver().Decode(data)
}
