// internal/driver/registry.go
package driver

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"tachymeter-service/internal/model"
	"tachymeter-service/pkg/driver"
)

// DriverFactory creates instrument drivers
type DriverFactory func(instrument *model.Instrument, settings driver.Settings, logger *zap.Logger) (driver.InstrumentDriver, error)

// Registry manages instrument driver registration and creation
type Registry struct {
	drivers map[DriverKey]DriverFactory
	mu      sync.RWMutex
	logger  *zap.Logger
}

// DriverKey uniquely identifies a driver
type DriverKey struct {
	Brand model.InstrumentBrand
	Model string
}

// NewRegistry creates a new driver registry
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		drivers: make(map[DriverKey]DriverFactory),
		logger:  logger,
	}
}

// Register registers a driver factory. Model "*" matches any model of the brand.
func (r *Registry) Register(brand model.InstrumentBrand, instrumentModel string, factory DriverFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.drivers[DriverKey{Brand: brand, Model: instrumentModel}] = factory
	r.logger.Info("Driver registered",
		zap.String("brand", string(brand)),
		zap.String("model", instrumentModel),
	)
}

// CreateDriver creates a driver instance
func (r *Registry) CreateDriver(instrument *model.Instrument, settings driver.Settings) (driver.InstrumentDriver, error) {
	factory, ok := r.lookup(instrument.Brand, instrument.Model)
	if !ok {
		return nil, fmt.Errorf("no driver found for brand=%s, model=%s", instrument.Brand, instrument.Model)
	}
	return factory(instrument, settings, r.logger)
}

// IsSupported checks if an instrument is supported
func (r *Registry) IsSupported(brand model.InstrumentBrand, instrumentModel string) bool {
	_, ok := r.lookup(brand, instrumentModel)
	return ok
}

// lookup tries the exact model, then the brand wildcard, then the generic driver
func (r *Registry) lookup(brand model.InstrumentBrand, instrumentModel string) (DriverFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key := DriverKey{Brand: brand, Model: instrumentModel}
	if factory, exists := r.drivers[key]; exists {
		return factory, true
	}

	key.Model = "*"
	if factory, exists := r.drivers[key]; exists {
		return factory, true
	}

	key.Brand = model.BrandGeneric
	factory, exists := r.drivers[key]
	return factory, exists
}

// ListDrivers returns all registered drivers
func (r *Registry) ListDrivers() []DriverKey {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]DriverKey, 0, len(r.drivers))
	for key := range r.drivers {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Brand != keys[j].Brand {
			return keys[i].Brand < keys[j].Brand
		}
		return keys[i].Model < keys[j].Model
	})
	return keys
}

// GetSupportedBrands returns all brands with at least one driver
func (r *Registry) GetSupportedBrands() []model.InstrumentBrand {
	r.mu.RLock()
	defer r.mu.RUnlock()

	brandSet := make(map[model.InstrumentBrand]bool)
	for key := range r.drivers {
		brandSet[key.Brand] = true
	}

	brands := make([]model.InstrumentBrand, 0, len(brandSet))
	for brand := range brandSet {
		brands = append(brands, brand)
	}
	sort.Slice(brands, func(i, j int) bool { return brands[i] < brands[j] })
	return brands
}
