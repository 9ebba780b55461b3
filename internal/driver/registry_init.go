// internal/driver/registry_init.go
package driver

import (
	"go.uber.org/zap"

	"tachymeter-service/internal/driver/leica"
	"tachymeter-service/internal/model"
)

// RegisterDefaultDrivers registers all default instrument drivers
func RegisterDefaultDrivers(registry *Registry, logger *zap.Logger) {
	registerLeicaDrivers(registry, logger)

	// Any instrument that speaks GeoCOM ASCII falls back to the same driver
	registry.Register(model.BrandGeneric, "*", leica.NewTotalStationDriver)
}

// registerLeicaDrivers registers Leica total station drivers
func registerLeicaDrivers(registry *Registry, logger *zap.Logger) {
	models := []string{"TS30", "TM30", "TS16", "TS60", "*"}
	for _, m := range models {
		registry.Register(model.BrandLeica, m, leica.NewTotalStationDriver)
	}

	logger.Info("Leica total station drivers registered",
		zap.Int("models", len(models)),
	)
}
