package api

import (
	"fmt"
	"strings"

	"salesops/internal/geo"
	"salesops/internal/join"
	"salesops/internal/model"
	"salesops/internal/view"
)

var columnTypes = map[string]struct{}{"": {}, "text": {}, "number": {}, "date": {}, "currency": {}, "bool": {}, "link": {}}

func validateViewConfig(cfg *model.ViewConfig, datasets []string) error {
	if err := join.Validate(cfg.Joins, datasets); err != nil {
		return err
	}
	for i, f := range cfg.Filters {
		if strings.TrimSpace(f.Field) == "" {
			return fmt.Errorf("filters[%d]: field required", i)
		}
		if !view.ValidOp(f.Op) {
			return fmt.Errorf("filters[%d]: unknown op %q", i, f.Op)
		}
	}
	for col, t := range cfg.Types {
		if _, ok := columnTypes[strings.ToLower(t)]; !ok {
			return fmt.Errorf("types.%s: unknown type %q", col, t)
		}
	}
	switch geo.Mode(cfg.Map.Mode) {
	case "", geo.ModeAuto:
	case geo.ModeManual:
		if strings.TrimSpace(cfg.Map.LatField) == "" || strings.TrimSpace(cfg.Map.LngField) == "" {
			return fmt.Errorf("map: manual mode needs latField and lngField")
		}
	default:
		return fmt.Errorf("map: unknown mode %q (allowed: auto, manual)", cfg.Map.Mode)
	}
	if cfg.Map.RefLat != nil && !geo.Lat.InRange(*cfg.Map.RefLat) {
		return fmt.Errorf("map: refLat out of range")
	}
	if cfg.Map.RefLng != nil && !geo.Lng.InRange(*cfg.Map.RefLng) {
		return fmt.Errorf("map: refLng out of range")
	}
	return nil
}
