package gtfs

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/passbi/transit_router/internal/models"
)

// GTFS route_type values
// https://gtfs.org/schedule/reference/#routestxt
const (
	RouteTypeTram        = 0
	RouteTypeMetro       = 1
	RouteTypeRail        = 2
	RouteTypeBus         = 3
	RouteTypeFerry       = 4
	RouteTypeCableTram   = 5
	RouteTypeGondola     = 6
	RouteTypeFunicular   = 7
	RouteTypeMinibus     = 9
	RouteTypeTaxiMinibus = 10
	RouteTypeTrolleybus  = 11
	RouteTypeMonorail    = 12
)

var routeTypeModes = map[int]models.Mode{
	RouteTypeTram:        models.ModeTram,
	RouteTypeMetro:       models.ModeMetro,
	RouteTypeRail:        models.ModeRail,
	RouteTypeBus:         models.ModeBus,
	RouteTypeFerry:       models.ModeFerry,
	RouteTypeCableTram:   models.ModeCableTram,
	RouteTypeGondola:     models.ModeGondola,
	RouteTypeFunicular:   models.ModeFunicular,
	RouteTypeMinibus:     models.ModeMinibus,
	RouteTypeTaxiMinibus: models.ModeMinibus,
	RouteTypeTrolleybus:  models.ModeTrolleybus,
	RouteTypeMonorail:    models.ModeMonorail,
}

// InferMode determines the transit mode from a GTFS route.
// Extended route types (100-1700) are folded onto their basic family;
// anything unknown defaults to bus.
func InferMode(route models.GTFSRoute) models.Mode {
	if mode, ok := routeTypeModes[route.RouteType]; ok {
		return mode
	}

	switch {
	case route.RouteType >= 100 && route.RouteType < 200:
		return models.ModeRail
	case route.RouteType >= 400 && route.RouteType < 500:
		return models.ModeMetro
	case route.RouteType >= 900 && route.RouteType < 1000:
		return models.ModeTram
	case route.RouteType >= 1000 && route.RouteType < 1100:
		return models.ModeFerry
	case route.RouteType >= 1300 && route.RouteType < 1400:
		return models.ModeGondola
	case route.RouteType == 1400:
		return models.ModeFunicular
	case route.RouteType == 1500:
		return models.ModeTaxi
	}

	return models.ModeBus
}

// RouteName picks the label shown to riders: short name first, then long name
func RouteName(route models.GTFSRoute) string {
	if route.ShortName != "" {
		return route.ShortName
	}
	return route.LongName
}

// ParseTimeToSeconds converts GTFS time format (HH:MM:SS) to seconds
// Handles times >= 24:00:00 (next day service)
func ParseTimeToSeconds(timeStr string) (int, error) {
	if timeStr == "" {
		return 0, fmt.Errorf("empty time string")
	}

	parts := strings.Split(timeStr, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid time format: %s", timeStr)
	}

	var fields [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || v < 0 {
			return 0, fmt.Errorf("invalid time format: %s", timeStr)
		}
		fields[i] = v
	}
	if fields[1] > 59 || fields[2] > 59 {
		return 0, fmt.Errorf("invalid time format: %s", timeStr)
	}

	return fields[0]*3600 + fields[1]*60 + fields[2], nil
}

// ValidateAndCleanStops removes stops with out-of-range coordinates.
// Stops at (0,0) are kept: the coordinates are treated as missing.
func ValidateAndCleanStops(stops []models.GTFSStop) []models.GTFSStop {
	cleaned := []models.GTFSStop{}
	seen := make(map[string]bool, len(stops))

	for _, stop := range stops {
		if stop.Lat < -90 || stop.Lat > 90 {
			log.Printf("Warning: invalid latitude for stop %s: %f", stop.StopID, stop.Lat)
			continue
		}
		if stop.Lon < -180 || stop.Lon > 180 {
			log.Printf("Warning: invalid longitude for stop %s: %f", stop.StopID, stop.Lon)
			continue
		}
		if seen[stop.StopID] {
			log.Printf("Warning: duplicate stop_id %s, keeping first occurrence", stop.StopID)
			continue
		}
		seen[stop.StopID] = true

		cleaned = append(cleaned, stop)
	}

	if len(cleaned) < len(stops) {
		log.Printf("Cleaned stops: removed %d invalid stops", len(stops)-len(cleaned))
	}

	return cleaned
}
