package gtfs

import (
	"archive/zip"
	"encoding/csv"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/passbi/transit_router/internal/models"
)

// GTFSFeed represents a parsed GTFS feed
type GTFSFeed struct {
	Agencies  []models.GTFSAgency
	Stops     []models.GTFSStop
	Routes    []models.GTFSRoute
	Trips     []models.GTFSTrip
	StopTimes []models.GTFSStopTime
}

// Open parses a feed from a .zip archive or an unpacked directory
func Open(feedPath string) (*GTFSFeed, error) {
	info, err := os.Stat(feedPath)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return ParseFS(os.DirFS(feedPath))
	}
	return ParseGTFSZip(feedPath)
}

// ParseGTFSZip parses a GTFS ZIP file without extracting it to disk
func ParseGTFSZip(zipPath string) (*GTFSFeed, error) {
	reader, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open zip: %w", err)
	}
	defer reader.Close()

	root, err := feedRoot(reader)
	if err != nil {
		return nil, err
	}
	return ParseFS(root)
}

// ParseFS parses the GTFS text files found at the root of fsys
func ParseFS(fsys fs.FS) (*GTFSFeed, error) {
	feed := &GTFSFeed{}

	// agency.txt is optional
	if agencies, err := parseFile(fsys, "agency.txt", parseAgenciesFromReader); err == nil {
		feed.Agencies = agencies
		log.Printf("Parsed %d agencies", len(agencies))
	} else {
		log.Printf("Warning: failed to parse agencies: %v", err)
	}

	stops, err := parseFile(fsys, "stops.txt", parseStopsFromReader)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stops (required): %w", err)
	}
	feed.Stops = stops
	log.Printf("Parsed %d stops", len(stops))

	routes, err := parseFile(fsys, "routes.txt", parseRoutesFromReader)
	if err != nil {
		return nil, fmt.Errorf("failed to parse routes (required): %w", err)
	}
	feed.Routes = routes
	log.Printf("Parsed %d routes", len(routes))

	trips, err := parseFile(fsys, "trips.txt", parseTripsFromReader)
	if err != nil {
		return nil, fmt.Errorf("failed to parse trips (required): %w", err)
	}
	feed.Trips = trips
	log.Printf("Parsed %d trips", len(trips))

	stopTimes, err := parseFile(fsys, "stop_times.txt", parseStopTimesFromReader)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stop_times (required): %w", err)
	}
	feed.StopTimes = stopTimes
	log.Printf("Parsed %d stop_times", len(stopTimes))

	return feed, nil
}

func parseFile[T any](fsys fs.FS, name string, parse func(io.Reader) ([]T, error)) ([]T, error) {
	file, err := fsys.Open(name)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return parse(file)
}

// feedRoot handles archives that wrap the feed in a single top-level folder
func feedRoot(fsys fs.FS) (fs.FS, error) {
	if _, err := fs.Stat(fsys, "stops.txt"); err == nil {
		return fsys, nil
	}
	matches, err := fs.Glob(fsys, "*/stops.txt")
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return fsys, nil
	}
	return fs.Sub(fsys, path.Dir(matches[0]))
}

func newCSVReader(reader io.Reader) (*csv.Reader, map[string]int, error) {
	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	header, err := csvReader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read header: %w", err)
	}
	return csvReader, makeColumnMap(header), nil
}

func parseAgenciesFromReader(reader io.Reader) ([]models.GTFSAgency, error) {
	csvReader, colMap, err := newCSVReader(reader)
	if err != nil {
		return nil, err
	}

	var agencies []models.GTFSAgency
	for {
		record, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Printf("Warning: skipping malformed agency row: %v", err)
			continue
		}

		agencies = append(agencies, models.GTFSAgency{
			AgencyID:   getField(record, colMap, "agency_id"),
			AgencyName: getField(record, colMap, "agency_name"),
			AgencyURL:  getField(record, colMap, "agency_url"),
			Timezone:   getField(record, colMap, "agency_timezone"),
		})
	}

	return agencies, nil
}

func parseStopsFromReader(reader io.Reader) ([]models.GTFSStop, error) {
	csvReader, colMap, err := newCSVReader(reader)
	if err != nil {
		return nil, err
	}

	var stops []models.GTFSStop
	for {
		record, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Printf("Warning: skipping malformed stop row: %v", err)
			continue
		}

		stopID := getField(record, colMap, "stop_id")
		if stopID == "" {
			continue
		}

		// Stations and entrances without coordinates still become nodes,
		// they just get no walking transfers.
		lat, err := parseCoordinate(getField(record, colMap, "stop_lat"))
		if err != nil {
			log.Printf("Warning: invalid latitude for stop %s: %v", stopID, err)
			continue
		}
		lon, err := parseCoordinate(getField(record, colMap, "stop_lon"))
		if err != nil {
			log.Printf("Warning: invalid longitude for stop %s: %v", stopID, err)
			continue
		}

		stops = append(stops, models.GTFSStop{
			StopID:   stopID,
			StopName: getField(record, colMap, "stop_name"),
			Lat:      lat,
			Lon:      lon,
		})
	}

	return stops, nil
}

func parseCoordinate(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

func parseRoutesFromReader(reader io.Reader) ([]models.GTFSRoute, error) {
	csvReader, colMap, err := newCSVReader(reader)
	if err != nil {
		return nil, err
	}

	var routes []models.GTFSRoute
	for {
		record, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Printf("Warning: skipping malformed route row: %v", err)
			continue
		}

		routeID := getField(record, colMap, "route_id")
		if routeID == "" {
			continue
		}

		routeType, err := strconv.Atoi(getField(record, colMap, "route_type"))
		if err != nil {
			routeType = RouteTypeBus
		}

		routes = append(routes, models.GTFSRoute{
			RouteID:   routeID,
			AgencyID:  getField(record, colMap, "agency_id"),
			ShortName: getField(record, colMap, "route_short_name"),
			LongName:  getField(record, colMap, "route_long_name"),
			RouteType: routeType,
		})
	}

	return routes, nil
}

func parseTripsFromReader(reader io.Reader) ([]models.GTFSTrip, error) {
	csvReader, colMap, err := newCSVReader(reader)
	if err != nil {
		return nil, err
	}

	var trips []models.GTFSTrip
	for {
		record, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Printf("Warning: skipping malformed trip row: %v", err)
			continue
		}

		tripID := getField(record, colMap, "trip_id")
		routeID := getField(record, colMap, "route_id")
		if tripID == "" || routeID == "" {
			continue
		}

		trips = append(trips, models.GTFSTrip{
			RouteID:   routeID,
			ServiceID: getField(record, colMap, "service_id"),
			TripID:    tripID,
			Headsign:  getField(record, colMap, "trip_headsign"),
		})
	}

	return trips, nil
}

func parseStopTimesFromReader(reader io.Reader) ([]models.GTFSStopTime, error) {
	csvReader, colMap, err := newCSVReader(reader)
	if err != nil {
		return nil, err
	}

	var stopTimes []models.GTFSStopTime
	for {
		record, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Printf("Warning: skipping malformed stop_time row: %v", err)
			continue
		}

		tripID := getField(record, colMap, "trip_id")
		stopID := getField(record, colMap, "stop_id")
		seqStr := getField(record, colMap, "stop_sequence")
		if tripID == "" || stopID == "" || seqStr == "" {
			continue
		}

		sequence, err := strconv.Atoi(seqStr)
		if err != nil {
			log.Printf("Warning: invalid sequence for trip %s: %v", tripID, err)
			continue
		}

		stopTimes = append(stopTimes, models.GTFSStopTime{
			TripID:        tripID,
			ArrivalTime:   getField(record, colMap, "arrival_time"),
			DepartureTime: getField(record, colMap, "departure_time"),
			StopID:        stopID,
			StopSequence:  sequence,
		})
	}

	return stopTimes, nil
}

func makeColumnMap(header []string) map[string]int {
	colMap := make(map[string]int)
	for i, col := range header {
		// Strip a UTF-8 BOM some exporters prepend to the first column
		colMap[strings.TrimPrefix(strings.TrimSpace(col), "\ufeff")] = i
	}
	return colMap
}

func getField(record []string, colMap map[string]int, fieldName string) string {
	if idx, ok := colMap[fieldName]; ok && idx < len(record) {
		return strings.TrimSpace(record[idx])
	}
	return ""
}
