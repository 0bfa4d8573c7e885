// feedprobe polls one airplanes.live feed a few times, fuses the reports
// and prints what the engine would show. Use it to check a feed
// configuration before starting the service.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/unklstewy/radarfusion/pkg/adsb"
	"github.com/unklstewy/radarfusion/pkg/config"
	"github.com/unklstewy/radarfusion/pkg/coordinates"
	"github.com/unklstewy/radarfusion/pkg/logger"
	"github.com/unklstewy/radarfusion/pkg/tracking"
)

func main() {
	configPath := flag.String("config", "configs/radarfusion.toml", "Path to configuration file")
	feedIndex := flag.Int("feed", 0, "Index of the [[feeds]] entry to probe")
	polls := flag.Int("polls", 3, "Number of polls")
	limit := flag.Int("limit", 15, "Aircraft to print")
	flag.Parse()

	log, err := logger.New(logger.Config{Level: "info", Format: "console"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal("Failed to load configuration", logger.Error(err))
	}
	if *feedIndex < 0 || *feedIndex >= len(cfg.Feeds) {
		log.Fatal("No such feed", logger.Int("feed", *feedIndex), logger.Int("configured", len(cfg.Feeds)))
	}
	feed := cfg.Feeds[*feedIndex]
	src, err := adsb.ParseSource(feed.Source)
	if err != nil {
		log.Fatal("Invalid feed source", logger.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := adsb.NewAirplanesLiveClient(adsb.AirplanesLiveOptions{
		BaseURL:           feed.BaseURL,
		CenterLat:         feed.CenterLat,
		CenterLon:         feed.CenterLon,
		RadiusNM:          feed.RadiusNM,
		RequestsPerSecond: feed.RequestsPerSecond,
		Source:            src,
		Timeout:           time.Duration(feed.TimeoutSeconds) * time.Second,
	})
	defer client.Close()

	tc := cfg.TrackingConfig()
	collection := tracking.NewCollection(tc, tracking.SystemClock{}, log)
	predictor := tracking.NewPredictor(tc)

	log.Info("Probing feed",
		logger.String("feed", feed.Name),
		logger.String("url", feed.BaseURL),
		logger.Float64("center_lat", feed.CenterLat),
		logger.Float64("center_lon", feed.CenterLon),
		logger.Float64("radius_nm", feed.RadiusNM))

	for i := 0; i < *polls; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(feed.PollInterval()):
			}
		}
		reports, err := adsb.RetryWithBackoffResult(ctx, adsb.DefaultRetryConfig(), func() ([]adsb.Report, error) {
			return client.FetchReports(ctx)
		})
		if err != nil {
			log.Fatal("Fetch failed", logger.Error(err))
		}
		accepted := 0
		for _, r := range reports {
			if collection.UpsertReport(r) == nil {
				accepted++
			}
		}
		log.Info("Poll complete",
			logger.Int("poll", i+1),
			logger.Int("reports", len(reports)),
			logger.Int("accepted", accepted),
			logger.Int("tracked", collection.Len()))
	}

	center := coordinates.Geographic{Latitude: feed.CenterLat, Longitude: feed.CenterLon}
	rows := predictAll(collection, predictor, cfg.TrackingAirport(), center, time.Now())
	printRows(os.Stdout, rows, *limit)
}

type row struct {
	aircraft tracking.Aircraft
	rangeNM  float64
	bearing  float64
}

// predictAll predicts every tracked aircraft at now and sorts the shown
// ones by range from center.
func predictAll(c *tracking.Collection, p *tracking.Predictor, airport *tracking.Airport, center coordinates.Geographic, now time.Time) []row {
	var rows []row
	c.Sweep(func(d *tracking.AircraftRawData) bool {
		if d.IsEmpty() {
			return true
		}
		res, a := p.Predict(now, nil, d, airport)
		if res != tracking.ResultShow {
			return false
		}
		pos := a.State.Fix.Position
		rows = append(rows, row{
			aircraft: *a,
			rangeNM:  coordinates.DistanceNauticalMiles(center, pos),
			bearing:  coordinates.Bearing(center, pos),
		})
		return false
	})
	sort.Slice(rows, func(i, j int) bool { return rows[i].rangeNM < rows[j].rangeNM })
	return rows
}

func printRows(out io.Writer, rows []row, limit int) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LABEL\tADDRESS\tRANGE\tDIR\tALT m\tGS m/s\tVS m/s\tTRK\tMANEUVER\tFIX AGE")
	for i, r := range rows {
		if i >= limit {
			break
		}
		a := r.aircraft
		st := a.State
		fmt.Fprintf(w, "%s\t%s\t%.1f nm\t%s\t%.0f\t%.1f\t%+.1f\t%03d\t%s\t%.0fs\n",
			a.Identifier.Label(),
			a.Identifier.Address,
			r.rangeNM,
			azimuthToCardinal(r.bearing),
			st.Fix.Position.Altitude,
			st.GroundSpeed,
			st.VerticalSpeed,
			st.Track,
			st.Maneuver,
			st.Fix.Time.Sub(st.RealFix.Time).Seconds())
	}
	w.Flush()
	if len(rows) > limit {
		fmt.Fprintf(out, "... and %d more aircraft\n", len(rows)-limit)
	}
}

// azimuthToCardinal converts azimuth in degrees to a 16-point compass name.
func azimuthToCardinal(azimuth float64) string {
	directions := []string{"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE",
		"S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW"}
	index := int((azimuth + 11.25) / 22.5)
	return directions[index%16]
}
