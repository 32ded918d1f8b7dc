// Package config assembles the satmap runtime configuration. Values are
// layered: built-in defaults, then an optional INI file, then SATMAP_*
// environment variables, then command-line flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/signalsfoundry/satmap/internal/observability"
	"github.com/signalsfoundry/satmap/model"
	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/ini.v1"
)

const (
	SourceSGP4 = "sgp4"
	SourceN2YO = "n2yo"

	DeferDrop        = "drop"
	DeferQueueLatest = "queue-latest"

	TraceStdout = "stdout"
	TraceOTLP   = "otlp"
)

// Config is the full runtime configuration.
type Config struct {
	HTTPAddr string
	GRPCAddr string

	GeometryURL    string
	GeometryObject string
	Width          int
	Height         int

	Source            string
	TLEURL            string
	N2YOBaseURL       string
	N2YOAPIKey        string
	RequestsPerSecond float64
	FetchConcurrency  int
	CacheSize         int
	CacheTTL          time.Duration

	Interval    time.Duration
	TimeScale   float64
	Step        int
	DeferPolicy string

	Observer model.ObserverConfig
	// Satellites, when set, are tracked as soon as the map is ready.
	Satellites []int

	TracingEnabled     bool
	TracingExporter    string
	TracingEndpoint    string // otlp collector host:port
	TracingServiceName string
	TracingSampleRatio float64
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTPAddr:          ":8080",
		GRPCAddr:          ":50051",
		GeometryURL:       "https://cdn.jsdelivr.net/npm/world-atlas@2/countries-110m.json",
		GeometryObject:    "countries",
		Width:             960,
		Height:            600,
		Source:            SourceSGP4,
		TLEURL:            "https://celestrak.org/NORAD/elements/gp.php?GROUP=stations&FORMAT=tle",
		N2YOBaseURL:       "https://api.n2yo.com/rest/v1/satellite",
		RequestsPerSecond: 2,
		FetchConcurrency:  4,
		CacheSize:         128,
		CacheTTL:          time.Minute,
		Interval:          time.Second,
		TimeScale:         60,
		Step:              60,
		DeferPolicy:       DeferDrop,
		Observer: model.ObserverConfig{
			Latitude:        0,
			Longitude:       0,
			Elevation:       0,
			DurationMinutes: 5,
		},
		TracingExporter:    TraceStdout,
		TracingServiceName: "satmap",
		TracingSampleRatio: 1,
	}
}

// Load builds a Config from args (without the program name) and the
// environment lookup getenv. The INI file is taken from -config or
// SATMAP_CONFIG.
func Load(args []string, getenv func(string) string) (Config, error) {
	cfg := Default()

	path := getenv("SATMAP_CONFIG")
	if p, ok := flagValue(args, "config"); ok {
		path = p
	}
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.ApplyEnv(getenv); err != nil {
		return Config{}, err
	}

	fs := flag.NewFlagSet("satmap", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.String("config", path, "path to an INI configuration file")
	cfg.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// LoadFile overlays the values present in an INI file.
func (c *Config) LoadFile(path string) error {
	f, err := ini.Load(path)
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}

	server := f.Section("server")
	c.HTTPAddr = server.Key("http_addr").MustString(c.HTTPAddr)
	c.GRPCAddr = server.Key("grpc_addr").MustString(c.GRPCAddr)

	m := f.Section("map")
	c.GeometryURL = m.Key("geometry_url").MustString(c.GeometryURL)
	c.GeometryObject = m.Key("object").MustString(c.GeometryObject)
	c.Width = m.Key("width").MustInt(c.Width)
	c.Height = m.Key("height").MustInt(c.Height)

	src := f.Section("source")
	c.Source = src.Key("kind").MustString(c.Source)
	c.TLEURL = src.Key("tle_url").MustString(c.TLEURL)
	c.FetchConcurrency = src.Key("concurrency").MustInt(c.FetchConcurrency)
	c.CacheSize = src.Key("cache_size").MustInt(c.CacheSize)
	c.CacheTTL = src.Key("cache_ttl").MustDuration(c.CacheTTL)

	n2yo := f.Section("n2yo")
	c.N2YOBaseURL = n2yo.Key("base_url").MustString(c.N2YOBaseURL)
	c.N2YOAPIKey = n2yo.Key("api_key").MustString(c.N2YOAPIKey)
	c.RequestsPerSecond = n2yo.Key("requests_per_second").MustFloat64(c.RequestsPerSecond)

	anim := f.Section("animation")
	c.Interval = anim.Key("interval").MustDuration(c.Interval)
	c.TimeScale = anim.Key("time_scale").MustFloat64(c.TimeScale)
	c.Step = anim.Key("step").MustInt(c.Step)
	c.DeferPolicy = anim.Key("defer_policy").MustString(c.DeferPolicy)

	obs := f.Section("observer")
	c.Observer.Latitude = obs.Key("latitude").MustFloat64(c.Observer.Latitude)
	c.Observer.Longitude = obs.Key("longitude").MustFloat64(c.Observer.Longitude)
	c.Observer.Elevation = obs.Key("elevation").MustFloat64(c.Observer.Elevation)
	c.Observer.DurationMinutes = obs.Key("duration").MustInt(c.Observer.DurationMinutes)
	if obs.HasKey("satellites") {
		ids, err := parseIDs(obs.Key("satellites").String())
		if err != nil {
			return fmt.Errorf("config %s: observer.satellites: %w", path, err)
		}
		c.Satellites = ids
	}

	tr := f.Section("tracing")
	c.TracingEnabled = tr.Key("enabled").MustBool(c.TracingEnabled)
	c.TracingExporter = strings.ToLower(tr.Key("exporter").MustString(c.TracingExporter))
	c.TracingEndpoint = tr.Key("endpoint").MustString(c.TracingEndpoint)
	c.TracingServiceName = tr.Key("service_name").MustString(c.TracingServiceName)
	c.TracingSampleRatio = tr.Key("sample_ratio").MustFloat64(c.TracingSampleRatio)
	return nil
}

// ApplyEnv overlays SATMAP_* variables that are set.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	var errs []error
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	num := func(key string, parse func(string) error) {
		if v := getenv(key); v != "" {
			if err := parse(v); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
			}
		}
	}

	str("SATMAP_HTTP_ADDR", &c.HTTPAddr)
	str("SATMAP_GRPC_ADDR", &c.GRPCAddr)
	str("SATMAP_GEOMETRY_URL", &c.GeometryURL)
	str("SATMAP_GEOMETRY_OBJECT", &c.GeometryObject)
	str("SATMAP_SOURCE", &c.Source)
	str("SATMAP_TLE_URL", &c.TLEURL)
	str("SATMAP_N2YO_BASE_URL", &c.N2YOBaseURL)
	str("SATMAP_N2YO_API_KEY", &c.N2YOAPIKey)
	str("SATMAP_DEFER_POLICY", &c.DeferPolicy)
	str("SATMAP_TRACING_SERVICE_NAME", &c.TracingServiceName)
	str("SATMAP_OTLP_ENDPOINT", &c.TracingEndpoint)
	if v := getenv("SATMAP_TRACING_EXPORTER"); v != "" {
		c.TracingExporter = strings.ToLower(v)
	}
	num("SATMAP_TRACING_ENABLED", boolInto(&c.TracingEnabled))
	num("SATMAP_TRACING_SAMPLE_RATIO", floatInto(&c.TracingSampleRatio))
	num("SATMAP_INTERVAL", durationInto(&c.Interval))
	num("SATMAP_REQUESTS_PER_SECOND", floatInto(&c.RequestsPerSecond))
	num("SATMAP_OBSERVER_LAT", floatInto(&c.Observer.Latitude))
	num("SATMAP_OBSERVER_LON", floatInto(&c.Observer.Longitude))
	num("SATMAP_OBSERVER_ELEVATION", floatInto(&c.Observer.Elevation))
	num("SATMAP_DURATION_MINUTES", intInto(&c.Observer.DurationMinutes))
	num("SATMAP_SATELLITES", func(v string) error {
		ids, err := parseIDs(v)
		if err == nil {
			c.Satellites = ids
		}
		return err
	})
	return errors.Join(errs...)
}

// RegisterFlags binds every option to fs, using the current values as
// defaults.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.HTTPAddr, "http-addr", c.HTTPAddr, "HTTP address for the map, API and /metrics")
	fs.StringVar(&c.GRPCAddr, "grpc-addr", c.GRPCAddr, "TCP address for the gRPC health service (empty disables)")
	fs.StringVar(&c.GeometryURL, "geometry", c.GeometryURL, "TopoJSON/GeoJSON world map URL or file")
	fs.StringVar(&c.GeometryObject, "geometry-object", c.GeometryObject, "TopoJSON object to draw")
	fs.IntVar(&c.Width, "width", c.Width, "map width in pixels")
	fs.IntVar(&c.Height, "height", c.Height, "map height in pixels")
	fs.StringVar(&c.Source, "source", c.Source, "position source: sgp4 or n2yo")
	fs.StringVar(&c.TLEURL, "tle", c.TLEURL, "TLE catalog URL or file")
	fs.StringVar(&c.N2YOBaseURL, "n2yo-url", c.N2YOBaseURL, "N2YO REST base URL")
	fs.StringVar(&c.N2YOAPIKey, "n2yo-key", c.N2YOAPIKey, "N2YO API key")
	fs.Float64Var(&c.RequestsPerSecond, "rps", c.RequestsPerSecond, "position API requests per second (0 = unlimited)")
	fs.IntVar(&c.FetchConcurrency, "concurrency", c.FetchConcurrency, "concurrent position requests")
	fs.IntVar(&c.CacheSize, "cache-size", c.CacheSize, "position series cache entries (0 disables)")
	fs.DurationVar(&c.CacheTTL, "cache-ttl", c.CacheTTL, "position series cache lifetime")
	fs.DurationVar(&c.Interval, "interval", c.Interval, "animation tick interval")
	fs.Float64Var(&c.TimeScale, "time-scale", c.TimeScale, "simulated seconds per wall-clock second")
	fs.IntVar(&c.Step, "step", c.Step, "samples advanced per tick")
	fs.StringVar(&c.DeferPolicy, "defer", c.DeferPolicy, "run conflict policy: drop or queue-latest")
	fs.Float64Var(&c.Observer.Latitude, "lat", c.Observer.Latitude, "observer latitude (degrees)")
	fs.Float64Var(&c.Observer.Longitude, "lon", c.Observer.Longitude, "observer longitude (degrees)")
	fs.Float64Var(&c.Observer.Elevation, "elevation", c.Observer.Elevation, "observer elevation (metres)")
	fs.IntVar(&c.Observer.DurationMinutes, "duration", c.Observer.DurationMinutes, "observation window (minutes)")
	fs.Var((*idList)(&c.Satellites), "satellites", "comma-separated NORAD ids to track at startup")
	fs.BoolVar(&c.TracingEnabled, "tracing", c.TracingEnabled, "export OpenTelemetry traces")
	fs.StringVar(&c.TracingExporter, "tracing-exporter", c.TracingExporter, "trace exporter: stdout or otlp")
	fs.StringVar(&c.TracingEndpoint, "otlp-endpoint", c.TracingEndpoint, "OTLP gRPC collector address")
	fs.Float64Var(&c.TracingSampleRatio, "trace-ratio", c.TracingSampleRatio, "fraction of root traces sampled")
}

// Tracing returns the tracer settings for this run. Spans carry the
// position source and map size as resource attributes.
func (c Config) Tracing() observability.TracingConfig {
	return observability.TracingConfig{
		Enabled:     c.TracingEnabled,
		ServiceName: c.TracingServiceName,
		Exporter:    c.TracingExporter,
		Endpoint:    c.TracingEndpoint,
		SampleRatio: c.TracingSampleRatio,
		Attributes: []attribute.KeyValue{
			attribute.String("satmap.source", c.Source),
			attribute.Int("satmap.map.width", c.Width),
			attribute.Int("satmap.map.height", c.Height),
		},
	}
}

// Validate checks the assembled configuration.
func (c Config) Validate() error {
	var errs []error
	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("http address is required"))
	}
	if c.GeometryURL == "" {
		errs = append(errs, errors.New("geometry source is required"))
	}
	if c.Width <= 0 || c.Height <= 0 {
		errs = append(errs, fmt.Errorf("map size %dx%d must be positive", c.Width, c.Height))
	}
	switch c.Source {
	case SourceSGP4:
		if c.TLEURL == "" {
			errs = append(errs, errors.New("sgp4 source needs a TLE catalog"))
		}
	case SourceN2YO:
		if c.N2YOAPIKey == "" {
			errs = append(errs, errors.New("n2yo source needs an API key"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown position source %q", c.Source))
	}
	switch c.DeferPolicy {
	case DeferDrop, DeferQueueLatest:
	default:
		errs = append(errs, fmt.Errorf("unknown defer policy %q", c.DeferPolicy))
	}
	if c.Interval <= 0 {
		errs = append(errs, fmt.Errorf("interval %v must be positive", c.Interval))
	}
	if c.TimeScale <= 0 {
		errs = append(errs, fmt.Errorf("time scale %v must be positive", c.TimeScale))
	}
	if c.Step <= 0 {
		errs = append(errs, fmt.Errorf("step %d must be positive", c.Step))
	}
	if c.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("requests per second %v must not be negative", c.RequestsPerSecond))
	}
	if err := c.Observer.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.TracingEnabled {
		switch c.TracingExporter {
		case TraceStdout, TraceOTLP:
		default:
			errs = append(errs, fmt.Errorf("unknown tracing exporter %q", c.TracingExporter))
		}
		if c.TracingServiceName == "" {
			errs = append(errs, errors.New("tracing service name is required"))
		}
	}
	if c.TracingSampleRatio < 0 || c.TracingSampleRatio > 1 {
		errs = append(errs, fmt.Errorf("trace sample ratio %v must be within [0, 1]", c.TracingSampleRatio))
	}
	return errors.Join(errs...)
}

// flagValue finds -name or --name in args without parsing the rest.
func flagValue(args []string, name string) (string, bool) {
	for i, a := range args {
		if a == "--" {
			break
		}
		trimmed := strings.TrimLeft(a, "-")
		if trimmed == a || len(a)-len(trimmed) > 2 {
			continue
		}
		if v, ok := strings.CutPrefix(trimmed, name+"="); ok {
			return v, true
		}
		if trimmed == name && i+1 < len(args) {
			return args[i+1], true
		}
	}
	return "", false
}

func parseIDs(s string) ([]int, error) {
	var ids []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid satellite id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

type idList []int

func (l *idList) String() string {
	if l == nil {
		return ""
	}
	parts := make([]string, len(*l))
	for i, id := range *l {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}

func (l *idList) Set(s string) error {
	ids, err := parseIDs(s)
	if err != nil {
		return err
	}
	*l = ids
	return nil
}

func durationInto(dst *time.Duration) func(string) error {
	return func(v string) error {
		d, err := time.ParseDuration(v)
		if err == nil {
			*dst = d
		}
		return err
	}
}

func floatInto(dst *float64) func(string) error {
	return func(v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			*dst = f
		}
		return err
	}
}

func boolInto(dst *bool) func(string) error {
	return func(v string) error {
		b, err := strconv.ParseBool(v)
		if err == nil {
			*dst = b
		}
		return err
	}
}

func intInto(dst *int) func(string) error {
	return func(v string) error {
		n, err := strconv.Atoi(v)
		if err == nil {
			*dst = n
		}
		return err
	}
}
