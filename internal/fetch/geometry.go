package fetch

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/paulmach/orb/geojson"
	"github.com/signalsfoundry/satmap/internal/logging"
	"github.com/signalsfoundry/satmap/kb"
	"github.com/signalsfoundry/satmap/topo"
)

// isRemote reports whether src should be fetched over HTTP rather than read
// from disk.
func isRemote(src string) bool {
	return strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://")
}

func (c *Client) read(ctx context.Context, source, src string) ([]byte, error) {
	if isRemote(src) {
		return c.Get(ctx, source, src)
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", source, err)
	}
	return data, nil
}

// LoadGeometry reads a TopoJSON or GeoJSON world map from a URL or file and
// converts the named object (see topo.Decode) into features.
func (c *Client) LoadGeometry(ctx context.Context, src, object string) (*geojson.FeatureCollection, error) {
	data, err := c.read(ctx, "geometry", src)
	if err != nil {
		return nil, err
	}
	fc, err := topo.Decode(data, object)
	if err != nil {
		return nil, err
	}
	c.log.Info(ctx, "world geometry loaded",
		logging.String("source", redact(src)),
		logging.Int("features", len(fc.Features)),
	)
	return fc, nil
}

// LoadCatalog reads TLE text from a URL or file into cat.
func (c *Client) LoadCatalog(ctx context.Context, src string, cat *kb.Catalog) (int, error) {
	data, err := c.read(ctx, "tle", src)
	if err != nil {
		return 0, err
	}
	n, err := cat.Load(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("load catalog: %w", err)
	}
	c.log.Info(ctx, "satellite catalog loaded",
		logging.String("source", redact(src)),
		logging.Int("satellites", n),
	)
	return n, nil
}
