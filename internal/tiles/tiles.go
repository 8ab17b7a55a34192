// Package tiles encodes available properties as Mapbox vector tiles so large
// inventories can be drawn by a GL map client without shipping every record.
//
// Tiles are built on request from the current property list; there is no tile
// cache or archive because listings change while the site is live.
package tiles

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"

	"github.com/joeblew999/propmap/internal/render"
	"github.com/joeblew999/propmap/internal/service"
)

// LayerName is the vector layer holding property points.
const LayerName = "properties"

// MaxZoom is the deepest zoom tiles are served for.
const MaxZoom = 22

// ContentType is the media type of an encoded tile.
const ContentType = "application/vnd.mapbox-vector-tile"

// edgeBuffer widens a tile by this fraction of its width so markers sitting on
// a tile edge are drawn whole on both sides.
const edgeBuffer = 1.0 / 64

// Encoder turns property lists into vector tiles.
type Encoder struct {
	palette render.Palette
	layer   string
}

// NewEncoder creates an encoder colouring features with palette.
func NewEncoder(palette render.Palette) *Encoder {
	return &Encoder{palette: palette, layer: LayerName}
}

// Tile validates z/x/y and returns the tile.
func Tile(z, x, y int) (maptile.Tile, error) {
	if z < 0 || z > MaxZoom {
		return maptile.Tile{}, fmt.Errorf("zoom %d out of range 0..%d", z, MaxZoom)
	}
	n := 1 << uint(z)
	if x < 0 || x >= n || y < 0 || y >= n {
		return maptile.Tile{}, fmt.Errorf("tile %d/%d/%d does not exist", z, x, y)
	}
	return maptile.New(uint32(x), uint32(y), maptile.Zoom(z)), nil
}

// Features returns the properties that fall in tile as GeoJSON points.
func (e *Encoder) Features(tile maptile.Tile, props []service.MapPropertyData) *geojson.FeatureCollection {
	bound := tile.Bound()
	bound = bound.Pad((bound.Max[0] - bound.Min[0]) * edgeBuffer)

	fc := geojson.NewFeatureCollection()
	for _, p := range props {
		pt := orb.Point{p.Longitude, p.Latitude}
		if !bound.Contains(pt) {
			continue
		}
		f := geojson.NewFeature(pt)
		f.ID = p.ID
		f.Properties["title"] = p.Title
		f.Properties["price"] = p.Price
		f.Properties["currency"] = p.Currency
		f.Properties["property_type"] = p.PropertyType
		f.Properties["operation_type"] = p.OperationType
		f.Properties["color"] = e.palette.Color(p.PropertyType)
		fc.Append(f)
	}
	return fc
}

// Encode builds the tile. A tile with no properties encodes to nil, which is
// a valid empty vector tile.
func (e *Encoder) Encode(tile maptile.Tile, props []service.MapPropertyData) ([]byte, error) {
	fc := e.Features(tile, props)
	if len(fc.Features) == 0 {
		return nil, nil
	}

	layer := mvt.NewLayer(e.layer, fc)
	// Project mutates geometry in place; the points above are fresh copies.
	layer.ProjectToTile(tile)

	data, err := mvt.Marshal(mvt.Layers{layer})
	if err != nil {
		return nil, fmt.Errorf("encode tile %d/%d/%d: %w", tile.Z, tile.X, tile.Y, err)
	}
	return data, nil
}
