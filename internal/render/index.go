package render

import (
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"

	"github.com/joeblew999/propmap/internal/service"
)

const (
	dimensions  = 2
	minChildren = 25
	maxChildren = 50
	tolerance   = 1e-9
)

type indexed struct {
	pos  int
	prop service.MapPropertyData
	rect *rtreego.Rect
}

func (i *indexed) Bounds() *rtreego.Rect { return i.rect }

// Index is an R-tree over property positions. Axes are (lng, lat) to match orb.
type Index struct {
	tree  *rtreego.Rtree
	props []service.MapPropertyData
}

// NewIndex indexes props.
func NewIndex(props []service.MapPropertyData) *Index {
	tree := rtreego.NewTree(dimensions, minChildren, maxChildren)
	for i, p := range props {
		tree.Insert(&indexed{
			pos:  i,
			prop: p,
			rect: rtreego.Point{p.Longitude, p.Latitude}.ToRect(tolerance),
		})
	}
	return &Index{tree: tree, props: props}
}

// Len is the number of indexed properties.
func (x *Index) Len() int { return len(x.props) }

// Within returns the properties inside b, edges inclusive, in their original
// order.
func (x *Index) Within(b orb.Bound) []service.MapPropertyData {
	width := math.Max(b.Max.X()-b.Min.X(), tolerance)
	height := math.Max(b.Max.Y()-b.Min.Y(), tolerance)
	rect, err := rtreego.NewRect(rtreego.Point{b.Min.X(), b.Min.Y()}, []float64{width, height})
	if err != nil {
		return x.scan(b)
	}

	hits := x.tree.SearchIntersect(rect)
	matched := make([]*indexed, 0, len(hits))
	for _, h := range hits {
		item, ok := h.(*indexed)
		if !ok || !b.Contains(orb.Point{item.prop.Longitude, item.prop.Latitude}) {
			continue
		}
		matched = append(matched, item)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].pos < matched[j].pos })

	out := make([]service.MapPropertyData, len(matched))
	for i, m := range matched {
		out[i] = m.prop
	}
	return out
}

func (x *Index) scan(b orb.Bound) []service.MapPropertyData {
	out := []service.MapPropertyData{}
	for _, p := range x.props {
		if b.Contains(orb.Point{p.Longitude, p.Latitude}) {
			out = append(out, p)
		}
	}
	return out
}
