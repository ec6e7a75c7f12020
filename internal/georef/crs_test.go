package georef

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"
)

func TestCRSTransform_Nil(t *testing.T) {
	var c *CRSTransform
	p := orb.Polygon{square(0, 0, 1)}

	out, err := c.Polygon(p)
	require.NoError(t, err)
	require.Equal(t, p, out)

	polys, err := c.Polygons([]orb.Polygon{p})
	require.NoError(t, err)
	require.Len(t, polys, 1)
}

func TestCRSTransform_UTM(t *testing.T) {
	c, err := NewCRSTransform(
		"+proj=longlat +datum=WGS84 +no_defs",
		"+proj=utm +zone=33 +datum=WGS84 +units=m +no_defs",
	)
	require.NoError(t, err)

	p, err := c.Point(orb.Point{15, 0})
	require.NoError(t, err)
	require.InDelta(t, 500000.0, p.X(), 1)
	require.InDelta(t, 0.0, p.Y(), 1)
}

func TestCRSTransform_BadDefinition(t *testing.T) {
	_, err := NewCRSTransform("+proj=nosuchprojection +datum=WGS84", "+proj=longlat +datum=WGS84")
	require.Error(t, err)
}

func TestCRSTransform_UnknownTargetProjection(t *testing.T) {
	_, err := NewCRSTransform("+proj=longlat +datum=WGS84", "+proj=nosuchprojection +datum=WGS84")
	require.Error(t, err)
}

func TestCRSTransform_PRJ(t *testing.T) {
	var c *CRSTransform
	require.Empty(t, c.PRJ())

	dst := "+proj=utm +zone=33 +datum=WGS84 +units=m +no_defs"
	c, err := NewCRSTransform("+proj=longlat +datum=WGS84 +no_defs", dst)
	require.NoError(t, err)
	require.Equal(t, dst, c.PRJ())
}
