package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/rca-cli/internal/model"
)

func TestDistance(t *testing.T) {
	nyc := model.EntityInfo{ID: 1, Latitude: model.Float(40.7128), Longitude: model.Float(-74.0060)}
	la := model.EntityInfo{ID: 2, Latitude: model.Float(34.0522), Longitude: model.Float(-118.2437)}

	d, ok := Distance(nyc, la)
	require.True(t, ok)
	assert.InDelta(t, 2445, d, 10)

	_, ok = Distance(nyc, model.EntityInfo{})
	assert.False(t, ok)
}

func TestFillDistances(t *testing.T) {
	subject := model.EntityInfo{ID: 1, Latitude: model.Float(40.0), Longitude: model.Float(-75.0)}
	infos := []model.EntityInfo{
		subject,
		{ID: 2, Latitude: model.Float(40.0), Longitude: model.Float(-75.0)},
		{ID: 3, Distance: model.Float(4.2)},
		{ID: 4},
	}
	FillDistances(subject, infos)

	assert.Equal(t, 0.0, *infos[0].Distance)
	assert.InDelta(t, 0.0, *infos[1].Distance, 1e-9)
	assert.Equal(t, 4.2, *infos[2].Distance)
	assert.Nil(t, infos[3].Distance)
}
