package boundary

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/wkb"

	"github.com/sells-group/costmap/internal/db"
	"github.com/sells-group/costmap/internal/geoid"
)

// PostGISSource reads county boundaries from a PostGIS table with geoid,
// name, state_fips and geom columns (the geo.counties layout).
type PostGISSource struct {
	pool  db.Pool
	table string
}

// NewPostGISSource creates a PostGISSource over the given table.
func NewPostGISSource(pool db.Pool, table string) (*PostGISSource, error) {
	if !db.ValidIdentifier(table) {
		return nil, eris.Errorf("boundary: invalid table name %q", table)
	}
	return &PostGISSource{pool: pool, table: table}, nil
}

// Load returns the state's county polygons ordered by geoid.
func (s *PostGISSource) Load(ctx context.Context) ([]*Feature, error) {
	sql := fmt.Sprintf(
		`SELECT geoid, name, ST_AsBinary(ST_Multi(geom)) FROM %s WHERE state_fips = $1 ORDER BY geoid`,
		s.table,
	)
	rows, err := s.pool.Query(ctx, sql, geoid.StateFIPS)
	if err != nil {
		return nil, eris.Wrap(err, "boundary: query postgis")
	}
	defer rows.Close()

	var features []*Feature
	for rows.Next() {
		var (
			id, name string
			data     []byte
		)
		if err := rows.Scan(&id, &name, &data); err != nil {
			return nil, eris.Wrap(err, "boundary: scan postgis row")
		}
		g, err := wkb.Unmarshal(data)
		if err != nil {
			return nil, eris.Wrapf(err, "boundary: decode geometry of %s", id)
		}
		mp := toMultiPolygon(g)
		if mp == nil {
			continue
		}
		features = append(features, &Feature{
			ID:         id,
			Geometry:   mp,
			Properties: map[string]any{"GEOID": id, "NAME": name},
		})
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "boundary: iterate postgis rows")
	}
	return reindex(features), nil
}
