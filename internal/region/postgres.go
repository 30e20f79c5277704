package region

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/costmap/internal/db"
)

// PostgresSource reads region records from a table with columns
// id, name, fips and a jsonb metrics document.
type PostgresSource struct {
	pool  db.Pool
	table string
}

// NewPostgresSource creates a PostgresSource over the given table.
func NewPostgresSource(pool db.Pool, table string) (*PostgresSource, error) {
	if !db.ValidIdentifier(table) {
		return nil, eris.Errorf("region: invalid table name %q", table)
	}
	return &PostgresSource{pool: pool, table: table}, nil
}

// Load reads every record ordered by id.
func (s *PostgresSource) Load(ctx context.Context) (*Dataset, error) {
	sql := fmt.Sprintf(`SELECT id, name, fips, metrics FROM %s ORDER BY id`, s.table)

	rows, err := s.pool.Query(ctx, sql)
	if err != nil {
		return nil, eris.Wrap(err, "region: query records")
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			rec     Record
			metrics []byte
		)
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.RawID, &metrics); err != nil {
			return nil, eris.Wrap(err, "region: scan record")
		}
		rec.Metrics = make(map[string]any)
		if len(metrics) > 0 {
			if err := json.Unmarshal(metrics, &rec.Metrics); err != nil {
				return nil, eris.Wrapf(err, "region: decode metrics of %s", rec.ID)
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "region: iterate records")
	}
	return NewDataset(records), nil
}
