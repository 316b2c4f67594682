package boundary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"go.uber.org/zap"

	"github.com/sells-group/tqgap/internal/db"
)

var tableIdent = regexp.MustCompile(`^[a-z_][a-z0-9_]*(\.[a-z_][a-z0-9_]*)?$`)

// PostgresProvider serves boundaries stored as PostGIS multipolygons, one row per polygon.
type PostgresProvider struct {
	pool  db.Pool
	table string
}

// NewPostgresProvider creates a provider over table, which may be schema-qualified.
func NewPostgresProvider(pool db.Pool, table string) (*PostgresProvider, error) {
	if !tableIdent.MatchString(table) {
		return nil, eris.Errorf("boundary: invalid table name %q", table)
	}
	return &PostgresProvider{pool: pool, table: table}, nil
}

// Migrate creates the boundary table and its indexes if they do not exist.
func (p *PostgresProvider) Migrate(ctx context.Context) error {
	if schema, _, ok := strings.Cut(p.table, "."); ok {
		if _, err := p.pool.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+schema); err != nil {
			return eris.Wrap(err, "boundary: create schema")
		}
	}

	idx := strings.ReplaceAll(p.table, ".", "_")
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			year INTEGER NOT NULL,
			metric TEXT NOT NULL,
			bin TEXT NOT NULL,
			state TEXT NOT NULL,
			geom geometry(MultiPolygon, 4326) NOT NULL
		)`, p.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_key ON %s (year, metric, bin, state)`, idx, p.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_geom ON %s USING gist (geom)`, idx, p.table),
	}
	for _, stmt := range stmts {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return eris.Wrap(err, "boundary: migrate")
		}
	}
	return nil
}

// Fetch implements Provider. The rows are assembled into one FeatureCollection.
func (p *PostgresProvider) Fetch(ctx context.Context, key Key) (*Geometry, error) {
	rows, err := p.pool.Query(ctx,
		fmt.Sprintf(`SELECT ST_AsGeoJSON(geom) FROM %s
			WHERE year = $1 AND metric = $2 AND bin = $3 AND state = $4
			ORDER BY id`, p.table),
		key.Year, key.Metric, key.Bin, key.State)
	if err != nil {
		return nil, eris.Wrapf(err, "boundary: query %s", key)
	}
	defer rows.Close()

	var buf bytes.Buffer
	buf.WriteString(`{"type":"FeatureCollection","features":[`)
	var n int
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, eris.Wrapf(err, "boundary: scan %s", key)
		}
		if n > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(`{"type":"Feature","properties":{},"geometry":`)
		buf.WriteString(raw)
		buf.WriteByte('}')
		n++
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "boundary: rows %s", key)
	}
	buf.WriteString(`]}`)

	if n == 0 {
		return nil, eris.Wrapf(ErrNotFound, "boundary: %s", key)
	}

	g, err := ParseGeometry(buf.Bytes())
	if err != nil {
		return nil, eris.Wrapf(err, "boundary: %s", key)
	}
	g.Payload = json.RawMessage(buf.Bytes())
	return g, nil
}

// WriteBoundary implements Writer. Existing rows for the key are replaced in one transaction.
func (p *PostgresProvider) WriteBoundary(ctx context.Context, key Key, polys []*geom.MultiPolygon) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "boundary: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE year = $1 AND metric = $2 AND bin = $3 AND state = $4`, p.table),
		key.Year, key.Metric, key.Bin, key.State); err != nil {
		return eris.Wrapf(err, "boundary: delete %s", key)
	}

	insert := fmt.Sprintf(`INSERT INTO %s (year, metric, bin, state, geom)
		VALUES ($1, $2, $3, $4, ST_GeomFromEWKB($5))`, p.table)
	for i, mp := range polys {
		data, err := ewkb.Marshal(mp.SetSRID(4326), ewkb.NDR)
		if err != nil {
			return eris.Wrapf(err, "boundary: encode polygon %d of %s", i, key)
		}
		if _, err := tx.Exec(ctx, insert, key.Year, key.Metric, key.Bin, key.State, data); err != nil {
			return eris.Wrapf(err, "boundary: insert %s", key)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "boundary: commit")
	}

	zap.L().Debug("boundary: stored in postgres",
		zap.String("key", key.String()),
		zap.Int("polygons", len(polys)),
	)
	return nil
}

// Keys lists the distinct keys stored for a year.
func (p *PostgresProvider) Keys(ctx context.Context, year int) ([]Key, error) {
	rows, err := p.pool.Query(ctx,
		fmt.Sprintf(`SELECT DISTINCT year, metric, bin, state FROM %s WHERE year = $1 ORDER BY metric, bin, state`, p.table),
		year)
	if err != nil {
		return nil, eris.Wrap(err, "boundary: list keys")
	}

	defer rows.Close()

	var keys []Key
	for rows.Next() {
		var k Key
		if err := rows.Scan(&k.Year, &k.Metric, &k.Bin, &k.State); err != nil {
			return nil, eris.Wrap(err, "boundary: scan key")
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "boundary: list keys")
	}
	return keys, nil
}
