package roadpostersqldb

import (
	"context"

	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/roadposter/roadposter"
	"github.com/jamesrr39/roadposter/roadposterdal"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/paulmach/osm"
)

const postgresqlSchema = `
CREATE TABLE IF NOT EXISTS ways (
	id BIGINT PRIMARY KEY,
	category TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS ways_category_idx ON ways (category);

CREATE TABLE IF NOT EXISTS way_points (
	way_id BIGINT NOT NULL REFERENCES ways(id) ON DELETE CASCADE,
	seq INTEGER NOT NULL,
	lat DOUBLE PRECISION NOT NULL,
	lon DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (way_id, seq)
);

CREATE INDEX IF NOT EXISTS way_points_lat_lon_idx ON way_points (lat, lon);
`

// getWaysQuery selects every point of the ways with at least one point inside the bounds.
// $1: categories, $2: min lat, $3: max lat, $4: min lon, $5: max lon
const getWaysQuery = `
SELECT w.id AS way_id, w.category, wp.seq, wp.lat, wp.lon
FROM ways w
INNER JOIN way_points wp
ON wp.way_id = w.id
WHERE w.category = ANY($1)
AND w.id IN (
	SELECT DISTINCT way_id
	FROM way_points
	WHERE lat BETWEEN $2 AND $3
	AND lon BETWEEN $4 AND $5
)
ORDER BY w.id, wp.seq`

var _ roadposterdal.DataSource = &RoadposterSQLDB{}

type RoadposterSQLDB struct {
	logger *logpkg.Logger
	name   string
	db     *sqlx.DB
}

func NewRoadposterSQLDB(logger *logpkg.Logger, db *sqlx.DB, name string) *RoadposterSQLDB {
	return &RoadposterSQLDB{
		logger: logger,
		name:   name,
		db:     db,
	}
}

// NewPostgresqlDBConn connects to a PostgreSQL database. connStr is the part after "postgresql://", e.g. "user:pass@localhost/roadposter"
func NewPostgresqlDBConn(logger *logpkg.Logger, connStr string) (*RoadposterSQLDB, errorsx.Error) {
	db, err := sqlx.Open("postgres", "postgresql://"+connStr)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	return NewRoadposterSQLDB(logger, db, "postgresql database"), nil
}

func (db *RoadposterSQLDB) Name() string {
	return db.name
}

func (db *RoadposterSQLDB) Close() errorsx.Error {
	err := db.db.Close()
	if err != nil {
		return errorsx.Wrap(err)
	}

	return nil
}

func (db *RoadposterSQLDB) EnsureSchema(ctx context.Context) errorsx.Error {
	_, err := db.db.ExecContext(ctx, postgresqlSchema)
	if err != nil {
		return errorsx.Wrap(err)
	}

	return nil
}

type wayPointRowType struct {
	WayID    int64   `db:"way_id"`
	Category string  `db:"category"`
	Seq      int     `db:"seq"`
	Lat      float64 `db:"lat"`
	Lon      float64 `db:"lon"`
}

func (db *RoadposterSQLDB) GetWays(ctx context.Context, bounds osm.Bounds, filter *roadposterdal.RoadFilter) (roadposter.WaySet, errorsx.Error) {
	var err error

	err = filter.Validate()
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	var rows []*wayPointRowType
	err = db.db.SelectContext(
		ctx,
		&rows,
		getWaysQuery,
		pq.Array(filter.Categories),
		bounds.MinLat,
		bounds.MaxLat,
		bounds.MinLon,
		bounds.MaxLon,
	)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	waySet := waySetFromRows(rows)
	if len(waySet) == 0 {
		return nil, errorsx.Wrap(roadposterdal.ErrNoDataAvailable, "dataSource", db.name)
	}

	return waySet, nil
}

// waySetFromRows groups the rows into ways. Rows must be ordered by way ID then sequence.
func waySetFromRows(rows []*wayPointRowType) roadposter.WaySet {
	var waySet roadposter.WaySet
	var currentWay *roadposter.Way

	for _, row := range rows {
		if currentWay == nil || currentWay.ID != row.WayID {
			currentWay = &roadposter.Way{
				ID:       row.WayID,
				Category: row.Category,
			}
			waySet = append(waySet, currentWay)
		}

		currentWay.Points = append(currentWay.Points, roadposter.Location{Lat: row.Lat, Lon: row.Lon})
	}

	var drawableWays roadposter.WaySet
	for _, way := range waySet {
		if len(way.Points) < 2 {
			continue
		}
		drawableWays = append(drawableWays, way)
	}

	return drawableWays
}

// ImportWaySet stores the ways in a single transaction. Ways that are already stored are replaced.
func (db *RoadposterSQLDB) ImportWaySet(ctx context.Context, waySet roadposter.WaySet) errorsx.Error {
	tx, err := db.db.BeginTxx(ctx, nil)
	if err != nil {
		return errorsx.Wrap(err)
	}
	defer tx.Rollback()

	for _, way := range waySet {
		_, err = tx.ExecContext(ctx, `DELETE FROM ways WHERE id = $1`, way.ID)
		if err != nil {
			return errorsx.Wrap(err, "wayID", way.ID)
		}

		_, err = tx.ExecContext(ctx, `INSERT INTO ways (id, category) VALUES ($1, $2)`, way.ID, way.Category)
		if err != nil {
			return errorsx.Wrap(err, "wayID", way.ID)
		}

		for seq, point := range way.Points {
			_, err = tx.ExecContext(
				ctx,
				`INSERT INTO way_points (way_id, seq, lat, lon) VALUES ($1, $2, $3, $4)`,
				way.ID, seq, point.Lat, point.Lon,
			)
			if err != nil {
				return errorsx.Wrap(err, "wayID", way.ID, "seq", seq)
			}
		}
	}

	err = tx.Commit()
	if err != nil {
		return errorsx.Wrap(err)
	}

	db.logger.Info("imported %d ways (%d points) into %q", len(waySet), waySet.PointCount(), db.name)

	return nil
}
