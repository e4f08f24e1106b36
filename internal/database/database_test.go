package database

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/deppfellow/itembatch/internal/config"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{
		Host:     "db.local",
		Port:     5432,
		User:     "items",
		Password: "p@ss:word/1",
		Name:     "items",
		SSLMode:  "disable",
	})

	pc, err := pgx.ParseConfig(dsn)
	require.NoError(t, err)
	assert.Equal(t, "db.local", pc.Host)
	assert.Equal(t, uint16(5432), pc.Port)
	assert.Equal(t, "items", pc.User)
	assert.Equal(t, "p@ss:word/1", pc.Password)
	assert.Equal(t, "items", pc.Database)
}

func TestApplyPoolSettings(t *testing.T) {
	pc, err := pgxpool.ParseConfig("postgres://u:p@localhost:5432/db")
	require.NoError(t, err)

	applyPoolSettings(pc, config.DatabaseConfig{
		MaxOpenConns:    12,
		MaxIdleConns:    20,
		ConnMaxLifetime: 300,
		ConnMaxIdleTime: 60,
	})

	assert.Equal(t, int32(12), pc.MaxConns)
	assert.Equal(t, int32(12), pc.MinConns, "idle floor is capped by the max")
	assert.Equal(t, 5*time.Minute, pc.MaxConnLifetime)
	assert.Equal(t, time.Minute, pc.MaxConnIdleTime)
}

type recordingTracer struct {
	starts, ends int
}

func (r *recordingTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, _ pgx.TraceQueryStartData) context.Context {
	r.starts++
	return ctx
}

func (r *recordingTracer) TraceQueryEnd(context.Context, *pgx.Conn, pgx.TraceQueryEndData) {
	r.ends++
}

func TestMultiTracer(t *testing.T) {
	a, b := &recordingTracer{}, &recordingTracer{}
	mt := &multiTracer{tracers: []pgx.QueryTracer{a, b}}

	ctx := mt.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "SELECT 1"})
	mt.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{})

	assert.Equal(t, 1, a.starts)
	assert.Equal(t, 1, b.ends)
}

func TestSlowQueryTracer(t *testing.T) {
	var buf bytes.Buffer
	tracer := newSlowQueryTracer(zerolog.New(&buf), 100*time.Millisecond)

	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tracer.now = func() time.Time { return clock }

	t.Run("FastQueryIsSilent", func(t *testing.T) {
		buf.Reset()
		ctx := tracer.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "SELECT 1"})
		clock = clock.Add(10 * time.Millisecond)
		tracer.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{})
		assert.Empty(t, buf.String())
	})

	t.Run("SlowQueryIsLogged", func(t *testing.T) {
		buf.Reset()
		ctx := tracer.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{SQL: "SELECT pg_sleep(1)"})
		clock = clock.Add(time.Second)
		tracer.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{Err: errors.New("canceled")})

		out := buf.String()
		assert.Contains(t, out, "slow query")
		assert.Contains(t, out, "pg_sleep")
		assert.Contains(t, out, "canceled")
	})
}
