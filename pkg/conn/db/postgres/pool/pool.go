package pool

import (
	"context"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// Begin is something which can start a transaction.
//
// It is the part shared by `*pgxpool.Pool`, `*pgxpool.Conn` and `pgx.Tx`.
type Begin interface {
	Begin(ctx context.Context) (Tx, error)
}

// BeginTx starts a transaction with options, like `*pgxpool.Pool` does.
type BeginTx interface {
	Begin
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (Tx, error)
}

// Queryer sends SQL.
//
// For details, see `pgxpool.Conn`.
type Queryer interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// Tx is a subset of `pgx.Tx`.
//
// `pgx.Tx` itself does not satisfy Tx since Begin returns `pgx.Tx`.
// Get Tx from Pool or Conn in this package.
type Tx interface {
	Queryer
	Begin

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

var (
	_ Tx   = pgxTx{}
	_ Conn = pgxPoolConn{}
	_ Pool = pgxPool{}
)

type pgxTx struct {
	pgx.Tx
}

func (tx pgxTx) Begin(ctx context.Context) (Tx, error) {
	return wrapTx(tx.Tx.Begin(ctx))
}

func wrapTx(tx pgx.Tx, err error) (Tx, error) {
	if tx == nil {
		return nil, err
	}
	return pgxTx{tx}, err
}

// Conn is a subset of `*pgxpool.Conn`.
type Conn interface {
	BeginTx
	Queryer

	Release()
	Ping(ctx context.Context) error
}

type pgxPoolConn struct {
	*pgxpool.Conn
}

func (c pgxPoolConn) Begin(ctx context.Context) (Tx, error) {
	return wrapTx(c.Conn.Begin(ctx))
}

func (c pgxPoolConn) BeginTx(ctx context.Context, txOptions pgx.TxOptions) (Tx, error) {
	return wrapTx(c.Conn.BeginTx(ctx, txOptions))
}

// Pool is a subset of `*pgxpool.Pool`.
//
// To get Pool from `*pgxpool.Pool`, use Wrap.
type Pool interface {
	BeginTx

	Acquire(ctx context.Context) (Conn, error)
	Ping(ctx context.Context) error
	Close()
}

type pgxPool struct {
	*pgxpool.Pool
}

func (p pgxPool) Begin(ctx context.Context) (Tx, error) {
	return wrapTx(p.Pool.Begin(ctx))
}

func (p pgxPool) BeginTx(ctx context.Context, txOptions pgx.TxOptions) (Tx, error) {
	return wrapTx(p.Pool.BeginTx(ctx, txOptions))
}

func (p pgxPool) Acquire(ctx context.Context) (Conn, error) {
	conn, err := p.Pool.Acquire(ctx)
	if conn == nil {
		return nil, err
	}
	return pgxPoolConn{conn}, err
}

// Wrap makes Pool from *pgxpool.Pool.
func Wrap(p *pgxpool.Pool) Pool {
	return pgxPool{p}
}

// Connect opens a connection pool to databaseUrl.
//
// maxConns <= 0 means the pgxpool default.
func Connect(ctx context.Context, databaseUrl string, maxConns int32, connectTimeout time.Duration) (Pool, error) {
	conf, err := pgxpool.ParseConfig(databaseUrl)
	if err != nil {
		return nil, err
	}
	if 0 < maxConns {
		conf.MaxConns = maxConns
	}
	if 0 < connectTimeout {
		conf.ConnConfig.ConnectTimeout = connectTimeout
	}

	p, err := pgxpool.ConnectConfig(ctx, conf)
	if err != nil {
		return nil, err
	}
	return Wrap(p), nil
}
