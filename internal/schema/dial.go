package schema

import (
	"context"

	"github.com/koustreak/sqlforge/internal/database"
	"github.com/koustreak/sqlforge/internal/database/libpq"
	"github.com/koustreak/sqlforge/internal/database/postgres"
	"github.com/koustreak/sqlforge/internal/errs"
)

// Dial opens the driver named by cfg and returns a procedure-backed
// Introspector over it. The caller owns the result and must Close it.
func Dial(ctx context.Context, cfg database.Config) (Introspector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		db  database.DB
		err error
	)
	switch cfg.Driver {
	case "", database.DriverPgx:
		db, err = postgres.New(ctx, cfg)
	case database.DriverLibPQ:
		db, err = libpq.New(ctx, cfg)
	default:
		return nil, errs.Newf(errs.ErrKindInvalidInput, "unsupported driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	return NewProcIntrospector(db, cfg.ProcedureSchema), nil
}
