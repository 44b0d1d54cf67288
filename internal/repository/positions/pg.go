package positions

import (
	"context"
	"fmt"
	"time"

	"sentiment_trader/internal/models"
	"sentiment_trader/pkg/db"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"
)

const schema = `
CREATE TABLE IF NOT EXISTS positions (
	symbol      TEXT PRIMARY KEY,
	direction   TEXT NOT NULL,
	quantity    TEXT NOT NULL,
	entry_price DOUBLE PRECISION NOT NULL,
	extremum    DOUBLE PRECISION NOT NULL,
	opened_at   TIMESTAMPTZ,
	loan        JSONB,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS margin_incidents (
	id         BIGSERIAL PRIMARY KEY,
	symbol     TEXT NOT NULL,
	operation  TEXT NOT NULL,
	step       TEXT NOT NULL,
	detail     TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);`

const upsertPosition = `
INSERT INTO positions (symbol, direction, quantity, entry_price, extremum, opened_at, loan, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (symbol) DO UPDATE SET
	direction = EXCLUDED.direction,
	quantity = EXCLUDED.quantity,
	entry_price = EXCLUDED.entry_price,
	extremum = EXCLUDED.extremum,
	opened_at = EXCLUDED.opened_at,
	loan = EXCLUDED.loan,
	updated_at = EXCLUDED.updated_at`

const selectPositions = `
SELECT symbol, direction, quantity, entry_price, extremum, opened_at, loan, updated_at FROM positions`

const insertIncident = `
INSERT INTO margin_incidents (symbol, operation, step, detail, created_at) VALUES ($1, $2, $3, $4, $5)`

type loanRow struct {
	Asset      string    `json:"asset"`
	Principal  string    `json:"principal"`
	BorrowedAt time.Time `json:"borrowed_at"`
}

// PG — состояние позиций в Postgres, переживает рестарт (трейлинг не теряет экстремум).
type PG struct {
	db db.TxManager
}

func NewPG(db db.TxManager) *PG {
	return &PG{db: db}
}

func (p *PG) Migrate(ctx context.Context) error {
	return p.db.RunMaster(ctx, func(ctxTx context.Context, tx db.Transaction) error {
		_, err := tx.Exec(ctxTx, schema)
		return err
	})
}

func (p *PG) Load(ctx context.Context) (out map[string]models.PositionState, err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.LoadPositions: %w", err)
		}
	}()

	out = make(map[string]models.PositionState)
	err = p.db.RunRepeatableRead(ctx, func(ctxTx context.Context, tx db.Transaction) error {
		rows, err := tx.Query(ctxTx, selectPositions)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				st       models.PositionState
				dir, qty string
				openedAt *time.Time
				loanRaw  []byte
			)
			if err := rows.Scan(&st.Symbol, &dir, &qty, &st.EntryPrice, &st.Extremum, &openedAt, &loanRaw, &st.UpdatedAt); err != nil {
				return err
			}
			st.Direction = models.Direction(dir)
			if st.Quantity, err = decimal.NewFromString(qty); err != nil {
				return fmt.Errorf("%s quantity %q: %w", st.Symbol, qty, err)
			}
			if openedAt != nil {
				st.OpenedAt = *openedAt
			}
			if len(loanRaw) > 0 && string(loanRaw) != "null" {
				var lr loanRow
				if err := sonic.Unmarshal(loanRaw, &lr); err != nil {
					return fmt.Errorf("%s loan: %w", st.Symbol, err)
				}
				principal, err := decimal.NewFromString(lr.Principal)
				if err != nil {
					return fmt.Errorf("%s loan principal: %w", st.Symbol, err)
				}
				st.Loan = &models.MarginLoan{Asset: lr.Asset, Principal: principal, BorrowedAt: lr.BorrowedAt}
			}
			if err := st.Validate(); err != nil {
				return err
			}
			out[st.Symbol] = st
		}
		return rows.Err()
	})
	return out, err
}

func (p *PG) Save(ctx context.Context, st models.PositionState) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("pg.SavePosition: %w", err)
		}
	}()
	if err = st.Validate(); err != nil {
		return err
	}

	var loan []byte
	if st.Loan != nil {
		loan, err = sonic.Marshal(loanRow{
			Asset:      st.Loan.Asset,
			Principal:  st.Loan.Principal.String(),
			BorrowedAt: st.Loan.BorrowedAt,
		})
		if err != nil {
			return err
		}
	}
	var openedAt *time.Time
	if !st.OpenedAt.IsZero() {
		openedAt = &st.OpenedAt
	}
	updatedAt := st.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	return p.db.RunMaster(ctx, func(ctxTx context.Context, tx db.Transaction) error {
		_, err := tx.Exec(ctxTx, upsertPosition,
			st.Symbol, string(st.Direction), st.Quantity.String(), st.EntryPrice, st.Extremum, openedAt, loan, updatedAt)
		return err
	})
}

func (p *PG) RecordIncident(ctx context.Context, inc models.MarginIncident) error {
	return p.db.RunMaster(ctx, func(ctxTx context.Context, tx db.Transaction) error {
		_, err := tx.Exec(ctxTx, insertIncident, inc.Symbol, inc.Operation, inc.Step, inc.Detail, inc.CreatedAt)
		return err
	})
}
