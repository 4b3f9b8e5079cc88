package accounts

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fastprodman/referearn/internal/infra/pgutils"
	"github.com/fastprodman/referearn/internal/repos/accounts"
)

var _ accounts.Store = (*pgStore)(nil)

type pgStore struct{ db *sql.DB }

func New(db *sql.DB) *pgStore {
	return &pgStore{db: db}
}

func (s *pgStore) Get(ctx context.Context, id string) (accounts.Account, error) {
	acc, err := s.Update(ctx, id, func(*accounts.Account) error { return nil })
	if err != nil {
		return accounts.Account{}, fmt.Errorf("get account: %w", err)
	}

	return acc, nil
}

func (s *pgStore) Update(ctx context.Context, id string, fn accounts.UpdateFunc) (accounts.Account, error) {
	var result accounts.Account

	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := ensure(tx, id)
		if err != nil {
			return err
		}

		acc, _, err := lockAccount(tx, id)
		if err != nil {
			return err
		}

		ferr := fn(&acc)
		if ferr != nil {
			return ferr
		}

		acc.ID = id

		err = writeDoc(tx, acc)
		if err != nil {
			return err
		}

		result = acc.Clone()

		return nil
	})
	if err != nil {
		return accounts.Account{}, fmt.Errorf("update account: %w", err)
	}

	return result, nil
}

func (s *pgStore) UpdatePair(ctx context.Context, idA, idB string, fn accounts.PairFunc) error {
	if idA == idB {
		return errors.New("pair update requires two distinct accounts")
	}

	// Fixed global lock order: rows are created and locked in ascending id
	// order so two concurrent pair updates can never deadlock.
	first, second := idA, idB
	if second < first {
		first, second = second, first
	}

	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		createdFirst, err := ensure(tx, first)
		if err != nil {
			return err
		}

		createdSecond, err := ensure(tx, second)
		if err != nil {
			return err
		}

		accFirst, validFirst, err := lockAccount(tx, first)
		if err != nil {
			return err
		}

		accSecond, validSecond, err := lockAccount(tx, second)
		if err != nil {
			return err
		}

		// A corrupt record counts as absent, same as the bolt backend.
		accA, accB := &accFirst, &accSecond
		foundA, foundB := !createdFirst && validFirst, !createdSecond && validSecond

		if accA.ID != idA {
			accA, accB = accB, accA
			foundA, foundB = foundB, foundA
		}

		ferr := fn(accA, accB, foundA, foundB)
		if ferr != nil {
			return ferr
		}

		accA.ID = idA
		accB.ID = idB

		err = writeDoc(tx, *accA)
		if err != nil {
			return err
		}

		return writeDoc(tx, *accB)
	})
	if err != nil {
		return fmt.Errorf("update account pair: %w", err)
	}

	return nil
}

func (s *pgStore) All(ctx context.Context) ([]accounts.Account, error) {
	var out []accounts.Account

	err := pgutils.WithReadTx(ctx, s.db, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT id, seq, doc
			FROM accounts
			ORDER BY seq
		`)
		if err != nil {
			return fmt.Errorf("list accounts: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				id  string
				seq uint64
				doc []byte
			)

			err = rows.Scan(&id, &seq, &doc)
			if err != nil {
				return fmt.Errorf("scan account: %w", err)
			}

			var acc accounts.Account

			err = json.Unmarshal(doc, &acc)
			if err != nil {
				slog.Warn("corrupt account record, skipping", "id", id, "error", err)
				continue
			}

			acc.ID = id
			acc.Seq = seq
			out = append(out, acc)
		}

		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	return out, nil
}

func (s *pgStore) Close() error {
	return s.db.Close()
}

// ensure inserts a default row for id unless one already exists. It reports
// whether this call created the row.
func ensure(tx *sql.Tx, id string) (bool, error) {
	var seq uint64

	err := tx.QueryRow(`
		INSERT INTO accounts (id, doc)
		VALUES ($1, '{}'::jsonb)
		ON CONFLICT (id) DO NOTHING
		RETURNING seq
	`, id).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}

	if err != nil {
		return false, fmt.Errorf("ensure account: %w", err)
	}

	return true, nil
}

// lockAccount takes the row lock and decodes the current state. A malformed
// document is logged and treated as absent: the returned state is the default
// (keeping the row's seq) and valid reports false, matching the bolt backend.
func lockAccount(tx *sql.Tx, id string) (acc accounts.Account, valid bool, err error) {
	var (
		seq uint64
		doc []byte
	)

	err = tx.QueryRow(`
		SELECT seq, doc
		FROM accounts
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&seq, &doc)
	if err != nil {
		return accounts.Account{}, false, fmt.Errorf("lock account: %w", err)
	}

	valid = true

	uerr := json.Unmarshal(doc, &acc)
	if uerr != nil {
		slog.Warn("corrupt account record, treating as absent", "id", id, "error", uerr)

		acc = accounts.Account{}
		valid = false
	}

	acc.ID = id
	acc.Seq = seq

	return acc, valid, nil
}

func writeDoc(tx *sql.Tx, acc accounts.Account) error {
	doc, err := json.Marshal(acc)
	if err != nil {
		return fmt.Errorf("marshal account: %w", err)
	}

	_, err = tx.Exec(`
		UPDATE accounts
		SET doc = $2
		WHERE id = $1
	`, acc.ID, doc)
	if err != nil {
		return fmt.Errorf("write account: %w", err)
	}

	return nil
}
