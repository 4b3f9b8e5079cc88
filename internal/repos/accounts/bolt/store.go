package accounts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/fastprodman/referearn/internal/repos/accounts"
)

var bucketAccounts = []byte("accounts")

var _ accounts.Store = (*boltStore)(nil)

type boltStore struct{ db *bolt.DB }

// Open opens (creating if needed) the bbolt-backed account store. If an
// existing file cannot be opened, it is moved aside and the store restarts
// empty; the corrupt-store warning is logged so an operator can recover the
// sidelined file manually instead of the run silently losing history.
func Open(path string) (*boltStore, error) {
	db, err := openFile(path)
	if err != nil {
		// A lock timeout means another process holds the file, not that
		// the file is corrupt. Sidelining it here would fork the live
		// ledger, so fail startup instead.
		if errors.Is(err, bolt.ErrTimeout) {
			return nil, fmt.Errorf("open account store: %w", err)
		}

		if _, statErr := os.Stat(path); statErr != nil {
			return nil, fmt.Errorf("open account store: %w", err)
		}

		sidelined := fmt.Sprintf("%s.corrupt.%d", path, time.Now().UTC().Unix())

		mvErr := os.Rename(path, sidelined)
		if mvErr != nil {
			return nil, fmt.Errorf("sideline corrupt store: %w", errors.Join(err, mvErr))
		}

		slog.Warn("corrupt account store, starting empty",
			"path", path, "sidelined", sidelined, "error", err)

		db, err = openFile(path)
		if err != nil {
			return nil, fmt.Errorf("reopen account store: %w", err)
		}
	}

	return &boltStore{db: db}, nil
}

func openFile(path string) (*bolt.DB, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("bolt open: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketAccounts)

		return err
	})
	if err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("ensure bucket: %w", err)
	}

	return db, nil
}

func (s *boltStore) Get(ctx context.Context, id string) (accounts.Account, error) {
	acc, err := s.Update(ctx, id, func(*accounts.Account) error { return nil })
	if err != nil {
		return accounts.Account{}, fmt.Errorf("get account: %w", err)
	}

	return acc, nil
}

func (s *boltStore) Update(ctx context.Context, id string, fn accounts.UpdateFunc) (accounts.Account, error) {
	err := ctx.Err()
	if err != nil {
		return accounts.Account{}, fmt.Errorf("update account: %w", err)
	}

	var result accounts.Account

	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAccounts)

		acc, found := decode(id, b.Get([]byte(id)))
		if !found {
			seq, serr := b.NextSequence()
			if serr != nil {
				return fmt.Errorf("next sequence: %w", serr)
			}

			acc = accounts.Account{ID: id, Seq: seq}
		}

		ferr := fn(&acc)
		if ferr != nil {
			return ferr
		}

		acc.ID = id

		perr := put(b, acc)
		if perr != nil {
			return perr
		}

		result = acc.Clone()

		return nil
	})
	if err != nil {
		return accounts.Account{}, fmt.Errorf("update account: %w", err)
	}

	return result, nil
}

func (s *boltStore) UpdatePair(ctx context.Context, idA, idB string, fn accounts.PairFunc) error {
	if idA == idB {
		return errors.New("pair update requires two distinct accounts")
	}

	err := ctx.Err()
	if err != nil {
		return fmt.Errorf("update account pair: %w", err)
	}

	// bbolt allows a single writer, so both records mutate under one
	// write transaction and no cross-account lock ordering is needed.
	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAccounts)

		accA, foundA := decode(idA, b.Get([]byte(idA)))
		if !foundA {
			seq, serr := b.NextSequence()
			if serr != nil {
				return fmt.Errorf("next sequence: %w", serr)
			}

			accA = accounts.Account{ID: idA, Seq: seq}
		}

		accB, foundB := decode(idB, b.Get([]byte(idB)))
		if !foundB {
			seq, serr := b.NextSequence()
			if serr != nil {
				return fmt.Errorf("next sequence: %w", serr)
			}

			accB = accounts.Account{ID: idB, Seq: seq}
		}

		ferr := fn(&accA, &accB, foundA, foundB)
		if ferr != nil {
			return ferr
		}

		accA.ID = idA
		accB.ID = idB

		perr := put(b, accA)
		if perr != nil {
			return perr
		}

		return put(b, accB)
	})
	if err != nil {
		return fmt.Errorf("update account pair: %w", err)
	}

	return nil
}

func (s *boltStore) All(ctx context.Context) ([]accounts.Account, error) {
	err := ctx.Err()
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	var out []accounts.Account

	err = s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketAccounts).ForEach(func(k, v []byte) error {
			acc, found := decode(string(k), v)
			if found {
				out = append(out, acc)
			}

			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })

	return out, nil
}

func (s *boltStore) Close() error {
	return s.db.Close()
}

// decode unmarshals a stored record. A malformed record is logged and treated
// as absent rather than crashing the operation.
func decode(id string, raw []byte) (accounts.Account, bool) {
	if raw == nil {
		return accounts.Account{}, false
	}

	var acc accounts.Account

	err := json.Unmarshal(raw, &acc)
	if err != nil {
		slog.Warn("corrupt account record, treating as absent", "id", id, "error", err)

		return accounts.Account{}, false
	}

	return acc, true
}

func put(b *bolt.Bucket, acc accounts.Account) error {
	raw, err := json.Marshal(acc)
	if err != nil {
		return fmt.Errorf("marshal account: %w", err)
	}

	err = b.Put([]byte(acc.ID), raw)
	if err != nil {
		return fmt.Errorf("put account: %w", err)
	}

	return nil
}
