// Package memory is an in-process Store. A transaction holds the store-wide
// lock for its whole duration and keeps an undo journal that is replayed on
// rollback.
package memory

import (
	"context"
	"sync"

	"chronobank/internal/domain"
	"chronobank/internal/repository"
)

type state struct {
	mu sync.Mutex

	seq int64

	accountTypes  map[int64]*domain.AccountType
	owners        map[int64]*domain.OwnerProfile
	accounts      map[int64]*domain.Account
	transactions  map[int64]*domain.Transaction
	alerts        map[int64]*domain.FraudAlert
	loans         map[int64]*domain.Loan
	investments   map[int64]*domain.Investment
	notifications map[int64]*domain.Notification

	references      map[string]int64
	idempotencyKeys map[string]int64
}

// view is the handle every repository works through. A nil journal means the
// view is outside a transaction and must take the lock per call.
type view struct {
	st      *state
	journal *[]func()
}

func (v *view) lock() func() {
	if v.journal != nil {
		return func() {}
	}
	v.st.mu.Lock()
	return v.st.mu.Unlock
}

func (v *view) onRollback(undo func()) {
	if v.journal != nil {
		*v.journal = append(*v.journal, undo)
	}
}

func (v *view) nextID() int64 {
	v.st.seq++
	return v.st.seq
}

func setRow[T any](v *view, m map[int64]*T, id int64, row *T) {
	prev, existed := m[id]
	v.onRollback(func() {
		if existed {
			m[id] = prev
		} else {
			delete(m, id)
		}
	})
	m[id] = row
}

func setIndex(v *view, m map[string]int64, key string, id int64) {
	v.onRollback(func() { delete(m, key) })
	m[key] = id
}

type Store struct {
	st    *state
	repos *repository.Repositories
}

func NewStore() *Store {
	st := &state{
		accountTypes:    make(map[int64]*domain.AccountType),
		owners:          make(map[int64]*domain.OwnerProfile),
		accounts:        make(map[int64]*domain.Account),
		transactions:    make(map[int64]*domain.Transaction),
		alerts:          make(map[int64]*domain.FraudAlert),
		loans:           make(map[int64]*domain.Loan),
		investments:     make(map[int64]*domain.Investment),
		notifications:   make(map[int64]*domain.Notification),
		references:      make(map[string]int64),
		idempotencyKeys: make(map[string]int64),
	}
	return &Store{st: st, repos: newRepositories(&view{st: st})}
}

func newRepositories(v *view) *repository.Repositories {
	return &repository.Repositories{
		AccountTypes:  &accountTypeRepository{v},
		Owners:        &ownerRepository{v},
		Accounts:      &accountRepository{v},
		Transactions:  &transactionRepository{v},
		Alerts:        &alertRepository{v},
		Loans:         &loanRepository{v},
		Investments:   &investmentRepository{v},
		Notifications: &notificationRepository{v},
	}
}

func (s *Store) Repos() *repository.Repositories {
	return s.repos
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, r *repository.Repositories) error) (err error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	var journal []func()
	rollback := func() {
		for i := len(journal) - 1; i >= 0; i-- {
			journal[i]()
		}
	}
	defer func() {
		if p := recover(); p != nil {
			rollback()
			panic(p)
		}
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fn(ctx, newRepositories(&view{st: s.st, journal: &journal})); err != nil {
		rollback()
		return err
	}
	return nil
}
