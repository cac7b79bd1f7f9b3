package memory

import (
	"context"
	"sort"
	"time"

	"chronobank/internal/domain"
	"chronobank/internal/repository"

	"github.com/shopspring/decimal"
)

type accountTypeRepository struct{ *view }

func (r *accountTypeRepository) Create(ctx context.Context, t *domain.AccountType) error {
	defer r.lock()()
	t.ID = r.nextID()
	cp := *t
	setRow(r.view, r.st.accountTypes, t.ID, &cp)
	return nil
}

func (r *accountTypeRepository) GetByID(ctx context.Context, id int64) (*domain.AccountType, error) {
	defer r.lock()()
	t, ok := r.st.accountTypes[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *accountTypeRepository) GetByName(ctx context.Context, name string) (*domain.AccountType, error) {
	defer r.lock()()
	for _, t := range r.st.accountTypes {
		if t.Name == name {
			cp := *t
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

type ownerRepository struct{ *view }

func (r *ownerRepository) Create(ctx context.Context, owner *domain.OwnerProfile) error {
	defer r.lock()()
	owner.ID = r.nextID()
	cp := *owner
	setRow(r.view, r.st.owners, owner.ID, &cp)
	return nil
}

func (r *ownerRepository) GetByID(ctx context.Context, id int64) (*domain.OwnerProfile, error) {
	defer r.lock()()
	o, ok := r.st.owners[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *ownerRepository) AdjustReputation(ctx context.Context, id int64, delta decimal.Decimal) (decimal.Decimal, error) {
	defer r.lock()()
	o, ok := r.st.owners[id]
	if !ok {
		return decimal.Zero, repository.ErrNotFound
	}
	cp := *o
	cp.Reputation = domain.ClampReputation(cp.Reputation.Add(delta))
	setRow(r.view, r.st.owners, id, &cp)
	return cp.Reputation, nil
}

type accountRepository struct{ *view }

func (r *accountRepository) Create(ctx context.Context, account *domain.Account) error {
	defer r.lock()()
	account.ID = r.nextID()
	cp := *account
	setRow(r.view, r.st.accounts, account.ID, &cp)
	return nil
}

func (r *accountRepository) GetByID(ctx context.Context, id int64) (*domain.Account, error) {
	defer r.lock()()
	a, ok := r.st.accounts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *accountRepository) GetForUpdate(ctx context.Context, id int64) (*domain.Account, error) {
	return r.GetByID(ctx, id)
}

func (r *accountRepository) ListByOwner(ctx context.Context, ownerID int64) ([]domain.Account, error) {
	defer r.lock()()
	var out []domain.Account
	for _, a := range r.st.accounts {
		if a.OwnerID == ownerID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *accountRepository) Update(ctx context.Context, account *domain.Account) error {
	defer r.lock()()
	if _, ok := r.st.accounts[account.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *account
	setRow(r.view, r.st.accounts, account.ID, &cp)
	return nil
}

type transactionRepository struct{ *view }

func (r *transactionRepository) Create(ctx context.Context, tx *domain.Transaction) error {
	defer r.lock()()
	if _, dup := r.st.references[tx.ReferenceCode]; dup {
		return repository.ErrDuplicateReference
	}
	if tx.IdempotencyKey != nil {
		if _, dup := r.st.idempotencyKeys[*tx.IdempotencyKey]; dup {
			return repository.ErrDuplicateIdempotencyKey
		}
	}
	tx.ID = r.nextID()
	cp := *tx
	setRow(r.view, r.st.transactions, tx.ID, &cp)
	setIndex(r.view, r.st.references, tx.ReferenceCode, tx.ID)
	if tx.IdempotencyKey != nil {
		setIndex(r.view, r.st.idempotencyKeys, *tx.IdempotencyKey, tx.ID)
	}
	return nil
}

func (r *transactionRepository) get(id int64) (*domain.Transaction, error) {
	t, ok := r.st.transactions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *transactionRepository) GetByID(ctx context.Context, id int64) (*domain.Transaction, error) {
	defer r.lock()()
	return r.get(id)
}

func (r *transactionRepository) GetForUpdate(ctx context.Context, id int64) (*domain.Transaction, error) {
	return r.GetByID(ctx, id)
}

func (r *transactionRepository) GetByReference(ctx context.Context, code string) (*domain.Transaction, error) {
	defer r.lock()()
	id, ok := r.st.references[code]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.get(id)
}

func (r *transactionRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error) {
	defer r.lock()()
	id, ok := r.st.idempotencyKeys[key]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.get(id)
}

func (r *transactionRepository) UpdateStatus(ctx context.Context, id int64, status domain.TransactionStatus, at time.Time) error {
	defer r.lock()()
	t, ok := r.st.transactions[id]
	if !ok {
		return repository.ErrNotFound
	}
	cp := *t
	cp.Status = status
	cp.UpdatedAt = at
	setRow(r.view, r.st.transactions, id, &cp)
	return nil
}

func (r *transactionRepository) ListByAccount(ctx context.Context, accountID int64, limit int) ([]domain.Transaction, error) {
	defer r.lock()()
	var out []domain.Transaction
	for _, t := range r.st.transactions {
		if touches(t, accountID) {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *transactionRepository) ListByOrigin(ctx context.Context, originID int64) ([]domain.Transaction, error) {
	defer r.lock()()
	var out []domain.Transaction
	for _, t := range r.st.transactions {
		if t.OriginTransactionID != nil && *t.OriginTransactionID == originID {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *transactionRepository) CountOutgoingSince(ctx context.Context, accountID int64, since time.Time) (int, error) {
	defer r.lock()()
	n := 0
	for _, t := range r.st.transactions {
		if t.SourceAccountID != nil && *t.SourceAccountID == accountID && !t.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (r *transactionRepository) CountIncomingSince(ctx context.Context, accountID int64, since time.Time) (int, error) {
	defer r.lock()()
	n := 0
	for _, t := range r.st.transactions {
		if t.DestinationAccountID != nil && *t.DestinationAccountID == accountID && !t.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func touches(t *domain.Transaction, accountID int64) bool {
	return (t.SourceAccountID != nil && *t.SourceAccountID == accountID) ||
		(t.DestinationAccountID != nil && *t.DestinationAccountID == accountID)
}

type alertRepository struct{ *view }

func copyAlert(a *domain.FraudAlert) *domain.FraudAlert {
	cp := *a
	cp.Factors = append([]string(nil), a.Factors...)
	return &cp
}

func (r *alertRepository) Create(ctx context.Context, alert *domain.FraudAlert) error {
	defer r.lock()()
	alert.ID = r.nextID()
	setRow(r.view, r.st.alerts, alert.ID, copyAlert(alert))
	return nil
}

func (r *alertRepository) GetByID(ctx context.Context, id int64) (*domain.FraudAlert, error) {
	defer r.lock()()
	a, ok := r.st.alerts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyAlert(a), nil
}

func (r *alertRepository) GetForUpdate(ctx context.Context, id int64) (*domain.FraudAlert, error) {
	return r.GetByID(ctx, id)
}

func (r *alertRepository) Update(ctx context.Context, alert *domain.FraudAlert) error {
	defer r.lock()()
	if _, ok := r.st.alerts[alert.ID]; !ok {
		return repository.ErrNotFound
	}
	setRow(r.view, r.st.alerts, alert.ID, copyAlert(alert))
	return nil
}

func (r *alertRepository) ListByStatus(ctx context.Context, status domain.AlertStatus) ([]domain.FraudAlert, error) {
	defer r.lock()()
	var out []domain.FraudAlert
	for _, a := range r.st.alerts {
		if a.Status == status {
			out = append(out, *copyAlert(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type loanRepository struct{ *view }

func (r *loanRepository) Create(ctx context.Context, loan *domain.Loan) error {
	defer r.lock()()
	loan.ID = r.nextID()
	cp := *loan
	setRow(r.view, r.st.loans, loan.ID, &cp)
	return nil
}

func (r *loanRepository) GetByID(ctx context.Context, id int64) (*domain.Loan, error) {
	defer r.lock()()
	l, ok := r.st.loans[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (r *loanRepository) GetForUpdate(ctx context.Context, id int64) (*domain.Loan, error) {
	return r.GetByID(ctx, id)
}

func (r *loanRepository) Update(ctx context.Context, loan *domain.Loan) error {
	defer r.lock()()
	if _, ok := r.st.loans[loan.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *loan
	setRow(r.view, r.st.loans, loan.ID, &cp)
	return nil
}

func (r *loanRepository) ListByAccount(ctx context.Context, accountID int64) ([]domain.Loan, error) {
	defer r.lock()()
	var out []domain.Loan
	for _, l := range r.st.loans {
		if l.AccountID == accountID {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *loanRepository) CountActiveByAccount(ctx context.Context, accountID int64) (int, error) {
	defer r.lock()()
	n := 0
	for _, l := range r.st.loans {
		if l.AccountID == accountID && l.Status == domain.LoanStatusActive {
			n++
		}
	}
	return n, nil
}

func (r *loanRepository) ListOverdueIDs(ctx context.Context, now time.Time) ([]int64, error) {
	defer r.lock()()
	var ids []int64
	for _, l := range r.st.loans {
		if l.Status == domain.LoanStatusActive && l.DueDate.Before(now) {
			ids = append(ids, l.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

type investmentRepository struct{ *view }

func (r *investmentRepository) Create(ctx context.Context, inv *domain.Investment) error {
	defer r.lock()()
	inv.ID = r.nextID()
	cp := *inv
	setRow(r.view, r.st.investments, inv.ID, &cp)
	return nil
}

func (r *investmentRepository) GetByID(ctx context.Context, id int64) (*domain.Investment, error) {
	defer r.lock()()
	i, ok := r.st.investments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *i
	return &cp, nil
}

func (r *investmentRepository) GetForUpdate(ctx context.Context, id int64) (*domain.Investment, error) {
	return r.GetByID(ctx, id)
}

func (r *investmentRepository) Update(ctx context.Context, inv *domain.Investment) error {
	defer r.lock()()
	if _, ok := r.st.investments[inv.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *inv
	setRow(r.view, r.st.investments, inv.ID, &cp)
	return nil
}

func (r *investmentRepository) ListByAccount(ctx context.Context, accountID int64) ([]domain.Investment, error) {
	defer r.lock()()
	var out []domain.Investment
	for _, i := range r.st.investments {
		if i.AccountID == accountID {
			out = append(out, *i)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *investmentRepository) ListMaturedIDs(ctx context.Context, now time.Time) ([]int64, error) {
	defer r.lock()()
	var ids []int64
	for _, i := range r.st.investments {
		if i.Status == domain.InvestmentStatusActive && !i.MaturityDate.After(now) {
			ids = append(ids, i.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

type notificationRepository struct{ *view }

func copyNotification(n *domain.Notification) *domain.Notification {
	cp := *n
	if n.Attributes != nil {
		cp.Attributes = make(map[string]string, len(n.Attributes))
		for k, v := range n.Attributes {
			cp.Attributes[k] = v
		}
	}
	return &cp
}

func (r *notificationRepository) Create(ctx context.Context, note *domain.Notification) error {
	defer r.lock()()
	note.ID = r.nextID()
	setRow(r.view, r.st.notifications, note.ID, copyNotification(note))
	return nil
}

func (r *notificationRepository) List(ctx context.Context, userID int64, limit, offset int) ([]domain.Notification, error) {
	defer r.lock()()
	var out []domain.Notification
	for _, n := range r.st.notifications {
		if n.UserID == userID {
			out = append(out, *copyNotification(n))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *notificationRepository) ListUndelivered(ctx context.Context, limit int) ([]domain.Notification, error) {
	defer r.lock()()
	var out []domain.Notification
	for _, n := range r.st.notifications {
		if n.DeliveredAt == nil {
			out = append(out, *copyNotification(n))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *notificationRepository) MarkDelivered(ctx context.Context, id int64, at time.Time) error {
	defer r.lock()()
	n, ok := r.st.notifications[id]
	if !ok {
		return repository.ErrNotFound
	}
	cp := copyNotification(n)
	cp.DeliveredAt = &at
	setRow(r.view, r.st.notifications, id, cp)
	return nil
}

func (r *notificationRepository) MarkAsRead(ctx context.Context, id, userID int64) error {
	defer r.lock()()
	n, ok := r.st.notifications[id]
	if !ok || n.UserID != userID {
		return repository.ErrNotFound
	}
	cp := copyNotification(n)
	cp.IsRead = true
	setRow(r.view, r.st.notifications, id, cp)
	return nil
}
