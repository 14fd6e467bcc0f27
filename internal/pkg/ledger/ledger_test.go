package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// fakeRepository mimics the storage layer's atomic conditional updates.
type fakeRepository struct {
	mu       sync.Mutex
	balances map[uint]int64
}

func newFakeRepository(balances map[uint]int64) *fakeRepository {
	return &fakeRepository{balances: balances}
}

func (f *fakeRepository) GetBalance(_ context.Context, userID uint) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.balances[userID]
	if !ok {
		return 0, ErrUserNotFound
	}
	return b, nil
}

func (f *fakeRepository) AddTokens(_ context.Context, userID uint, amount int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.balances[userID]
	if !ok {
		return 0, ErrUserNotFound
	}
	f.balances[userID] = b + amount
	return f.balances[userID], nil
}

func (f *fakeRepository) SubtractTokens(_ context.Context, userID uint, amount int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.balances[userID]
	if !ok {
		return 0, ErrUserNotFound
	}
	if b < amount {
		return 0, ErrInsufficientBalance
	}
	f.balances[userID] = b - amount
	return f.balances[userID], nil
}

func TestCreditAndDebit(t *testing.T) {
	svc := NewService(newFakeRepository(map[uint]int64{1: 100}))
	ctx := context.Background()

	balance, err := svc.Credit(ctx, 1, 50, "test")
	if err != nil {
		t.Fatalf("unexpected credit error: %v", err)
	}
	if balance != 150 {
		t.Fatalf("balance after credit = %d, want 150", balance)
	}

	balance, err = svc.Debit(ctx, 1, 120)
	if err != nil {
		t.Fatalf("unexpected debit error: %v", err)
	}
	if balance != 30 {
		t.Fatalf("balance after debit = %d, want 30", balance)
	}
}

func TestDebitNeverGoesNegative(t *testing.T) {
	svc := NewService(newFakeRepository(map[uint]int64{1: 10}))
	ctx := context.Background()

	if _, err := svc.Debit(ctx, 1, 11); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	balance, err := svc.GetBalance(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if balance != 10 {
		t.Fatalf("failed debit must not change balance: got %d, want 10", balance)
	}
}

func TestConcurrentDebitsOnlyOneSucceeds(t *testing.T) {
	svc := NewService(newFakeRepository(map[uint]int64{1: 100}))
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Debit(ctx, 1, 60)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, ErrInsufficientBalance) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("%d debits of 60 succeeded on a balance of 100, want exactly 1", succeeded)
	}

	balance, _ := svc.GetBalance(ctx, 1)
	if balance != 40 {
		t.Fatalf("final balance = %d, want 40", balance)
	}
}

func TestRejectsNonPositiveAmounts(t *testing.T) {
	svc := NewService(newFakeRepository(map[uint]int64{1: 10}))
	ctx := context.Background()

	for _, amount := range []int64{0, -5} {
		if _, err := svc.Credit(ctx, 1, amount, "test"); !errors.Is(err, ErrNonPositiveAmount) {
			t.Fatalf("Credit(%d) = %v, want ErrNonPositiveAmount", amount, err)
		}
		if _, err := svc.Debit(ctx, 1, amount); !errors.Is(err, ErrNonPositiveAmount) {
			t.Fatalf("Debit(%d) = %v, want ErrNonPositiveAmount", amount, err)
		}
	}
}

func TestUnknownUser(t *testing.T) {
	svc := NewService(newFakeRepository(map[uint]int64{}))
	ctx := context.Background()

	if _, err := svc.GetBalance(ctx, 42); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := svc.Credit(ctx, 42, 10, "test"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
