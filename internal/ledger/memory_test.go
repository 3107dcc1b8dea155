package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func seedUser(t *testing.T, s Store, id, credit int64) {
	t.Helper()
	ctx := context.Background()
	if _, err := s.EnsureUser(ctx, id, ""); err != nil {
		t.Fatalf("ensure user %d: %v", id, err)
	}
	if credit > 0 {
		if ok, err := s.Credit(ctx, id, credit); err != nil || !ok {
			t.Fatalf("credit user %d: ok=%v err=%v", id, ok, err)
		}
	}
}

func TestMemoryEnsureUserIsIdempotent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	u, err := s.EnsureUser(ctx, 7, "alice")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if u.Credit != 0 || u.DiscountUsed || u.Approval != ApprovalPending {
		t.Fatalf("unexpected fresh user: %+v", u)
	}
	if _, err := s.Credit(ctx, 7, 300); err != nil {
		t.Fatalf("credit: %v", err)
	}
	u, err = s.EnsureUser(ctx, 7, "")
	if err != nil {
		t.Fatalf("ensure again: %v", err)
	}
	if u.Credit != 300 || u.Username != "alice" {
		t.Fatalf("second ensure must not reset the row: %+v", u)
	}
}

func TestMemoryTransferScenario(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedUser(t, s, 1, 20000)
	seedUser(t, s, 2, 1000)

	if err := s.Transfer(ctx, 1, 2, 5000); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	a, _ := s.User(ctx, 1)
	b, _ := s.User(ctx, 2)
	if a.Credit != 15000 || b.Credit != 6000 {
		t.Fatalf("balances = %d/%d, want 15000/6000", a.Credit, b.Credit)
	}
}

func TestMemoryTransferInsufficientLeavesBalances(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedUser(t, s, 1, 100)
	seedUser(t, s, 2, 50)

	err := s.Transfer(ctx, 1, 2, 101)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
	a, _ := s.User(ctx, 1)
	b, _ := s.User(ctx, 2)
	if a.Credit != 100 || b.Credit != 50 {
		t.Fatalf("balances changed: %d/%d", a.Credit, b.Credit)
	}
}

func TestMemoryTransferUnknownReceiver(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedUser(t, s, 1, 100)

	if err := s.Transfer(ctx, 1, 99, 10); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}
	a, _ := s.User(ctx, 1)
	if a.Credit != 100 {
		t.Fatalf("sender debited on failed transfer: %d", a.Credit)
	}
}

func TestMemoryConcurrentTransfersNeverOverdraw(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedUser(t, s, 1, 1000)
	seedUser(t, s, 2, 0)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Transfer(ctx, 1, 2, 100)
		}()
	}
	wg.Wait()

	a, _ := s.User(ctx, 1)
	b, _ := s.User(ctx, 2)
	if a.Credit < 0 {
		t.Fatalf("negative balance %d", a.Credit)
	}
	if a.Credit+b.Credit != 1000 {
		t.Fatalf("credit not conserved: %d + %d", a.Credit, b.Credit)
	}
	if b.Credit != 1000 {
		t.Fatalf("receiver = %d, want 1000", b.Credit)
	}
}

func TestMemoryRedeemDiscountOnce(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedUser(t, s, 42, 0)
	if err := s.InsertCode(ctx, DiscountCode{Code: "vip50", Value: 5000}); err != nil {
		t.Fatalf("insert code: %v", err)
	}

	value, err := s.RedeemDiscount(ctx, 42, "vip50")
	if err != nil || value != 5000 {
		t.Fatalf("redeem = %d, %v", value, err)
	}
	u, _ := s.User(ctx, 42)
	if u.Credit != 5000 || !u.DiscountUsed {
		t.Fatalf("after redeem: %+v", u)
	}

	if _, err := s.RedeemDiscount(ctx, 42, "vip50"); !errors.Is(err, ErrDiscountUsed) {
		t.Fatalf("second redeem err = %v, want ErrDiscountUsed", err)
	}
	u, _ = s.User(ctx, 42)
	if u.Credit != 5000 {
		t.Fatalf("second redeem changed balance: %d", u.Credit)
	}
}

func TestMemoryRedeemUnknownCodeKeepsFlag(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedUser(t, s, 5, 0)

	if _, err := s.RedeemDiscount(ctx, 5, "nope"); !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("err = %v, want ErrCodeNotFound", err)
	}
	u, _ := s.User(ctx, 5)
	if u.DiscountUsed {
		t.Fatal("invalid code must not consume the one-shot flag")
	}
}

func TestMemoryDuplicateCodeKeepsOriginal(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	if err := s.InsertCode(ctx, DiscountCode{Code: "x", Value: 10}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := s.InsertCode(ctx, DiscountCode{Code: "x", Value: 99}); !errors.Is(err, ErrDuplicateCode) {
		t.Fatalf("err = %v, want ErrDuplicateCode", err)
	}
	c, err := s.Code(ctx, "x")
	if err != nil || c.Value != 10 {
		t.Fatalf("code = %+v, %v", c, err)
	}
}

func TestMemoryUpsertServiceReplaces(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	if _, err := s.Service(ctx, ServiceV2Ray); !errors.Is(err, ErrServiceNotFound) {
		t.Fatalf("missing service err = %v", err)
	}
	_ = s.UpsertService(ctx, Service{Kind: ServiceV2Ray, Content: "vmess://first"})
	_ = s.UpsertService(ctx, Service{Kind: ServiceV2Ray, Content: "file-id", IsFile: true})

	svc, err := s.Service(ctx, ServiceV2Ray)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	if svc.Content != "file-id" || svc.ContentKind() != ContentFile {
		t.Fatalf("service = %+v", svc)
	}
}

func TestMemoryPendingUsers(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedUser(t, s, 3, 0)
	seedUser(t, s, 1, 0)
	seedUser(t, s, 2, 0)
	if err := s.SetApproval(ctx, 2, ApprovalApproved); err != nil {
		t.Fatalf("approve: %v", err)
	}

	pending, _ := s.PendingUsers(ctx)
	if len(pending) != 2 || pending[0].ID != 1 || pending[1].ID != 3 {
		t.Fatalf("pending = %+v", pending)
	}
	ids, _ := s.UserIDs(ctx)
	if len(ids) != 3 {
		t.Fatalf("ids = %v", ids)
	}
	if err := s.SetApproval(ctx, 404, ApprovalApproved); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("approve unknown err = %v", err)
	}
}
