package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/zp184764679/jzc-systems-sub003/internal/procurement/entity"
	"github.com/zp184764679/jzc-systems-sub003/internal/procurement/repository"
	"github.com/zp184764679/jzc-systems-sub003/internal/procurement/testutil"
	"github.com/zp184764679/jzc-systems-sub003/internal/shared/notify"
)

// fakeChannel 可编程的消息通道：先失败failures次，之后成功
type fakeChannel struct {
	mu       sync.Mutex
	failures int
	sent     []string
}

func (f *fakeChannel) SendQuoteInvite(ctx context.Context, recipient string, msg *notify.QuoteInviteMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return errors.New("通道不可用")
	}
	f.sent = append(f.sent, recipient)
	return nil
}

func setupNotifyTest(t *testing.T, maxRetries int, backoffBase time.Duration) (*repository.Repositories, *NotificationService) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	svc := NewNotificationService(repos, maxRetries, backoffBase)
	return repos, svc
}

func seedNotifyTask(t *testing.T, repos *repository.Repositories, id string) *entity.RFQNotificationTask {
	t.Helper()
	ctx := context.Background()

	supplier := &entity.Supplier{
		ID:           "sup-" + id,
		Code:         "SUP-" + id,
		Name:         "通知供应商" + id,
		Status:       entity.SupplierStatusActive,
		ContactEmail: id + "@supplier.test",
	}
	if err := repos.Supplier.Create(ctx, supplier); err != nil {
		t.Fatalf("seed supplier: %v", err)
	}

	rfq := &entity.RFQ{
		ID:      "rfq-" + id,
		RFQCode: "RFQ-" + id,
		PRID:    "pr-" + id,
		Status:  entity.RFQStatusQuoting,
	}
	if err := repos.RFQ.Create(ctx, rfq); err != nil {
		t.Fatalf("seed rfq: %v", err)
	}

	task := &entity.RFQNotificationTask{
		ID:          "task-" + id,
		RFQID:       rfq.ID,
		SupplierID:  supplier.ID,
		Status:      entity.NotifyStatusPending,
		NextRetryAt: time.Now().Add(-time.Minute),
	}
	if err := repos.Notification.Create(ctx, task); err != nil {
		t.Fatalf("seed task: %v", err)
	}
	return task
}

func TestNextRetryDelayDoubling(t *testing.T) {
	_, svc := setupNotifyTest(t, 5, 5*time.Minute)

	cases := []struct {
		retryCount int
		want       time.Duration
	}{
		{0, 5 * time.Minute},
		{1, 10 * time.Minute},
		{2, 20 * time.Minute},
		{3, 40 * time.Minute},
	}
	for _, c := range cases {
		if got := svc.NextRetryDelay(c.retryCount); got != c.want {
			t.Errorf("NextRetryDelay(%d) = %v, want %v", c.retryCount, got, c.want)
		}
	}
}

// TestSweepDeliversDueTask 到期任务投递成功后标记sent
func TestSweepDeliversDueTask(t *testing.T) {
	repos, svc := setupNotifyTest(t, 5, 5*time.Minute)
	ch := &fakeChannel{}
	svc.SetChannel(ch)

	task := seedNotifyTask(t, repos, "ok1")
	// 未到期任务不在本轮投递
	future := seedNotifyTask(t, repos, "fut1")
	repos.Notification.MarkRetry(context.Background(), future.ID, 0, time.Now().Add(time.Hour), "")

	n, err := svc.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 processed, got %d", n)
	}
	if len(ch.sent) != 1 || ch.sent[0] != "ok1@supplier.test" {
		t.Fatalf("expected invite to supplier contact, got %v", ch.sent)
	}

	got, _ := repos.Notification.FindByID(context.Background(), task.ID)
	if got.Status != entity.NotifyStatusSent || got.SentAt == nil {
		t.Fatalf("expected sent with timestamp, got %s", got.Status)
	}
}

// TestSweepRetryBackoffThenFailed 失败任务指数退避，超过上限转人工
func TestSweepRetryBackoffThenFailed(t *testing.T) {
	repos, svc := setupNotifyTest(t, 3, time.Minute)
	ch := &fakeChannel{failures: 10}
	svc.SetChannel(ch)
	ctx := context.Background()

	task := seedNotifyTask(t, repos, "fail1")

	// 第一次失败：retry_count=1，下次重试按base退避
	if _, err := svc.Sweep(ctx); err != nil {
		t.Fatalf("sweep 1: %v", err)
	}
	got, _ := repos.Notification.FindByID(ctx, task.ID)
	if got.Status != entity.NotifyStatusPending || got.RetryCount != 1 {
		t.Fatalf("expected pending retry_count=1, got %s/%d", got.Status, got.RetryCount)
	}
	if got.NextRetryAt.Before(time.Now().Add(50 * time.Second)) {
		t.Fatalf("expected next retry ~1m out, got %v", got.NextRetryAt)
	}
	if got.LastError == "" {
		t.Fatal("expected last error recorded")
	}

	// 把任务拨回到期再扫，第二次失败：retry_count=2
	repos.Notification.MarkRetry(ctx, task.ID, got.RetryCount, time.Now().Add(-time.Second), got.LastError)
	if _, err := svc.Sweep(ctx); err != nil {
		t.Fatalf("sweep 2: %v", err)
	}
	got, _ = repos.Notification.FindByID(ctx, task.ID)
	if got.RetryCount != 2 {
		t.Fatalf("expected retry_count=2, got %d", got.RetryCount)
	}

	// 第三次失败达到上限：永久失败
	repos.Notification.MarkRetry(ctx, task.ID, got.RetryCount, time.Now().Add(-time.Second), got.LastError)
	if _, err := svc.Sweep(ctx); err != nil {
		t.Fatalf("sweep 3: %v", err)
	}
	got, _ = repos.Notification.FindByID(ctx, task.ID)
	if got.Status != entity.NotifyStatusFailed {
		t.Fatalf("expected failed after max retries, got %s", got.Status)
	}

	// 永久失败任务进入人工跟进列表，后续扫描不再投递
	failed, total, err := svc.ListFailedTasks(ctx, 1, 20)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if total != 1 || len(failed) != 1 || failed[0].ID != task.ID {
		t.Fatalf("expected task in failed list, got total=%d", total)
	}

	n, _ := svc.Sweep(ctx)
	if n != 0 {
		t.Fatalf("failed task should not be swept again, processed %d", n)
	}
}

// TestSweepOneBadTaskDoesNotBlockOthers 单任务失败不影响同批其他任务
func TestSweepOneBadTaskDoesNotBlockOthers(t *testing.T) {
	repos, svc := setupNotifyTest(t, 5, time.Minute)
	ch := &fakeChannel{failures: 1}
	svc.SetChannel(ch)
	ctx := context.Background()

	a := seedNotifyTask(t, repos, "mix-a")
	b := seedNotifyTask(t, repos, "mix-b")

	n, err := svc.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 processed, got %d", n)
	}

	gotA, _ := repos.Notification.FindByID(ctx, a.ID)
	gotB, _ := repos.Notification.FindByID(ctx, b.ID)
	sent, pending := 0, 0
	for _, task := range []*entity.RFQNotificationTask{gotA, gotB} {
		switch task.Status {
		case entity.NotifyStatusSent:
			sent++
		case entity.NotifyStatusPending:
			pending++
		}
	}
	if sent != 1 || pending != 1 {
		t.Fatalf("expected one sent and one retrying, got %s/%s", gotA.Status, gotB.Status)
	}
}
