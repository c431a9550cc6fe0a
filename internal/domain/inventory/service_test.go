package inventory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aurumlabs/aurum/internal/notify"
)

type mockInventoryRepo struct {
	stock   map[string]int
	entries []Entry
}

func (m *mockInventoryRepo) AdjustStock(_ context.Context, itemID string, delta int) (int, error) {
	m.stock[itemID] += delta
	return m.stock[itemID], nil
}

func (m *mockInventoryRepo) AppendEntry(_ context.Context, e *Entry) error {
	m.entries = append(m.entries, *e)
	return nil
}

func (m *mockInventoryRepo) ListEntries(_ context.Context, itemID string, _ int) ([]Entry, error) {
	var out []Entry
	for _, e := range m.entries {
		if e.ItemID == itemID {
			out = append(out, e)
		}
	}
	return out, nil
}

// captureNotifier records low-stock alerts; other events are ignored.
type captureNotifier struct {
	mu       sync.Mutex
	lowStock []string
}

func (n *captureNotifier) OrderEvent(context.Context, notify.OrderEvent) error { return nil }

func (n *captureNotifier) CartReminder(context.Context, string, string) error { return nil }

func (n *captureNotifier) LowStock(_ context.Context, itemID string, _ int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.lowStock = append(n.lowStock, itemID)
	return nil
}

func TestService_AdjustReconcilesLedger(t *testing.T) {
	repo := &mockInventoryRepo{stock: map[string]int{"ring-1": 10}}
	svc := NewService(repo, &captureNotifier{}, zap.NewNop())

	require.NoError(t, svc.Adjust(context.Background(), "ring-1", -2, ActionSale, "order o1", "c1"))
	require.NoError(t, svc.RestockLine(context.Background(), "ring-1", 2, "o1"))

	assert.Equal(t, 10, repo.stock["ring-1"])

	sum := 0
	for _, e := range repo.entries {
		sum += e.Delta
	}
	assert.Equal(t, 0, sum)
	require.Len(t, repo.entries, 2)
	assert.Equal(t, ActionRestockCancel, repo.entries[1].Action)
}

func TestService_LowStockAlertFiresAtThreshold(t *testing.T) {
	repo := &mockInventoryRepo{stock: map[string]int{"ring-1": 4}}
	n := &captureNotifier{}
	svc := NewService(repo, n, zap.NewNop())

	require.NoError(t, svc.Adjust(context.Background(), "ring-1", -1, ActionSale, "", ""))

	// The alert runs on a background goroutine.
	assert.Eventually(t, func() bool {
		n.mu.Lock()
		defer n.mu.Unlock()
		return len(n.lowStock) == 1 && n.lowStock[0] == "ring-1"
	}, time.Second, 10*time.Millisecond)
}

func TestService_NoAlertAboveThreshold(t *testing.T) {
	repo := &mockInventoryRepo{stock: map[string]int{"ring-1": 10}}
	n := &captureNotifier{}
	svc := NewService(repo, n, zap.NewNop())

	require.NoError(t, svc.Adjust(context.Background(), "ring-1", -1, ActionSale, "", ""))

	time.Sleep(50 * time.Millisecond)
	n.mu.Lock()
	defer n.mu.Unlock()
	assert.Empty(t, n.lowStock)
}
