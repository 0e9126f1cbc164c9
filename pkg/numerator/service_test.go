package numerator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRow struct {
	val int64
	err error
}

func (m *mockRow) Scan(dest ...any) error {
	if m.err != nil {
		return m.err
	}
	if len(dest) > 0 {
		if ptr, ok := dest[0].(*int64); ok {
			*ptr = m.val
		}
	}
	return nil
}

// mockQuerier simulates the sys_sequences counter: every call bumps the
// stored value by the increment argument (1 for strict).
type mockQuerier struct {
	mu           sync.Mutex
	currentValue int64
	calls        int
}

func (m *mockQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	m.mu.Lock()
	defer m.mu.Unlock()

	var increment int64 = 1
	if len(args) == 2 {
		if val, ok := args[1].(int64); ok {
			increment = val
		}
	}

	m.currentValue += increment
	m.calls++

	return &mockRow{val: m.currentValue}
}

func TestGetNextNumber_StrictDayScoped(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)
	ctx := context.Background()
	cfg := DefaultConfig("VTA")
	day := time.Date(2025, 1, 14, 10, 30, 0, 0, time.UTC)

	num, err := svc.GetNextNumber(ctx, cfg, nil, day)
	require.NoError(t, err)
	assert.Equal(t, "VTA-20250114-0001", num)

	num, err = svc.GetNextNumber(ctx, cfg, nil, day)
	require.NoError(t, err)
	assert.Equal(t, "VTA-20250114-0002", num)
}

func TestGetNextNumber_Cached(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q)
	ctx := context.Background()
	cfg := Config{Prefix: "REF", PadWidth: 5, ResetPeriod: "year"}
	day := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)

	opts := &Options{Strategy: StrategyCached, RangeSize: 10}

	// First call reserves 1..10 in one round-trip.
	num, err := svc.GetNextNumber(ctx, cfg, opts, day)
	require.NoError(t, err)
	assert.Equal(t, "REF-2025-00001", num)
	assert.EqualValues(t, 10, q.currentValue)
	assert.Equal(t, 1, q.calls)

	// Second call served from memory.
	num, err = svc.GetNextNumber(ctx, cfg, opts, day)
	require.NoError(t, err)
	assert.Equal(t, "REF-2025-00002", num)
	assert.Equal(t, 1, q.calls)

	// Exhaust the range; the next allocation reserves 11..20.
	for i := 0; i < 8; i++ {
		_, err = svc.GetNextNumber(ctx, cfg, opts, day)
		require.NoError(t, err)
	}
	num, err = svc.GetNextNumber(ctx, cfg, opts, day)
	require.NoError(t, err)
	assert.Equal(t, "REF-2025-00011", num)
	assert.EqualValues(t, 20, q.currentValue)
	assert.Equal(t, 2, q.calls)
}

func TestBuildKey_ResetPeriods(t *testing.T) {
	svc := New(&mockQuerier{})
	day := time.Date(2025, 1, 14, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		reset string
		want  string
	}{
		{"day", "VTA_2025_01_14"},
		{"month", "VTA_2025_01"},
		{"year", "VTA_2025"},
		{"never", "VTA"},
	}
	for _, tt := range tests {
		got := svc.buildKey(Config{Prefix: "VTA", ResetPeriod: tt.reset}, day)
		assert.Equal(t, tt.want, got, "reset period %s", tt.reset)
	}
}

func TestParseNumber(t *testing.T) {
	assert.EqualValues(t, 17, ParseNumber("VTA-20250114-0017"))
	assert.EqualValues(t, 5, ParseNumber("REF-00005"))
	assert.EqualValues(t, -1, ParseNumber("garbage"))
}
