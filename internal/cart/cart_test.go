package cart

import (
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	productA = Product{ID: "A", Name: "Widget", Price: decimal.RequireFromString("10.00")}
	productB = Product{ID: "B", Name: "Gadget", Price: decimal.RequireFromString("5.50")}
)

type addOp struct {
	p   Product
	qty int
}

type recordingPersister struct {
	saved [][]Line
	err   error
}

func (p *recordingPersister) SaveLines(lines []Line) error {
	p.saved = append(p.saved, lines)
	return p.err
}

func TestCart_Add(t *testing.T) {
	testCases := []struct {
		name      string
		adds      []addOp
		wantLines map[string]int
		wantTotal string
		wantErr   bool
	}{
		{
			name:      "new line",
			adds:      []addOp{{productA, 2}},
			wantLines: map[string]int{"A": 2},
			wantTotal: "20.00",
		},
		{
			name:      "existing line is incremented",
			adds:      []addOp{{productA, 2}, {productA, 3}},
			wantLines: map[string]int{"A": 5},
			wantTotal: "50.00",
		},
		{
			name:      "two products",
			adds:      []addOp{{productA, 2}, {productB, 1}},
			wantLines: map[string]int{"A": 2, "B": 1},
			wantTotal: "25.50",
		},
		{
			name:      "zero quantity is rejected",
			adds:      []addOp{{productA, 0}},
			wantLines: map[string]int{},
			wantTotal: "0.00",
			wantErr:   true,
		},
		{
			name:      "negative quantity is rejected",
			adds:      []addOp{{productA, -1}},
			wantLines: map[string]int{},
			wantTotal: "0.00",
			wantErr:   true,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			c := New()

			// when
			var err error
			for _, a := range tc.adds {
				if _, addErr := c.Add(a.p, a.qty); addErr != nil {
					err = addErr
				}
			}

			// then
			if tc.wantErr {
				var vErr *ValidationError
				assert.True(t, errors.As(err, &vErr))
			} else {
				assert.NoError(t, err)
			}
			got := map[string]int{}
			for _, l := range c.Lines() {
				got[l.Product.ID] = l.Quantity
			}
			assert.Equal(t, tc.wantLines, got)
			assert.Equal(t, tc.wantTotal, c.Total().StringFixed(2))
		})
	}
}

func TestCart_TotalMatchesLineSum(t *testing.T) {
	// given
	c := New()
	products := []Product{productA, productB, {ID: "C", Name: "Nut", Price: decimal.RequireFromString("0.33")}}

	// when
	for i := 1; i <= 30; i++ {
		_, err := c.Add(products[i%len(products)], i%4+1)
		require.NoError(t, err)
	}

	// then
	sum := decimal.Zero
	for _, l := range c.Lines() {
		sum = sum.Add(l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	assert.True(t, sum.Equal(c.Total()))
}

func TestCart_SetQuantity(t *testing.T) {
	testCases := []struct {
		name    string
		id      string
		qty     int
		wantQty int
		wantLen int
	}{
		{name: "updates quantity", id: "A", qty: 7, wantQty: 7, wantLen: 2},
		{name: "zero removes the line", id: "A", qty: 0, wantQty: 0, wantLen: 1},
		{name: "negative is clamped to zero", id: "A", qty: -4, wantQty: 0, wantLen: 1},
		{name: "absent line is not created", id: "X", qty: 3, wantQty: 0, wantLen: 2},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			c := New()
			_, _ = c.Add(productA, 2)
			_, _ = c.Add(productB, 1)

			// when
			c.SetQuantity(tc.id, tc.qty)

			// then
			assert.Equal(t, tc.wantQty, c.Quantity(tc.id))
			assert.Equal(t, tc.wantLen, c.Len())
		})
	}
}

func TestCart_SetQuantityZeroEqualsRemove(t *testing.T) {
	// given
	viaSet, viaRemove := New(), New()
	for _, c := range []*Cart{viaSet, viaRemove} {
		_, _ = c.Add(productA, 2)
		_, _ = c.Add(productB, 1)
	}

	// when
	viaSet.SetQuantity("A", 0)
	viaRemove.Remove("A")

	// then
	assert.Equal(t, viaRemove.Len(), viaSet.Len())
	assert.True(t, viaRemove.Total().Equal(viaSet.Total()))
}

func TestCart_RemoveIsIdempotent(t *testing.T) {
	// given
	p := &recordingPersister{}
	c := New(WithPersister(p))
	_, _ = c.Add(productA, 2)
	_, _ = c.Add(productB, 1)

	// when
	first, removed := c.Remove("A")
	once := c.Lines()
	_, removedAgain := c.Remove("A")

	// then
	assert.True(t, removed)
	assert.Equal(t, 2, first.Quantity)
	assert.Equal(t, productA.ID, first.Product.ID)
	assert.False(t, removedAgain)
	assert.Equal(t, once, c.Lines())
	assert.Len(t, p.saved, 3, "second removal must not persist")
}

func TestCart_Rollback(t *testing.T) {
	testCases := []struct {
		name     string
		prior    int
		delta    int
		wantQty  int
		wantLine bool
	}{
		{name: "failed add on empty cart removes the line", prior: 0, delta: 2, wantQty: 0, wantLine: false},
		{name: "failed add on existing line restores prior quantity", prior: 3, delta: 2, wantQty: 3, wantLine: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			c := New()
			if tc.prior > 0 {
				_, _ = c.Add(productA, tc.prior)
			}
			_, err := c.Add(productA, tc.delta)
			require.NoError(t, err)

			// when
			c.Rollback("A", tc.delta)

			// then
			_, ok := c.Version("A")
			assert.Equal(t, tc.wantLine, ok)
			assert.Equal(t, tc.wantQty, c.Quantity("A"))
		})
	}
}

func TestCart_RollbackAfterLocalReduction(t *testing.T) {
	// given
	c := New()
	_, _ = c.Add(productA, 2)
	c.SetQuantity("A", 1)

	// when
	c.Rollback("A", 2)

	// then
	assert.Equal(t, 0, c.Len())
}

func TestCart_VersionIncreases(t *testing.T) {
	// given
	c := New()
	v1, _ := c.Add(productA, 1)

	// when
	v2, _ := c.Add(productA, 1)
	c.SetQuantity("A", 5)
	v3, _ := c.Version("A")

	// then
	assert.Less(t, v1, v2)
	assert.Less(t, v2, v3)
}

func TestCart_PersistAndRestore(t *testing.T) {
	// given
	p := &recordingPersister{}
	c := New(WithPersister(p))
	_, _ = c.Add(productA, 2)
	_, _ = c.Add(productB, 1)

	// when
	restored := New()
	restored.Restore(p.saved[len(p.saved)-1])

	// then
	assert.Equal(t, c.Lines(), restored.Lines())
	assert.Equal(t, "25.50", restored.Total().StringFixed(2))
	v, _ := restored.Add(productA, 1)
	assert.Greater(t, v, c.Lines()[1].Version)
}

func TestCart_PersistFailureKeepsState(t *testing.T) {
	// given
	c := New(WithPersister(&recordingPersister{err: errors.New("disk full")}))

	// when
	_, err := c.Add(productA, 2)

	// then
	assert.NoError(t, err)
	assert.Equal(t, 2, c.Quantity("A"))
}

func TestCart_Clear(t *testing.T) {
	// given
	c := New()
	_, _ = c.Add(productA, 2)

	// when
	c.Clear()

	// then
	assert.Zero(t, c.Len())
	assert.True(t, c.Total().IsZero())
}

func TestCart_ConcurrentAdds(t *testing.T) {
	// given
	c := New()
	var wg sync.WaitGroup

	// when
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.Add(productB, 1)
		}()
	}
	wg.Wait()

	// then
	assert.Equal(t, 50, c.Units())
	assert.Equal(t, "275.00", c.Total().StringFixed(2))
}

func TestParseQuantity(t *testing.T) {
	testCases := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{raw: "3", want: 3},
		{raw: " 12 ", want: 12},
		{raw: "0", wantErr: true},
		{raw: "-2", wantErr: true},
		{raw: "two", wantErr: true},
		{raw: "", wantErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.raw, func(t *testing.T) {
			got, err := ParseQuantity(tc.raw)
			if tc.wantErr {
				var vErr *ValidationError
				assert.ErrorAs(t, err, &vErr)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
