package reports

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestSumMovementRows(t *testing.T) {
	rows := []*AssetMovementRow{
		{AssetId: 1, InQty: 10, OutQty: 4,
			InValue:  decimal.RequireFromString("100.00"),
			OutValue: decimal.RequireFromString("40.00")},
		{AssetId: 2, InQty: 0, OutQty: 3,
			InValue:  decimal.Zero,
			OutValue: decimal.RequireFromString("7.50")},
	}

	totals := sumMovementRows(rows)

	if rows[0].NetQty != 6 || !rows[0].NetValue.Equal(decimal.RequireFromString("60")) {
		t.Fatalf("row 1 net wrong: qty=%d value=%s", rows[0].NetQty, rows[0].NetValue)
	}
	if rows[1].NetQty != -3 || !rows[1].NetValue.Equal(decimal.RequireFromString("-7.5")) {
		t.Fatalf("row 2 net wrong: qty=%d value=%s", rows[1].NetQty, rows[1].NetValue)
	}
	if totals.InQty != 10 || totals.OutQty != 7 || totals.NetQty != 3 {
		t.Fatalf("quantity totals wrong: %+v", totals)
	}
	if !totals.NetValue.Equal(decimal.RequireFromString("52.5")) {
		t.Fatalf("net value = %s, want 52.5", totals.NetValue)
	}
}

func TestSumMovementRowsEmpty(t *testing.T) {
	totals := sumMovementRows(nil)
	if totals.InQty != 0 || totals.OutQty != 0 || totals.NetQty != 0 {
		t.Fatalf("empty totals must be zero: %+v", totals)
	}
	if !totals.InValue.IsZero() || !totals.OutValue.IsZero() || !totals.NetValue.IsZero() {
		t.Fatalf("empty value totals must be zero: %+v", totals)
	}
}
