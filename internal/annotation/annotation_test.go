package annotation

import (
	"context"
	"testing"
)

func sampleMetadata() Metadata {
	b := NewBuilder()
	b.AddTable(TableMeta{Name: "production_orders", NameCN: "生产订单"})
	b.AddTable(TableMeta{Name: "wafers", NameCN: "晶圆"})
	b.AddTable(TableMeta{Name: "wafers", NameCN: "duplicate"})
	b.AddColumn("production_orders", ColumnMeta{Name: "order_no", NameCN: "订单号", DataType: "text"})
	b.AddColumn("production_orders", ColumnMeta{Name: "output_qty", NameCN: "产量", DataType: "integer"})
	b.AddColumn("wafers", ColumnMeta{Name: "lot_id", NameCN: "批次"})
	b.AddColumn("", ColumnMeta{Name: "ignored"})
	return b.Metadata()
}

func TestMetadataLookups(t *testing.T) {
	md := sampleMetadata()

	if got := md.TableNames(); len(got) != 2 || got[0] != "production_orders" || got[1] != "wafers" {
		t.Fatalf("TableNames() = %v", got)
	}
	if table, ok := md.Table("wafers"); !ok || table.NameCN != "晶圆" {
		t.Fatalf("Table(wafers) = %+v, %v", table, ok)
	}
	if name, ok := md.TableByLocalizedName(" 生产订单 "); !ok || name != "production_orders" {
		t.Fatalf("TableByLocalizedName() = %q, %v", name, ok)
	}
	if _, ok := md.TableByLocalizedName("设备"); ok {
		t.Fatal("TableByLocalizedName() matched unknown name")
	}
	if name, ok := md.ColumnByLocalizedName("production_orders", "产量"); !ok || name != "output_qty" {
		t.Fatalf("ColumnByLocalizedName() = %q, %v", name, ok)
	}
	if _, ok := md.ColumnByLocalizedName("wafers", "产量"); ok {
		t.Fatal("ColumnByLocalizedName() matched column of another table")
	}
}

func TestMetadataSummary(t *testing.T) {
	summary := sampleMetadata().Summary()
	if summary.Tables != 2 || summary.Columns != 3 {
		t.Fatalf("Summary() = %+v", summary)
	}
	if summary.ColumnCountByTable["production_orders"] != 2 || summary.ColumnCountByTable["wafers"] != 1 {
		t.Fatalf("ColumnCountByTable = %v", summary.ColumnCountByTable)
	}
}

func TestStaticStoreReturnsCopies(t *testing.T) {
	store := StaticStore{Metadata: sampleMetadata()}
	first, err := store.FetchApprovedMetadata(context.Background())
	if err != nil {
		t.Fatalf("FetchApprovedMetadata() error = %v", err)
	}
	first.Tables[0].Name = "mutated"
	first.Columns["wafers"][0].Name = "mutated"

	second, _ := store.FetchApprovedMetadata(context.Background())
	if second.Tables[0].Name != "production_orders" || second.Columns["wafers"][0].Name != "lot_id" {
		t.Fatalf("StaticStore leaked mutation: %+v", second)
	}
	if !(StaticStore{}).Metadata.Empty() {
		t.Fatal("zero StaticStore should be empty")
	}
}
