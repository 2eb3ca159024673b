package nl2sql

import (
	"testing"

	"github.com/duckmesh/mesquery/internal/annotation"
)

func TestFallback(t *testing.T) {
	approved := productionMetadata()
	tests := []struct {
		name  string
		input string
		md    annotation.Metadata
		want  string
	}{
		{name: "select with table", input: "查询今天的订单", md: approved, want: "SELECT * FROM production_orders LIMIT 10"},
		{name: "select placeholder", input: "显示设备", want: "SELECT * FROM users LIMIT 10"},
		{name: "english select is case insensitive", input: "SHOW me orders", md: approved, want: "SELECT * FROM production_orders LIMIT 10"},
		{name: "insert keeps placeholder", input: "添加一个订单", md: approved, want: "INSERT INTO users (name, email) VALUES ('example', 'example@example.com')"},
		{name: "update", input: "修改订单状态", md: approved, want: "UPDATE users SET name = 'updated' WHERE id = 1"},
		{name: "delete", input: "删除订单", md: approved, want: "DELETE FROM users WHERE id = 1"},
		{name: "select wins over delete", input: "查询已删除的订单", md: approved, want: "SELECT * FROM production_orders LIMIT 10"},
		{name: "no verb with table", input: "订单情况", md: approved, want: "SELECT * FROM production_orders"},
		{name: "no verb placeholder", input: "订单情况", want: "SELECT * FROM users"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Fallback(tt.input, tt.md); got != tt.want {
				t.Fatalf("Fallback(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
