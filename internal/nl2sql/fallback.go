package nl2sql

import (
	"strings"

	"github.com/duckmesh/mesquery/internal/annotation"
)

const placeholderTable = "users"

var (
	selectKeywords = []string{"查询", "显示", "select", "query", "show"}
	insertKeywords = []string{"插入", "添加", "insert", "add"}
	updateKeywords = []string{"更新", "修改", "update", "modify"}
	deleteKeywords = []string{"删除", "delete"}
)

// Fallback picks a fixed statement by the first verb keyword group found in
// the input. Only the SELECT templates use the first approved table.
func Fallback(naturalLanguage string, md annotation.Metadata) string {
	text := strings.ToLower(naturalLanguage)
	table := placeholderTable
	if !md.Empty() {
		table = md.Tables[0].Name
	}
	switch {
	case containsAny(text, selectKeywords):
		return "SELECT * FROM " + table + " LIMIT 10"
	case containsAny(text, insertKeywords):
		return "INSERT INTO users (name, email) VALUES ('example', 'example@example.com')"
	case containsAny(text, updateKeywords):
		return "UPDATE users SET name = 'updated' WHERE id = 1"
	case containsAny(text, deleteKeywords):
		return "DELETE FROM users WHERE id = 1"
	default:
		return "SELECT * FROM " + table
	}
}

func containsAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}
