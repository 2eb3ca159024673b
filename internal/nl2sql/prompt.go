package nl2sql

import (
	"fmt"
	"strings"

	"github.com/duckmesh/mesquery/internal/annotation"
)

const conversionRules = `【转换规则】
1. 使用正确的表名和列名
2. 如果用户提及中文名称（如"生产订单"），请自动映射到对应的表名
3. 考虑业务含义和使用场景来构建正确的逻辑
4. 优先使用表中存在的列名
5. 生成的 SQL 应该是可执行的

【输出要求】
- 仅输出 SQL 语句，不要包含其他文本或解释
- 如果无法理解查询，返回一个安全的 SELECT 语句
- 确保 SQL 语法正确`

// BuildPrompt renders every approved table and its columns followed by the
// user query and the fixed conversion rules.
func BuildPrompt(md annotation.Metadata, naturalLanguage string) string {
	var b strings.Builder
	b.WriteString("【数据库 Schema 信息】\n\n")
	for _, table := range md.Tables {
		writeTable(&b, table, md.ColumnsOf(table.Name))
		b.WriteString("\n")
	}
	b.WriteString("\n【用户查询】\n")
	b.WriteString(strings.TrimSpace(naturalLanguage))
	b.WriteString("\n\n")
	b.WriteString(conversionRules)
	return b.String()
}

func writeTable(b *strings.Builder, table annotation.TableMeta, columns []annotation.ColumnMeta) {
	fmt.Fprintf(b, "表名: %s\n", table.Name)
	writeField(b, "  中文名", table.NameCN)
	writeField(b, "  描述", table.DescriptionCN)
	writeField(b, "  Description", table.DescriptionEN)
	writeField(b, "  业务含义", table.BusinessMeaning)
	writeField(b, "  使用场景", table.UseCase)
	if len(columns) == 0 {
		return
	}
	b.WriteString("  列:\n")
	for _, column := range columns {
		if column.NameCN != "" {
			fmt.Fprintf(b, "    - %s (%s): %s\n", column.Name, column.NameCN, column.DataType)
		} else {
			fmt.Fprintf(b, "    - %s: %s\n", column.Name, column.DataType)
		}
		writeField(b, "      描述", column.DescriptionCN)
		writeField(b, "      示例", column.Example)
	}
}

func writeField(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, "%s: %s\n", label, value)
}
