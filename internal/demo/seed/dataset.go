// Package seed fills a row store with synthetic MES data and publishes the
// matching approved schema annotations, so a local stack can answer
// questions without a real plant behind it.
package seed

type Column struct {
	Name            string
	Type            string
	NameCN          string
	DescriptionCN   string
	DescriptionEN   string
	Example         string
	BusinessMeaning string
	Range           string
}

type Table struct {
	Name            string
	NameCN          string
	DescriptionCN   string
	DescriptionEN   string
	BusinessMeaning string
	UseCase         string
	Columns         []Column
}

func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, column := range t.Columns {
		names[i] = column.Name
	}
	return names
}

const (
	TableOEE      = "oee_records"
	TableDowntime = "equipment_downtime"
	TableQuality  = "production_quality"
)

// Tables is the demo dataset in seeding order.
var Tables = []Table{
	{
		Name:            TableOEE,
		NameCN:          "OEE记录",
		DescriptionCN:   "按设备和班次记录的设备综合效率",
		DescriptionEN:   "Overall equipment effectiveness per equipment and shift",
		BusinessMeaning: "衡量设备可用率、性能和质量的综合指标",
		UseCase:         "设备效率分析、班次对比",
		Columns: []Column{
			{Name: "record_date", Type: "DATE", NameCN: "日期", DescriptionCN: "生产日期", Example: "2026-03-04"},
			{Name: "equipment_id", Type: "VARCHAR(32)", NameCN: "设备编号", DescriptionCN: "设备唯一编号", Example: "EQ-001"},
			{Name: "shift", Type: "VARCHAR(16)", NameCN: "班次", DescriptionCN: "早班、中班或夜班", Example: "早班"},
			{Name: "availability", Type: "DOUBLE PRECISION", NameCN: "可用率", DescriptionCN: "实际运行时间占计划时间的比例", Range: "0-1"},
			{Name: "performance", Type: "DOUBLE PRECISION", NameCN: "性能率", DescriptionCN: "实际产出速度占理论速度的比例", Range: "0-1"},
			{Name: "quality", Type: "DOUBLE PRECISION", NameCN: "良品率", DescriptionCN: "合格品占总产出的比例", Range: "0-1"},
			{Name: "oee", Type: "DOUBLE PRECISION", NameCN: "OEE", DescriptionCN: "可用率、性能率与良品率的乘积", Range: "0-1", BusinessMeaning: "设备综合效率"},
		},
	},
	{
		Name:            TableDowntime,
		NameCN:          "设备停机",
		DescriptionCN:   "设备停机事件及原因",
		DescriptionEN:   "Equipment downtime events with reasons",
		BusinessMeaning: "定位影响产能的停机原因",
		UseCase:         "停机时间统计、故障分析",
		Columns: []Column{
			{Name: "event_id", Type: "BIGINT", NameCN: "事件编号", DescriptionCN: "停机事件编号"},
			{Name: "equipment_id", Type: "VARCHAR(32)", NameCN: "设备编号", DescriptionCN: "设备唯一编号", Example: "EQ-003"},
			{Name: "started_at", Type: "TIMESTAMP", NameCN: "开始时间", DescriptionCN: "停机开始时间"},
			{Name: "duration_minutes", Type: "INTEGER", NameCN: "停机时长", DescriptionCN: "停机持续分钟数", Range: "5-240"},
			{Name: "reason", Type: "VARCHAR(64)", NameCN: "停机原因", DescriptionCN: "停机原因分类", Example: "设备故障"},
		},
	},
	{
		Name:            TableQuality,
		NameCN:          "生产质量",
		DescriptionCN:   "按批次记录的产量与缺陷数",
		DescriptionEN:   "Produced and defective units per production batch",
		BusinessMeaning: "跟踪产品良率趋势",
		UseCase:         "良率趋势分析、质量追溯",
		Columns: []Column{
			{Name: "batch_id", Type: "VARCHAR(32)", NameCN: "批次号", DescriptionCN: "生产批次号", Example: "B-20260304-01"},
			{Name: "record_date", Type: "DATE", NameCN: "日期", DescriptionCN: "生产日期"},
			{Name: "product_line", Type: "VARCHAR(32)", NameCN: "产线", DescriptionCN: "生产线名称", Example: "装配线A"},
			{Name: "produced", Type: "INTEGER", NameCN: "产量", DescriptionCN: "批次总产出数量"},
			{Name: "defects", Type: "INTEGER", NameCN: "缺陷数", DescriptionCN: "批次不合格数量"},
			{Name: "yield_rate", Type: "DOUBLE PRECISION", NameCN: "良率", DescriptionCN: "合格数量占产量的比例", Range: "0-1"},
		},
	},
}

func TableByName(name string) (Table, bool) {
	for _, table := range Tables {
		if table.Name == name {
			return table, true
		}
	}
	return Table{}, false
}
