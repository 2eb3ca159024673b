package seed

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

var (
	shifts          = []string{"早班", "中班", "夜班"}
	downtimeReasons = []string{"设备故障", "换型调整", "计划保养", "缺料等待", "质量异常"}
	productLines    = []string{"装配线A", "装配线B", "包装线"}
)

// Generator produces deterministic rows for a seed. Rows walk backwards one
// day at a time from the current day.
type Generator struct {
	rnd       *rand.Rand
	equipment int
	sequence  int64
	now       func() time.Time
}

func NewGenerator(seed int64, equipment int) *Generator {
	if equipment <= 0 {
		equipment = 1
	}
	return &Generator{
		rnd:       rand.New(rand.NewSource(seed)),
		equipment: equipment,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Rows returns n rows for table in its column order.
func (g *Generator) Rows(table Table, n int) ([][]any, error) {
	var next func(i int) []any
	switch table.Name {
	case TableOEE:
		next = g.oeeRow
	case TableDowntime:
		next = g.downtimeRow
	case TableQuality:
		next = g.qualityRow
	default:
		return nil, fmt.Errorf("no generator for table %q", table.Name)
	}
	rows := make([][]any, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, next(i))
	}
	return rows, nil
}

func (g *Generator) day(i, perDay int) time.Time {
	today := g.now().UTC().Truncate(24 * time.Hour)
	return today.AddDate(0, 0, -(i / perDay))
}

func (g *Generator) equipmentID(i int) string {
	return fmt.Sprintf("EQ-%03d", i%g.equipment+1)
}

func (g *Generator) oeeRow(i int) []any {
	perDay := g.equipment * len(shifts)
	availability := round4(0.80 + g.rnd.Float64()*0.18)
	performance := round4(0.75 + g.rnd.Float64()*0.22)
	quality := round4(0.95 + g.rnd.Float64()*0.049)
	return []any{
		g.day(i, perDay),
		g.equipmentID(i),
		shifts[(i/g.equipment)%len(shifts)],
		availability,
		performance,
		quality,
		round4(availability * performance * quality),
	}
}

func (g *Generator) downtimeRow(i int) []any {
	g.sequence++
	started := g.day(i, g.equipment).Add(time.Duration(g.rnd.Intn(24*60)) * time.Minute)
	return []any{
		g.sequence,
		g.equipmentID(g.rnd.Intn(g.equipment)),
		started,
		5 + g.rnd.Intn(236),
		pickOne(g.rnd, downtimeReasons),
	}
}

func (g *Generator) qualityRow(i int) []any {
	perDay := len(productLines)
	date := g.day(i, perDay)
	produced := 800 + g.rnd.Intn(1200)
	defects := g.rnd.Intn(produced/20 + 1)
	return []any{
		fmt.Sprintf("B-%s-%02d", date.Format("20060102"), i%perDay+1),
		date,
		productLines[i%perDay],
		produced,
		defects,
		round4(float64(produced-defects) / float64(produced)),
	}
}

func round4(value float64) float64 {
	return math.Round(value*10000) / 10000
}

func pickOne(r *rand.Rand, values []string) string {
	return values[r.Intn(len(values))]
}
