package render

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/sells-group/costmap/internal/metric"
)

// money formats dollar amounts for labels and legends.
type money struct {
	p *message.Printer
}

func newMoney(tag language.Tag) money {
	return money{p: message.NewPrinter(tag)}
}

// format renders v for a display mode: cents for per-capita values, whole
// dollars for totals.
func (m money) format(v float64, mode metric.Mode) string {
	if mode == metric.PerCapita {
		return m.p.Sprintf("$%v", number.Decimal(v, number.MinFractionDigits(2), number.MaxFractionDigits(2)))
	}
	return m.p.Sprintf("$%v", number.Decimal(v, number.MaxFractionDigits(0)))
}
