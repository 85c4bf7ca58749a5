package notifier

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"TrendSentinel/internal/model"
	"TrendSentinel/internal/recorder"
)

// Forecast levels at which a ticker is listed as a buy or sell candidate.
const (
	BuyLevel  = 10.0
	SellLevel = -10.0
)

type ranked struct {
	ticker string
	value  float64
}

// FormatRunReport formats a finished run into a Telegram message.
func FormatRunReport(r *model.RunReport) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("📊 <b>EWMAC signals</b> | %s\n\n", r.FinishedAt.Format("2006-01-02")))
	b.WriteString(fmt.Sprintf("Instruments: %d | signals: %d | skipped: %d\n", r.Total, r.Succeeded(), len(r.Skipped)))
	b.WriteString(fmt.Sprintf("Duration: %s\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Second)))

	var buys, sells []ranked
	missing := 0
	for _, s := range r.Summaries {
		v, ok := s.LatestSignal.Get()
		switch {
		case !ok:
			missing++
		case v >= BuyLevel:
			buys = append(buys, ranked{s.Ticker, v})
		case v <= SellLevel:
			sells = append(sells, ranked{s.Ticker, v})
		}
	}
	sort.SliceStable(buys, func(i, j int) bool { return buys[i].value > buys[j].value })
	sort.SliceStable(sells, func(i, j int) bool { return sells[i].value < sells[j].value })

	writeRanked(&b, "🟢 <b>Above buy threshold</b>", buys)
	writeRanked(&b, "🔴 <b>Below sell threshold</b>", sells)
	if missing > 0 {
		b.WriteString(fmt.Sprintf("\nNo signal (insufficient history): %d\n", missing))
	}
	if len(r.Skipped) > 0 {
		names := make([]string, len(r.Skipped))
		for i, s := range r.Skipped {
			names[i] = html.EscapeString(s.Ticker)
		}
		b.WriteString(fmt.Sprintf("\n⚠️ Skipped: %s\n", strings.Join(names, ", ")))
	}
	return b.String()
}

func writeRanked(b *strings.Builder, title string, rows []ranked) {
	if len(rows) == 0 {
		return
	}
	b.WriteString("\n" + title + "\n")
	for _, r := range rows {
		b.WriteString(fmt.Sprintf("  %s: %+.2f\n", html.EscapeString(r.ticker), r.value))
	}
}

// FormatStoredSignals lists the stored signals of the last run.
func FormatStoredSignals(rows []recorder.StoredSignal) string {
	if len(rows) == 0 {
		return "No signals recorded yet."
	}
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📈 <b>Latest signals</b> | as of %s\n\n", rows[0].AsOf.Format("2006-01-02")))
	for _, r := range rows {
		if r.LatestSignal == nil {
			b.WriteString(fmt.Sprintf("  %s: n/a\n", html.EscapeString(r.Ticker)))
			continue
		}
		b.WriteString(fmt.Sprintf("  %s: %+.2f\n", html.EscapeString(r.Ticker), *r.LatestSignal))
	}
	return b.String()
}
