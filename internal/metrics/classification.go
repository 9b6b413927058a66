// Package metrics evaluates classifier predictions and renders the training
// report.
package metrics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/spboyer/cropwise/internal/statistics"
)

var printer = message.NewPrinter(language.English)

// ClassMetrics holds precision, recall and F1 for one label.
type ClassMetrics struct {
	Label     string  `json:"label"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Report is the outcome of evaluating a classifier on held-out rows.
type Report struct {
	Accuracy    float64                        `json:"accuracy"`
	AccuracyCI  *statistics.ConfidenceInterval `json:"accuracy_ci,omitempty"`
	Classes     []ClassMetrics                 `json:"classes"`
	MacroAvg    ClassMetrics                   `json:"macro_avg"`
	WeightedAvg ClassMetrics                   `json:"weighted_avg"`
	Total       int                            `json:"total"`
}

// Evaluate compares predicted against actual labels. Classes that appear in
// either slice are reported, sorted by name. A class with no predictions (or
// no true rows) gets 0 for the undefined ratio.
func Evaluate(actual, predicted []string) (*Report, error) {
	if len(actual) != len(predicted) {
		return nil, fmt.Errorf("metrics: %d actual labels but %d predictions", len(actual), len(predicted))
	}
	if len(actual) == 0 {
		return nil, fmt.Errorf("metrics: nothing to evaluate")
	}

	truePos := map[string]int{}
	predCount := map[string]int{}
	support := map[string]int{}
	correct := 0
	for i := range actual {
		support[actual[i]]++
		predCount[predicted[i]]++
		if actual[i] == predicted[i] {
			truePos[actual[i]]++
			correct++
		}
	}

	labelSet := map[string]struct{}{}
	for l := range support {
		labelSet[l] = struct{}{}
	}
	for l := range predCount {
		labelSet[l] = struct{}{}
	}
	labels := make([]string, 0, len(labelSet))
	for l := range labelSet {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	r := &Report{
		Accuracy: float64(correct) / float64(len(actual)),
		Total:    len(actual),
		MacroAvg: ClassMetrics{Label: "macro avg", Support: len(actual)},
		WeightedAvg: ClassMetrics{
			Label:   "weighted avg",
			Support: len(actual),
		},
	}

	for _, l := range labels {
		tp := float64(truePos[l])
		cm := ClassMetrics{
			Label:     l,
			Precision: safeDiv(tp, float64(predCount[l])),
			Recall:    safeDiv(tp, float64(support[l])),
			Support:   support[l],
		}
		cm.F1 = safeDiv(2*cm.Precision*cm.Recall, cm.Precision+cm.Recall)
		r.Classes = append(r.Classes, cm)

		w := float64(cm.Support) / float64(len(actual))
		r.MacroAvg.Precision += cm.Precision
		r.MacroAvg.Recall += cm.Recall
		r.MacroAvg.F1 += cm.F1
		r.WeightedAvg.Precision += w * cm.Precision
		r.WeightedAvg.Recall += w * cm.Recall
		r.WeightedAvg.F1 += w * cm.F1
	}

	n := float64(len(labels))
	r.MacroAvg.Precision /= n
	r.MacroAvg.Recall /= n
	r.MacroAvg.F1 /= n
	return r, nil
}

// Text renders the report as plain text: accuracy, the optional confidence
// interval, then a per-class precision/recall/F1 table.
func (r *Report) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Accuracy: %.4f\n", r.Accuracy)
	if ci := r.AccuracyCI; ci != nil && ci.NumBootstraps > 0 {
		fmt.Fprintf(&b, "Accuracy %.0f%% CI (bootstrap, %s resamples): [%.4f, %.4f]\n",
			ci.ConfidenceLevel*100, printer.Sprintf("%d", ci.NumBootstraps), ci.Lower, ci.Upper)
	}
	b.WriteString("\n")

	width := runewidth.StringWidth("weighted avg")
	for _, c := range r.Classes {
		width = max(width, runewidth.StringWidth(c.Label))
	}

	row := func(label string, cols ...string) {
		b.WriteString(runewidth.FillLeft(label, width))
		for _, c := range cols {
			fmt.Fprintf(&b, " %10s", c)
		}
		b.WriteString("\n")
	}
	num := func(v float64) string { return fmt.Sprintf("%.2f", v) }
	count := func(n int) string { return printer.Sprintf("%d", n) }

	row("", "precision", "recall", "f1-score", "support")
	b.WriteString("\n")
	for _, c := range r.Classes {
		row(c.Label, num(c.Precision), num(c.Recall), num(c.F1), count(c.Support))
	}
	b.WriteString("\n")
	row("accuracy", "", "", num(r.Accuracy), count(r.Total))
	for _, c := range []ClassMetrics{r.MacroAvg, r.WeightedAvg} {
		row(c.Label, num(c.Precision), num(c.Recall), num(c.F1), count(c.Support))
	}
	return b.String()
}
