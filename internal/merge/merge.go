// Package merge combines factor maps from several sources.
//
// Automated sources are folded with Merge (logical OR per factor, so a
// positive signal is never suppressed by another source's silence). Manual
// questionnaire answers are layered on top with ApplyManual and always win.
package merge

import (
	"github.com/ppiankov/ictrisk/internal/model"
)

// Merge returns the union of a and b. A factor present in both is true if
// either source reports true. Merge is commutative, associative and
// idempotent; neither input is modified.
func Merge(a, b model.RiskFactorMap) model.RiskFactorMap {
	out := a.Clone()
	for category, factors := range b {
		if _, ok := out[category]; !ok {
			out[category] = make(map[string]bool, len(factors))
		}
		for name, v := range factors {
			out[category][name] = out[category][name] || v
		}
	}
	return out
}

// MergeAll folds any number of sources with Merge
func MergeAll(sources ...model.RiskFactorMap) model.RiskFactorMap {
	out := make(model.RiskFactorMap)
	for _, src := range sources {
		out = Merge(out, src)
	}
	return out
}

// ApplyManual layers extracted values under the manual responses: an explicit
// manual answer for a category+factor always wins, extracted values only fill
// factors the manual responses did not address.
func ApplyManual(manual, extracted model.RiskFactorMap) model.RiskFactorMap {
	out := manual.Clone()
	for category, factors := range extracted {
		for name, v := range factors {
			if _, answered := out.Get(category, name); !answered {
				out.Set(category, name, v)
			}
		}
	}
	return out
}
