package extract

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ppiankov/ictrisk/internal/model"
)

// ServiceExtractor applies a fixed field -> factor table to service details.
// Missing or unrecognized fields emit nothing.
type ServiceExtractor struct {
	rules  []ServiceRule
	fields map[string]bool
}

// NewServiceExtractor creates a service-detail extractor from its rule table
func NewServiceExtractor(rules []ServiceRule) *ServiceExtractor {
	e := &ServiceExtractor{
		rules:  make([]ServiceRule, len(rules)),
		fields: make(map[string]bool),
	}
	for i, r := range rules {
		normalized := r
		normalized.Fields = make([]string, len(r.Fields))
		for j, f := range r.Fields {
			normalized.Fields[j] = normalizeTag(f)
			e.fields[normalized.Fields[j]] = true
		}
		normalized.Values = make([]string, len(r.Values))
		for j, v := range r.Values {
			normalized.Values[j] = normalizeValue(v)
		}
		e.rules[i] = normalized
	}
	return e
}

// Name returns the extractor name
func (e *ServiceExtractor) Name() string {
	return "service"
}

// CanHandle checks if service details are present
func (e *ServiceExtractor) CanHandle(in Input) bool {
	return len(in.Service) > 0
}

// Extract derives factors from the service details
func (e *ServiceExtractor) Extract(in Input) Result {
	return e.ExtractService(in.Service)
}

// ExtractService evaluates every rule against the details
func (e *ServiceExtractor) ExtractService(details model.ServiceDetails) Result {
	result := Result{
		Source:  e.Name(),
		Status:  StatusOK,
		Factors: make(model.RiskFactorMap),
	}

	values := make(map[string]string, len(details))
	keys := make([]string, 0, len(details))
	for key := range details {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		field := normalizeTag(key)
		if !e.fields[field] {
			result.Skipped = append(result.Skipped, key)
			continue
		}
		s, ok := stringify(details[key])
		if !ok {
			result.Issues = append(result.Issues, fmt.Sprintf("%s: unsupported value type %T", key, details[key]))
			continue
		}
		if s = normalizeValue(s); s != "" {
			values[field] = s
		}
	}

	for _, rule := range e.rules {
		for _, field := range rule.Fields {
			value, ok := values[field]
			if !ok {
				continue
			}
			matched, usable := rule.matches(value)
			if !usable {
				result.Issues = append(result.Issues, fmt.Sprintf("%s: cannot interpret %q for %s rule", field, value, rule.Match))
				continue
			}
			prev, _ := result.Factors.Get(rule.Category, rule.Factor)
			result.Factors.Set(rule.Category, rule.Factor, prev || matched)
		}
	}

	switch {
	case len(result.Issues) > 0:
		result.Status = StatusDegraded
	case result.Factors.Len() == 0:
		result.Status = StatusEmpty
	}

	return result
}

// matches evaluates the rule; usable is false when the value cannot be interpreted
func (r ServiceRule) matches(value string) (matched bool, usable bool) {
	switch r.Match {
	case MatchEquals:
		for _, v := range r.Values {
			if value == v {
				return true, true
			}
		}
		return false, true
	case MatchContains:
		for _, v := range r.Values {
			if strings.Contains(value, v) {
				return true, true
			}
		}
		return false, true
	case MatchNotIn:
		for _, v := range r.Values {
			if value == v {
				return false, true
			}
		}
		return true, true
	case MatchMaxHours:
		hours, ok := parseHours(value)
		if !ok {
			return false, false
		}
		return hours <= r.Max, true
	}
	return false, false
}

// parseHours reads durations such as "4 hours", "<4h", "30 min" or "2 days"
func parseHours(s string) (float64, bool) {
	s = strings.TrimLeft(strings.TrimSpace(s), "<>=≤ ")
	end := 0
	for end < len(s) && (s[end] >= '0' && s[end] <= '9' || s[end] == '.') {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.ParseFloat(s[:end], 64)
	if err != nil {
		return 0, false
	}

	unit := strings.TrimSpace(s[end:])
	switch {
	case unit == "" || strings.HasPrefix(unit, "h"):
		return n, true
	case strings.HasPrefix(unit, "m"):
		return n / 60, true
	case strings.HasPrefix(unit, "d"):
		return n * 24, true
	}
	return 0, false
}

func stringify(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", true
	case string:
		return t, true
	case bool:
		return strconv.FormatBool(t), true
	case int, int32, int64, float32, float64:
		return fmt.Sprint(t), true
	case []string:
		return strings.Join(t, ", "), true
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := stringify(item)
			if !ok {
				return "", false
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, ", "), true
	}
	return "", false
}

func normalizeValue(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
