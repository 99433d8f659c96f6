package cluster

import (
	"sort"
	"strings"
)

// k8s label selector, each key is a label name.
type LabelSelector map[string]SelectorElement

// Label SelectorElement like EqualityBased or SetBased
type SelectorElement interface {
	// convert to querystring expression for label
	QueryString(label string) string
}

// QueryString converts the selector into a form of query string.
//
// Elements are sorted by label, so the result is stable.
func (ls LabelSelector) QueryString() string {
	keys := make([]string, 0, len(ls))
	for k := range ls {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	exprs := make([]string, 0, len(keys))
	for _, k := range keys {
		exprs = append(exprs, ls[k].QueryString(k))
	}
	return strings.Join(exprs, ",")
}

// see: https://kubernetes.io/docs/concepts/overview/working-with-objects/labels/#equality-based-requirement
type EqualityBased struct {
	negate bool
	value  string
}

func Eq(value string) EqualityBased {
	return EqualityBased{value: value}
}

func NotEq(value string) EqualityBased {
	return EqualityBased{negate: true, value: value}
}

func (eqb EqualityBased) QueryString(label string) string {
	if eqb.negate {
		return label + "!=" + eqb.value
	}
	return label + "=" + eqb.value
}

// LabelsToSelector makes a selector matching all of given labels.
func LabelsToSelector(ls map[string]string) LabelSelector {
	new := LabelSelector{}
	for k, v := range ls {
		new[k] = Eq(v)
	}
	return new
}
