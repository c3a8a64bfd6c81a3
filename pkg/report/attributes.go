package report

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Attribute parsing errors.
var (
	ErrEmptyQuery         = errors.New("empty attribute query")
	ErrUnknownAttribute   = errors.New("unknown attribute")
	ErrInvalidValue       = errors.New("invalid attribute value")
	ErrNotAllowedOnTarget = errors.New("attribute not allowed on target")
	ErrInvalidCombination = errors.New("invalid attribute combination")
)

// Attribute is a bit in the set-mask of write attributes.
type Attribute uint8

const (
	AttrCancel Attribute = 1
	AttrPmin   Attribute = 2
	AttrPmax   Attribute = 4
	AttrLt     Attribute = 8
	AttrGt     Attribute = 16
	AttrSt     Attribute = 32
)

// String returns the query key of a single attribute.
func (a Attribute) String() string {
	switch a {
	case AttrCancel:
		return "cancel"
	case AttrPmin:
		return "pmin"
	case AttrPmax:
		return "pmax"
	case AttrLt:
		return "lt"
	case AttrGt:
		return "gt"
	case AttrSt:
		return "st"
	default:
		return fmt.Sprintf("attr(%d)", uint8(a))
	}
}

// Target is the tree level the attributes are written to.
type Target uint8

const (
	TargetObject Target = iota + 1
	TargetObjectInstance
	TargetResource
)

// String returns the target name.
func (t Target) String() string {
	switch t {
	case TargetObject:
		return "OBJECT"
	case TargetObjectInstance:
		return "OBJECT_INSTANCE"
	case TargetResource:
		return "RESOURCE"
	default:
		return "UNKNOWN"
	}
}

// Attributes holds the write attributes of one handler.
// Periods are in seconds.
type Attributes struct {
	Pmin float64
	Pmax float64
	Gt   float64
	Lt   float64
	St   float64

	// Set is the mask of attributes that carry a value.
	Set Attribute
}

// Has returns true if every bit of a is set.
func (a Attributes) Has(attr Attribute) bool {
	return a.Set&attr == attr
}

// HasThresholds returns true if any of gt, lt or st is set.
func (a Attributes) HasThresholds() bool {
	return a.Set&(AttrGt|AttrLt|AttrSt) != 0
}

// Query renders the set attributes as a URI query, in mask order.
func (a Attributes) Query() string {
	var parts []string
	add := func(attr Attribute, v float64) {
		if a.Has(attr) {
			parts = append(parts, attr.String()+"="+strconv.FormatFloat(v, 'f', -1, 64))
		}
	}
	add(AttrPmin, a.Pmin)
	add(AttrPmax, a.Pmax)
	add(AttrLt, a.Lt)
	add(AttrGt, a.Gt)
	add(AttrSt, a.St)
	return strings.Join(parts, "&")
}

// CheckValidity verifies the attribute combination:
//   - no negative period or step
//   - pmax > pmin when both are set
//   - lt < gt when both are set, and lt + 2*st < gt when st is set too
func (a Attributes) CheckValidity() error {
	if a.Has(AttrPmin) && a.Pmin < 0 {
		return fmt.Errorf("%w: negative pmin", ErrInvalidCombination)
	}
	if a.Has(AttrPmax) && a.Pmax < 0 {
		return fmt.Errorf("%w: negative pmax", ErrInvalidCombination)
	}
	if a.Has(AttrSt) && a.St < 0 {
		return fmt.Errorf("%w: negative st", ErrInvalidCombination)
	}
	if a.Has(AttrPmin|AttrPmax) && a.Pmax <= a.Pmin {
		return fmt.Errorf("%w: pmax %g <= pmin %g", ErrInvalidCombination, a.Pmax, a.Pmin)
	}
	if a.Has(AttrLt | AttrGt) {
		if a.Lt >= a.Gt {
			return fmt.Errorf("%w: lt %g >= gt %g", ErrInvalidCombination, a.Lt, a.Gt)
		}
		if a.Has(AttrSt) && a.Lt+2*a.St >= a.Gt {
			return fmt.Errorf("%w: lt + 2*st >= gt", ErrInvalidCombination)
		}
	}
	return nil
}

// ParseAttributes merges a query into base and returns the candidate set.
// The second result is true when the query contained cancel; the candidate
// is then empty.
func ParseAttributes(query string, target Target, base Attributes) (Attributes, bool, error) {
	if query == "" {
		return base, false, ErrEmptyQuery
	}

	cand := base
	cancel := false
	for _, token := range strings.Split(query, "&") {
		if token == "" {
			continue
		}
		key, value, hasValue := strings.Cut(token, "=")

		attr, ok := attributeByKey(key)
		if !ok {
			return base, false, fmt.Errorf("%w: %q", ErrUnknownAttribute, key)
		}
		if attr == AttrCancel {
			cancel = true
			continue
		}
		if attr&(AttrGt|AttrLt|AttrSt) != 0 && target != TargetResource {
			return base, false, fmt.Errorf("%w: %s on %s", ErrNotAllowedOnTarget, attr, target)
		}
		if !hasValue {
			return base, false, fmt.Errorf("%w: %s has no value", ErrInvalidValue, attr)
		}
		v, err := strconv.ParseFloat(value, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return base, false, fmt.Errorf("%w: %s=%q", ErrInvalidValue, attr, value)
		}

		switch attr {
		case AttrPmin:
			cand.Pmin = v
		case AttrPmax:
			cand.Pmax = v
		case AttrGt:
			cand.Gt = v
		case AttrLt:
			cand.Lt = v
		case AttrSt:
			cand.St = v
		}
		cand.Set |= attr
	}

	if cancel {
		return Attributes{}, true, nil
	}
	if err := cand.CheckValidity(); err != nil {
		return base, false, err
	}
	return cand, false, nil
}

func attributeByKey(key string) (Attribute, bool) {
	switch key {
	case "pmin":
		return AttrPmin, true
	case "pmax":
		return AttrPmax, true
	case "gt":
		return AttrGt, true
	case "lt":
		return AttrLt, true
	case "st":
		return AttrSt, true
	case "cancel":
		return AttrCancel, true
	default:
		return 0, false
	}
}
