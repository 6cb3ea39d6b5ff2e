package model

// UnitCategory classifies a cell's declared unit for the warning-only unit
// algebra of §4.6.
type UnitCategory int

const (
	UnitUnknown UnitCategory = iota
	UnitCurrency
	UnitPercentage
	UnitCount
	UnitTime
	UnitRatio
)

// Unit is a cell's optional unit label: a category plus, for currency, the
// currency code (e.g. "USD").
type Unit struct {
	Category UnitCategory
	Code     string // currency code, only meaningful when Category == UnitCurrency
}

// ParseUnit interprets a document-authored unit string into a Unit.
// An empty label is UnitUnknown, which never triggers warnings; any label
// not listed below is taken as a currency code.
func ParseUnit(label string) Unit {
	switch label {
	case "":
		return Unit{Category: UnitUnknown}
	case "percentage", "percent", "%":
		return Unit{Category: UnitPercentage}
	case "count":
		return Unit{Category: UnitCount}
	case "ratio":
		return Unit{Category: UnitRatio}
	case "days", "months", "years", "time":
		return Unit{Category: UnitTime}
	default:
		// Treat any other label as a currency code (USD, EUR, ...), the
		// common case in financial documents.
		return Unit{Category: UnitCurrency, Code: label}
	}
}

// UnitWarning is a non-fatal note emitted by the evaluator's unit algebra
// (§4.6: "Warnings never alter values").
type UnitWarning struct {
	CellPath string
	Message  string
}

// ComposeAdditive returns the resulting unit of a+b (or a-b) and, if the
// combination is suspect, a warning message.
func ComposeAdditive(a, b Unit) (Unit, string) {
	if a.Category == UnitUnknown || b.Category == UnitUnknown {
		return a, ""
	}
	if a.Category != b.Category {
		return a, "adding/subtracting values of different unit categories"
	}
	if a.Category == UnitCurrency && a.Code != b.Code {
		return a, "adding/subtracting different currencies (" + a.Code + " vs " + b.Code + ")"
	}
	return a, ""
}

// ComposeMultiplicative returns the resulting unit of a*b and, if suspect,
// a warning message. Multiplying by a dimensionless scalar (UnitUnknown)
// preserves the other operand's unit; multiplying two currencies warns.
func ComposeMultiplicative(a, b Unit) (Unit, string) {
	if a.Category == UnitUnknown {
		return b, ""
	}
	if b.Category == UnitUnknown {
		return a, ""
	}
	if a.Category == UnitCurrency && b.Category == UnitCurrency {
		return a, "multiplying two currency-denominated values"
	}
	return a, ""
}
