package crisis

// Category is a crisis risk class.
type Category string

const (
	CategoryNone      Category = ""
	CategorySuicide   Category = "SUICIDE"
	CategorySelfHarm  Category = "SELF_HARM"
	CategorySubstance Category = "SUBSTANCE"
	CategoryDespair   Category = "DESPAIR"
)

// BySeverity lists categories from most to least severe.
var BySeverity = []Category{CategorySuicide, CategorySelfHarm, CategorySubstance, CategoryDespair}

// Severity ranks categories; higher is more severe and CategoryNone is zero.
func (c Category) Severity() int {
	switch c {
	case CategorySuicide:
		return 4
	case CategorySelfHarm:
		return 3
	case CategorySubstance:
		return 2
	case CategoryDespair:
		return 1
	default:
		return 0
	}
}

func (c Category) Valid() bool { return c.Severity() > 0 }
