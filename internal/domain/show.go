package domain

// ShowContext selects which content types map to which layers.
type ShowContext string

const (
	ShowIronmon ShowContext = "ironmon"
	ShowVariety ShowContext = "variety"
	ShowCoding  ShowContext = "coding"
)

// DefaultShow is the show a new session starts with.
const DefaultShow = ShowVariety

// IsValid reports whether s is a known show context.
func (s ShowContext) IsValid() bool {
	switch s {
	case ShowIronmon, ShowVariety, ShowCoding:
		return true
	default:
		return false
	}
}

// PriorityLevel is a coarse classification of the interrupt stack.
type PriorityLevel string

const (
	PriorityLevelAlert    PriorityLevel = "alert"
	PriorityLevelSubTrain PriorityLevel = "sub_train"
	PriorityLevelTicker   PriorityLevel = "ticker"
)
