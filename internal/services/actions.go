package services

// Action names one user-triggered tracker operation. The HTTP routes and
// the CLI sub-commands are both keyed by these names.
type Action string

const (
	ActionAdd           Action = "add"
	ActionLoad          Action = "load"
	ActionClearAll      Action = "clear-all"
	ActionDeleteOne     Action = "delete-one"
	ActionPieChart      Action = "pie-chart"
	ActionMonthlyReport Action = "monthly-report"
	ActionExport        Action = "export"
)

// Actions lists every action in display order.
func Actions() []Action {
	return []Action{ActionAdd, ActionLoad, ActionClearAll, ActionDeleteOne, ActionPieChart, ActionMonthlyReport, ActionExport}
}

// Mutates reports whether the action changes stored records.
func (a Action) Mutates() bool {
	switch a {
	case ActionAdd, ActionClearAll, ActionDeleteOne:
		return true
	default:
		return false
	}
}

func (a Action) String() string {
	return string(a)
}
