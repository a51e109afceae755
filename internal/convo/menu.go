package convo

import "strings"

// Menu button captions.
const (
	LabelConnect     = "Connect to site"
	LabelExport      = "Get product list as spreadsheet"
	LabelProfile     = "Profile"
	LabelHelp        = "Help"
	LabelSupport     = "Support"
	LabelUpdatePrice = "Update product price"
	LabelFindProduct = "Find product"
	LabelMarket      = "Market pricing"
	LabelCancel      = "Cancel"
	LabelSharePhone  = "Share phone number"
)

// Action is what a menu button does.
type Action int

const (
	ActionNone Action = iota
	ActionConnect
	ActionExport
	ActionProfile
	ActionHelp
	ActionSupport
	ActionUpdatePrice
	ActionFindProduct
	ActionMarket
)

var menuActions = map[string]Action{
	normalizeLabel(LabelConnect):     ActionConnect,
	normalizeLabel(LabelExport):      ActionExport,
	normalizeLabel(LabelProfile):     ActionProfile,
	normalizeLabel(LabelHelp):        ActionHelp,
	normalizeLabel(LabelSupport):     ActionSupport,
	normalizeLabel(LabelUpdatePrice): ActionUpdatePrice,
	normalizeLabel(LabelFindProduct): ActionFindProduct,
	normalizeLabel(LabelMarket):      ActionMarket,
	"/connect":                       ActionConnect,
	"/export":                        ActionExport,
	"/profile":                       ActionProfile,
	"/help":                          ActionHelp,
	"/support":                       ActionSupport,
	"/market":                        ActionMarket,
}

// ParseMenuAction maps a button caption (or its slash command) to an action.
func ParseMenuAction(text string) (Action, bool) {
	action, ok := menuActions[normalizeLabel(text)]
	return action, ok
}

func normalizeLabel(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

// MainMenu is the keyboard shown outside of any flow.
func MainMenu() Keyboard {
	return Keyboard{
		{{Label: LabelConnect}, {Label: LabelExport}},
		{{Label: LabelUpdatePrice}, {Label: LabelFindProduct}},
		{{Label: LabelMarket}},
		{{Label: LabelProfile}, {Label: LabelHelp}, {Label: LabelSupport}},
	}
}

// WelcomeMenu adds the contact-share button on top of the main menu.
func WelcomeMenu() Keyboard {
	return append(Keyboard{{{Label: LabelSharePhone, RequestContact: true}}}, MainMenu()...)
}

// CancelMenu is shown while a flow waits for input.
func CancelMenu() Keyboard {
	return Keyboard{{{Label: LabelCancel}}}
}

func isSkip(text string) bool {
	n := normalizeLabel(text)
	return n == "skip" || n == "/skip"
}

func isCancel(text string) bool {
	n := normalizeLabel(text)
	return n == normalizeLabel(LabelCancel) || n == "/cancel"
}
