package app

// Key binding constants used in handleKey.
const (
	KeyQuit            = "q"
	KeyQuitUpper       = "Q"
	KeyCtrlC           = "ctrl+c"
	KeyTab             = "tab"
	KeyShiftTab        = "shift+tab"
	KeyUp              = "up"
	KeyDown            = "down"
	KeyJ               = "j"
	KeyK               = "k"
	KeyEnter           = "enter"
	KeyCycleModel      = "f2"
	KeyCycleSpecialist = "f3"
	KeyCycleLang       = "f4"
	KeyToggleLangPT    = "f5"
	KeyToggleLangEN    = "f6"
	KeyToggleLangES    = "f7"
	KeyPlay            = "p"
	KeyPause           = " "
	KeyStop            = "s"
)
