package models

// DialogueState is the current step of a user's conversation.
type DialogueState int

const (
	StateMainMenu DialogueState = iota
	StateAwaitingRating
	StateAwaitingDescription
	StateAwaitingNotificationTime
)

func (s DialogueState) String() string {
	switch s {
	case StateMainMenu:
		return "main_menu"
	case StateAwaitingRating:
		return "awaiting_rating"
	case StateAwaitingDescription:
		return "awaiting_description"
	case StateAwaitingNotificationTime:
		return "awaiting_notification_time"
	}
	return "unknown"
}

// Command is a top-level action reachable from the main menu.
type Command int

const (
	CommandStart Command = iota
	CommandSaveMood
	CommandReport
	CommandSetNotification
	CommandResetMood
	CommandInfo
)

// AllCommands lists commands in menu order.
func AllCommands() []Command {
	return []Command{
		CommandStart,
		CommandSaveMood,
		CommandReport,
		CommandSetNotification,
		CommandResetMood,
		CommandInfo,
	}
}

// Key is the name of the command in the texts table.
func (c Command) Key() string {
	switch c {
	case CommandStart:
		return "start"
	case CommandSaveMood:
		return "save_mood"
	case CommandReport:
		return "report"
	case CommandSetNotification:
		return "set_notification"
	case CommandResetMood:
		return "reset_mood"
	case CommandInfo:
		return "info"
	}
	return ""
}

func (c Command) String() string { return c.Key() }
