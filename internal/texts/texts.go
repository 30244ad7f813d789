// Package texts holds the command keywords and every user-facing message.
// The table is loaded from YAML; a Russian table is built in.
package texts

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"telegram-mood-diary/internal/models"
)

//go:embed ru.yaml
var defaultTable []byte

// Messages are user-facing texts. Placeholders: mood_saved {rating}
// {description}; report {from} {to} {count} {mean} {median} {stddev};
// ask_time_current and time_saved {time}.
type Messages struct {
	Menu           string `yaml:"menu"`
	UnknownCommand string `yaml:"unknown_command"`
	AskRating      string `yaml:"ask_rating"`
	InvalidRating  string `yaml:"invalid_rating"`
	AskDescription string `yaml:"ask_description"`
	MoodSaved      string `yaml:"mood_saved"`
	NoData         string `yaml:"no_data"`
	Report         string `yaml:"report"`
	AskTime        string `yaml:"ask_time"`
	AskTimeCurrent string `yaml:"ask_time_current"`
	InvalidTime    string `yaml:"invalid_time"`
	TimeSaved      string `yaml:"time_saved"`
	MoodReset      string `yaml:"mood_reset"`
	Info           string `yaml:"info"`
	Reminder       string `yaml:"reminder"`
	StorageError   string `yaml:"storage_error"`
}

type Table struct {
	Commands map[string][]string `yaml:"commands"`
	Messages Messages            `yaml:"messages"`

	byKeyword map[string]models.Command
}

func Default() *Table {
	t, err := Parse(defaultTable)
	if err != nil {
		panic(fmt.Sprintf("built-in texts: %v", err))
	}
	return t
}

// Load reads a table from path, or returns the built-in one when path is empty.
func Load(path string) (*Table, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	t, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

func Parse(b []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(b, &t); err != nil {
		return nil, err
	}
	if err := t.index(); err != nil {
		return nil, err
	}
	if err := t.Messages.validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

func (t *Table) index() error {
	t.byKeyword = map[string]models.Command{}
	for _, cmd := range models.AllCommands() {
		words := t.Commands[cmd.Key()]
		if len(words) == 0 {
			return fmt.Errorf("command %s has no keywords", cmd.Key())
		}
		for _, w := range words {
			k := normalize(w)
			if k == "" {
				return fmt.Errorf("command %s: empty keyword", cmd.Key())
			}
			if prev, ok := t.byKeyword[k]; ok {
				return fmt.Errorf("keyword %q used by %s and %s", w, prev.Key(), cmd.Key())
			}
			t.byKeyword[k] = cmd
		}
	}
	return nil
}

func (m Messages) validate() error {
	fields := map[string]string{
		"menu":             m.Menu,
		"unknown_command":  m.UnknownCommand,
		"ask_rating":       m.AskRating,
		"invalid_rating":   m.InvalidRating,
		"ask_description":  m.AskDescription,
		"mood_saved":       m.MoodSaved,
		"no_data":          m.NoData,
		"report":           m.Report,
		"ask_time":         m.AskTime,
		"ask_time_current": m.AskTimeCurrent,
		"invalid_time":     m.InvalidTime,
		"time_saved":       m.TimeSaved,
		"mood_reset":       m.MoodReset,
		"info":             m.Info,
		"reminder":         m.Reminder,
		"storage_error":    m.StorageError,
	}
	for k, v := range fields {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("message %s is empty", k)
		}
	}
	return nil
}

// Lookup maps user input to a command. The whole text is tried first, then
// its first word.
func (t *Table) Lookup(text string) (models.Command, bool) {
	k := normalize(text)
	if cmd, ok := t.byKeyword[k]; ok {
		return cmd, true
	}
	if f := strings.Fields(k); len(f) > 1 {
		cmd, ok := t.byKeyword[f[0]]
		return cmd, ok
	}
	return 0, false
}

// Keyword is the label shown on the reply keyboard.
func (t *Table) Keyword(cmd models.Command) string {
	words := t.Commands[cmd.Key()]
	for _, w := range words {
		if !strings.HasPrefix(w, "/") {
			return w
		}
	}
	if len(words) > 0 {
		return words[0]
	}
	return ""
}

// Render replaces {key} placeholders, kv is key, value, key, value...
func Render(tmpl string, kv ...string) string {
	pairs := make([]string, 0, len(kv))
	for i := 0; i+1 < len(kv); i += 2 {
		pairs = append(pairs, "{"+kv[i]+"}", kv[i+1])
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
