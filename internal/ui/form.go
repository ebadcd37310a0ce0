package ui

import (
	"fmt"
	"strconv"

	"github.com/bnema/softbright/internal/config"
	"github.com/charmbracelet/huh"
)

// settingsForm holds the editable copy of every setting.
type settingsForm struct {
	bools   map[string]*bool
	strings map[string]*string
}

func newSettingsForm(current config.Snapshot) (*huh.Form, *settingsForm) {
	state := &settingsForm{
		bools:   make(map[string]*bool),
		strings: make(map[string]*string),
	}

	var fields []huh.Field
	for _, f := range config.Schema {
		switch f.Kind {
		case config.KindBool:
			v := current.Bool(f.Key)
			state.bools[f.Key] = &v
			fields = append(fields, huh.NewConfirm().
				Title(f.Key).
				Description(f.Summary).
				Value(&v))
		case config.KindDouble:
			v := strconv.FormatFloat(current.Double(f.Key), 'f', -1, 64)
			state.strings[f.Key] = &v
			key := f.Key
			fields = append(fields, huh.NewInput().
				Title(f.Key).
				Description(f.Summary).
				Value(&v).
				Validate(func(s string) error {
					_, err := config.ParseValue(key, s)
					return err
				}))
		default:
			v := current.String(f.Key)
			state.strings[f.Key] = &v
			if len(f.Choices) > 0 {
				options := make([]huh.Option[string], len(f.Choices))
				for i, c := range f.Choices {
					options[i] = huh.NewOption(c, c)
				}
				fields = append(fields, huh.NewSelect[string]().
					Title(f.Key).
					Description(f.Summary).
					Options(options...).
					Value(&v))
			} else {
				fields = append(fields, huh.NewInput().
					Title(f.Key).
					Description(f.Summary).
					Value(&v))
			}
		}
	}

	return huh.NewForm(huh.NewGroup(fields...)), state
}

// changes returns the typed values that differ from current.
func (s *settingsForm) changes(current config.Snapshot) (map[string]any, error) {
	out := make(map[string]any)
	for key, v := range s.bools {
		if *v != current.Bool(key) {
			out[key] = *v
		}
	}
	for key, v := range s.strings {
		typed, err := config.ParseValue(key, *v)
		if err != nil {
			return nil, err
		}
		if typed != current[key] {
			out[key] = typed
		}
	}
	return out, nil
}

// EditSettings runs an interactive form over every setting and returns the
// ones the user changed.
func EditSettings(current config.Snapshot) (map[string]any, error) {
	form, state := newSettingsForm(current)
	if err := form.Run(); err != nil {
		return nil, fmt.Errorf("settings form cancelled: %w", err)
	}
	return state.changes(current)
}
