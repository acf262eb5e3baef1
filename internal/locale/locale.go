package locale

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const DefaultLang = "en"

// Messages holds templates per language: {lang: {key: template}}.
type Messages struct {
	byLang      map[string]map[string]string
	defaultLang string
}

// Load reads a locales file. A missing or broken file is an error; callers
// that want to run anyway can fall back to New(nil).
func Load(path string) (*Messages, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read locales: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Messages, error) {
	var raw map[string]map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse locales: %w", err)
	}
	return New(raw), nil
}

func New(byLang map[string]map[string]string) *Messages {
	if byLang == nil {
		byLang = map[string]map[string]string{}
	}
	return &Messages{byLang: byLang, defaultLang: DefaultLang}
}

// Get returns the template for key in lang. Unknown languages use the
// default language; unknown keys render as _[key]_.
func (m *Messages) Get(key, lang string) string {
	if msgs, ok := m.byLang[normalizeLang(lang)]; ok {
		if msg, ok := msgs[key]; ok {
			return msg
		}
	}
	if msg, ok := m.byLang[m.defaultLang][key]; ok {
		return msg
	}
	return "_[" + key + "]_"
}

// Format fills {name} placeholders of the template for key.
func (m *Messages) Format(key, lang string, args map[string]any) string {
	msg := m.Get(key, lang)
	if len(args) == 0 {
		return msg
	}
	pairs := make([]string, 0, len(args)*2)
	for name, v := range args {
		pairs = append(pairs, "{"+name+"}", fmt.Sprint(v))
	}
	return strings.NewReplacer(pairs...).Replace(msg)
}

// "en-US" -> "en"
func normalizeLang(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	return lang
}
