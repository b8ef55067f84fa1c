package translate

import "strings"

// Language 翻译目标语言
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Menu entries that are not real languages.
const (
	DefaultCode    = "default"
	NoneCode       = "none"
	defaultName    = "Default"
	doNotTranslate = "Do not translate"
)

var languages = []Language{
	{"ar", "Arabic"},
	{"bg", "Bulgarian"},
	{"cs", "Czech"},
	{"da", "Danish"},
	{"de", "German"},
	{"el", "Greek"},
	{"en", "English"},
	{"es", "Spanish"},
	{"et", "Estonian"},
	{"fi", "Finnish"},
	{"fr", "French"},
	{"hi", "Hindi"},
	{"hu", "Hungarian"},
	{"id", "Indonesian"},
	{"it", "Italian"},
	{"ja", "Japanese"},
	{"ko", "Korean"},
	{"lt", "Lithuanian"},
	{"lv", "Latvian"},
	{"nb", "Norwegian"},
	{"nl", "Dutch"},
	{"pl", "Polish"},
	{"pt", "Portuguese"},
	{"ro", "Romanian"},
	{"ru", "Russian"},
	{"sk", "Slovak"},
	{"sl", "Slovenian"},
	{"sv", "Swedish"},
	{"th", "Thai"},
	{"tr", "Turkish"},
	{"uk", "Ukrainian"},
	{"vi", "Vietnamese"},
	{"zh", "Chinese"},
}

// Languages returns the destination menu: "default" and "do not translate"
// first, then every supported language.
func Languages() []Language {
	out := make([]Language, 0, len(languages)+2)
	out = append(out, Language{DefaultCode, defaultName}, Language{NoneCode, doNotTranslate})
	return append(out, languages...)
}

// LanguageName 返回语言名称，未知代码原样返回
func LanguageName(code string) string {
	for _, l := range languages {
		if strings.EqualFold(l.Code, code) {
			return l.Name
		}
	}
	return code
}

// Resolve maps a menu code to a concrete target. ok is false for
// "do not translate".
func Resolve(code, configured string) (target string, ok bool) {
	switch strings.ToLower(code) {
	case NoneCode:
		return "", false
	case DefaultCode, "":
		if configured == "" {
			configured = "en"
		}
		return configured, true
	}
	return strings.ToLower(code), true
}
