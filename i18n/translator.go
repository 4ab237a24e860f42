// Package i18n provides default human messages for built-in validator error
// keys. It is consulted when a validator config carries no custom message.
package i18n

import "strings"

// Translator retrieves localized messages for validator error keys.
// data carries the stringified payload fields (for example "min" or
// "requiredLength").
type Translator interface {
	Message(key string, data map[string]string) string
}

// dictTranslator is the built-in dictionary-based Translator.
type dictTranslator struct{ lang string }

func (t dictTranslator) Message(key string, data map[string]string) string {
	switch t.lang {
	case "ja":
		switch key {
		case "required":
			return "必須項目です"
		case "email":
			return "メールアドレスの形式が正しくありません"
		case "pattern":
			return "形式が正しくありません"
		case "min":
			return fill("{min} 以上の値を入力してください", data)
		case "max":
			return fill("{max} 以下の値を入力してください", data)
		case "minlength":
			return fill("{requiredLength} 文字以上で入力してください", data)
		case "maxlength":
			return fill("{requiredLength} 文字以内で入力してください", data)
		}
	default: // "en"
		switch key {
		case "required":
			return "This field is required"
		case "email":
			return "Invalid email format"
		case "pattern":
			return "Invalid format"
		case "min":
			return fill("Must be at least {min}", data)
		case "max":
			return fill("Must be at most {max}", data)
		case "minlength":
			return fill("Must be at least {requiredLength} characters", data)
		case "maxlength":
			return fill("Must be at most {requiredLength} characters", data)
		}
	}
	return key
}

func fill(msg string, data map[string]string) string {
	for k, v := range data {
		msg = strings.ReplaceAll(msg, "{"+k+"}", v)
	}
	return msg
}

// Dictionary returns the built-in Translator for lang ("en"/"ja"); other
// languages fall back to English.
func Dictionary(lang string) Translator {
	if lang != "ja" {
		lang = "en"
	}
	return dictTranslator{lang: lang}
}

var currentTranslator Translator = dictTranslator{lang: "en"}

// SetLanguage switches the built-in Translator language ("en"/"ja").
func SetLanguage(lang string) { currentTranslator = Dictionary(lang) }

// SetTranslator replaces the Translator implementation (not limited to the
// dictionary version).
func SetTranslator(tr Translator) {
	if tr == nil {
		currentTranslator = dictTranslator{lang: "en"}
		return
	}
	currentTranslator = tr
}

// Current returns the active Translator.
func Current() Translator { return currentTranslator }

// T fetches a message for the given key using the current Translator.
func T(key string, data map[string]string) string { return currentTranslator.Message(key, data) }
