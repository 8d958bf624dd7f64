package i18n

import (
	"fmt"
	"time"

	"golang.org/x/text/language"
)

// FormatDate renders t the way the page shows dates in lang.
// Chinese variants use 2006年1月2日; everything else uses Jan 2, 2006.
func FormatDate(t time.Time, lang string) string {
	if isChinese(lang) {
		return fmt.Sprintf("%d年%d月%d日", t.Year(), int(t.Month()), t.Day())
	}
	return t.Format("Jan 2, 2006")
}

// SwitchLabel is the language toggle caption while lang is current.
func (c *Catalog) SwitchLabel(lang string) string {
	return c.Text("langSwitchTo", lang)
}

// Match picks the supported language that best fits an Accept-Language
// header. It returns fallback when nothing matches or the header is malformed.
func Match(acceptLanguage string, supported []string, fallback string) string {
	if acceptLanguage == "" || len(supported) == 0 {
		return fallback
	}

	prefs, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(prefs) == 0 {
		return fallback
	}

	tags := make([]language.Tag, 0, len(supported))
	for _, code := range supported {
		tags = append(tags, language.Make(code))
	}

	_, idx, conf := language.NewMatcher(tags).Match(prefs...)
	if conf == language.No {
		return fallback
	}
	return supported[idx]
}

// Valid reports whether code parses as a BCP 47 tag.
func Valid(code string) bool {
	if code == "" {
		return false
	}
	_, err := language.Parse(code)
	return err == nil
}

func isChinese(lang string) bool {
	tag, err := language.Parse(lang)
	if err != nil {
		return false
	}
	base, _ := tag.Base()
	return base.String() == "zh"
}
