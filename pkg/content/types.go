// Package content holds the per-language homepage content: the typed
// payloads, the store that keeps them and the loader that fills it.
package content

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Errors
var (
	ErrUnknownType = errors.New("content: unknown type")
	ErrUnavailable = errors.New("content: unavailable")
	ErrNotFound    = errors.New("content: not found")
)

// Type identifies a content category.
type Type int

const (
	TypeInfo Type = iota
	TypeIntro
	TypeNews
	TypeEducation
	TypeEmployment
	TypeHonors
	TypeTeaching
	TypeReviewer
	TypePaper
	TypePatent
)

var typeNames = [...]string{
	TypeInfo:       "info",
	TypeIntro:      "intro",
	TypeNews:       "news",
	TypeEducation:  "education",
	TypeEmployment: "employment",
	TypeHonors:     "honors",
	TypeTeaching:   "teaching",
	TypeReviewer:   "reviewer",
	TypePaper:      "paper",
	TypePatent:     "patent",
}

// file stems differ from the type name for the two publication types.
var fileStems = [...]string{
	TypePaper:  "papers",
	TypePatent: "patents",
}

// Types returns every content type in declaration order.
func Types() []Type {
	out := make([]Type, len(typeNames))
	for i := range typeNames {
		out[i] = Type(i)
	}
	return out
}

func (t Type) String() string {
	if t < 0 || int(t) >= len(typeNames) {
		return "Type(" + strconv.Itoa(int(t)) + ")"
	}
	return typeNames[t]
}

// Valid reports whether t is a known type.
func (t Type) Valid() bool {
	return t >= 0 && int(t) < len(typeNames)
}

// ParseType maps a type name to its Type.
func ParseType(name string) (Type, error) {
	for i, n := range typeNames {
		if n == name {
			return Type(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownType, name)
}

// FileName is the file holding t for lang, relative to the language dir.
func (t Type) FileName(lang string) string {
	stem := t.String()
	if int(t) < len(fileStems) && fileStems[t] != "" {
		stem = fileStems[t]
	}
	ext := ".json"
	if t == TypeIntro {
		ext = ".txt"
	}
	return stem + "_" + lang + ext
}

// Payload is the decoded content of one type for one language.
type Payload interface {
	ContentType() Type
}

// Sequence is a payload made of items. Tabs are shown only for non-empty
// sequences.
type Sequence interface {
	Payload
	Len() int
}

// Text decodes from either a JSON string or a JSON number. Content files
// write years and offsets both ways.
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*t = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("content: text must be a string or number: %s", b)
	}
	*t = Text(n.String())
	return nil
}

func (t Text) String() string { return string(t) }

// Int parses the text as an integer.
func (t Text) Int() (int, bool) {
	s := strings.TrimSpace(string(t))
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f), true
	}
	return 0, false
}

// Info is the personal info block.
type Info struct {
	Name          string `json:"name"`
	Address       string `json:"address"`
	Institution   string `json:"institution"`
	GoogleScholar string `json:"googlescholar"`
	GitHub        string `json:"github"`
	Email         string `json:"email"`
	UTC           Text   `json:"UTC"`
}

func (Info) ContentType() Type { return TypeInfo }

// DefaultUTCOffset is used when the info block has no usable offset.
const DefaultUTCOffset = 8

// UTCOffset returns the configured offset in hours.
func (i Info) UTCOffset() int {
	if off, ok := i.UTC.Int(); ok {
		return off
	}
	return DefaultUTCOffset
}

// Intro is the "about me" text. HTML, when set, is pre-rendered markup and
// wins over Text, whose non-blank lines become paragraphs.
type Intro struct {
	Text string
	HTML string
}

func (Intro) ContentType() Type { return TypeIntro }

// Paragraphs splits Text on newlines and drops blank lines.
func (i Intro) Paragraphs() []string {
	var out []string
	for _, line := range strings.Split(i.Text, "\n") {
		if strings.TrimSpace(line) != "" {
			out = append(out, line)
		}
	}
	return out
}

// News is one news entry. Content is HTML.
type News struct {
	Time    string `json:"time"`
	Content string `json:"content"`
}

var newsLayouts = []string{"2006-01-02", "2006-1-2", "2006/01/02", "2006/1/2", "2006-01", "2006", time.RFC3339}

// Date parses Time.
func (n News) Date() (time.Time, bool) {
	s := strings.TrimSpace(n.Time)
	for _, layout := range newsLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

type NewsList []News

func (NewsList) ContentType() Type { return TypeNews }
func (l NewsList) Len() int        { return len(l) }

// Sorted returns a copy ordered newest first. The sort is stable and
// entries with unparseable dates go last.
func (l NewsList) Sorted() NewsList {
	out := make(NewsList, len(l))
	copy(out, l)
	sort.SliceStable(out, func(i, j int) bool {
		di, oki := out[i].Date()
		dj, okj := out[j].Date()
		switch {
		case oki && okj:
			return di.After(dj)
		default:
			return oki && !okj
		}
	})
	return out
}

type EducationDetail struct {
	Degree       string `json:"degree"`
	Major        string `json:"major"`
	College      string `json:"college"`
	Time         string `json:"time"`
	Tutor        string `json:"tutor"`
	Dissertation string `json:"dissertation"`
}

type Education struct {
	School  string            `json:"school"`
	LogoSrc string            `json:"logoSrc"`
	Details []EducationDetail `json:"details"`
}

type EducationList []Education

func (EducationList) ContentType() Type { return TypeEducation }
func (l EducationList) Len() int        { return len(l) }

type EmploymentDetail struct {
	Position   string `json:"position"`
	Department string `json:"department"`
	Time       string `json:"time"`
	Project    string `json:"project"`
}

type Employment struct {
	Company string             `json:"company"`
	LogoSrc string             `json:"logoSrc"`
	Details []EmploymentDetail `json:"details"`
}

type EmploymentList []Employment

func (EmploymentList) ContentType() Type { return TypeEmployment }
func (l EmploymentList) Len() int        { return len(l) }

type Honor struct {
	Award string `json:"award"`
	Unit  string `json:"unit"`
	Time  string `json:"time"`
}

type HonorList []Honor

func (HonorList) ContentType() Type { return TypeHonors }
func (l HonorList) Len() int        { return len(l) }

type Teaching struct {
	Code     string `json:"code"`
	Course   string `json:"course"`
	Identity string `json:"identity"`
	School   string `json:"school"`
	Season   string `json:"season"`
	Year     Text   `json:"year"`
}

type TeachingList []Teaching

func (TeachingList) ContentType() Type { return TypeTeaching }
func (l TeachingList) Len() int        { return len(l) }

// Reviewer is one review service entry; exactly one of Conference and
// Journal is normally set.
type Reviewer struct {
	Conference string `json:"conference"`
	Journal    string `json:"journal"`
	Year       Text   `json:"year"`
}

type ReviewerList []Reviewer

func (ReviewerList) ContentType() Type { return TypeReviewer }
func (l ReviewerList) Len() int        { return len(l) }

type Paper struct {
	Title      string `json:"title"`
	Authors    string `json:"authors"`
	Conference string `json:"conference"`
	Journal    string `json:"journal"`
	Abbr       string `json:"abbr"`
	Location   string `json:"location"`
	Volume     string `json:"volume"`
	Type       string `json:"type"`
	Image      string `json:"image"`
	PaperLink  string `json:"paperLink"`
	CodeLink   string `json:"codeLink"`
	VideoLink  string `json:"videoLink"`
	SiteLink   string `json:"siteLink"`
}

// Venue is the conference name, or the journal name when there is none.
func (p Paper) Venue() string {
	if p.Conference != "" {
		return p.Conference
	}
	return p.Journal
}

// Place is the location, or the volume when there is none.
func (p Paper) Place() string {
	if p.Location != "" {
		return p.Location
	}
	return p.Volume
}

// PaperIndex groups papers by year.
type PaperIndex map[string][]Paper

func (PaperIndex) ContentType() Type { return TypePaper }

// Len counts papers across all years.
func (p PaperIndex) Len() int {
	n := 0
	for _, papers := range p {
		n += len(papers)
	}
	return n
}

// Years returns the year keys, newest first. Non-numeric keys sort last,
// alphabetically.
func (p PaperIndex) Years() []string {
	years := make([]string, 0, len(p))
	for y := range p {
		years = append(years, y)
	}
	sort.SliceStable(years, func(i, j int) bool {
		yi, erri := strconv.Atoi(strings.TrimSpace(years[i]))
		yj, errj := strconv.Atoi(strings.TrimSpace(years[j]))
		switch {
		case erri == nil && errj == nil:
			return yi > yj
		case erri == nil:
			return true
		case errj == nil:
			return false
		default:
			return years[i] < years[j]
		}
	})
	return years
}

type Patent struct {
	Title   string `json:"title"`
	Authors string `json:"authors"`
	Type    string `json:"type"`
	Link    string `json:"link"`
	Number  string `json:"number"`
	Date    string `json:"date"`
}

type PatentList []Patent

func (PatentList) ContentType() Type { return TypePatent }
func (l PatentList) Len() int        { return len(l) }

// Decode parses raw file bytes into the payload for t.
func Decode(t Type, data []byte) (Payload, error) {
	switch t {
	case TypeInfo:
		return decodeAs[Info](t, data)
	case TypeIntro:
		return Intro{Text: strings.ReplaceAll(string(data), "\r\n", "\n")}, nil
	case TypeNews:
		return decodeAs[NewsList](t, data)
	case TypeEducation:
		return decodeAs[EducationList](t, data)
	case TypeEmployment:
		return decodeAs[EmploymentList](t, data)
	case TypeHonors:
		return decodeAs[HonorList](t, data)
	case TypeTeaching:
		return decodeAs[TeachingList](t, data)
	case TypeReviewer:
		return decodeAs[ReviewerList](t, data)
	case TypePaper:
		return decodeAs[PaperIndex](t, data)
	case TypePatent:
		return decodeAs[PatentList](t, data)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownType, int(t))
	}
}

func decodeAs[T Payload](t Type, data []byte) (Payload, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("content: decode %s: %w", t, err)
	}
	return v, nil
}
